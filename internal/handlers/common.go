package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/service"
	"github.com/Kerhoff/custos/internal/telegram"
)

// reply sends an HTML formatted message to the chat of message.
func reply(bot telegram.Sender, message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = message.MessageID
	msg.DisableWebPagePreview = true
	bot.Send(msg)
}

// mention links to the user by id, which works without a username.
func mention(u models.User) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, u.ID, html.EscapeString(u.DisplayName()))
}

func fromTelegram(u *tgbotapi.User) models.User {
	return models.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func chatFromTelegram(c *tgbotapi.Chat) models.Chat {
	return models.Chat{ID: c.ID, Title: c.Title, Type: c.Type}
}

func isGroup(c *tgbotapi.Chat) bool {
	return c.IsGroup() || c.IsSuperGroup()
}

// resolveTarget finds the user a command is aimed at: the author of the
// replied-to message or the first argument. It returns the
// remaining arguments.
func resolveTarget(ctx context.Context, svc *service.Service, message *tgbotapi.Message, args []string) (*models.User, []string, error) {
	if r := message.ReplyToMessage; r != nil && r.From != nil && !r.From.IsBot {
		user, err := svc.EnsureUser(ctx, r.From.ID, r.From.UserName, r.From.FirstName, r.From.LastName)
		return user, args, err
	}

	if len(args) == 0 {
		return nil, args, nil
	}
	user, err := svc.FindTarget(ctx, message.Chat.ID, args[0])
	return user, args[1:], err
}

var errDeltaRange = errors.New("level count out of range")

// parseDelta reads an optional leading level count. A number too large
// for an int is rejected rather than read as a user reference.
func parseDelta(args []string) (int, []string, error) {
	if len(args) == 0 {
		return 1, args, nil
	}
	n, err := strconv.Atoi(args[0])
	if err == nil {
		return n, args[1:], nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, args, errDeltaRange
	}
	return 1, args, nil
}

// humanDuration prints whole minutes as "N min" and anything else rounded
// up to the second.
func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d min", d/time.Minute)
	}
	if r := d.Round(time.Second); r < d {
		d = r + time.Second
	} else {
		d = r
	}
	return d.String()
}
