package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/service"
	"github.com/Kerhoff/custos/internal/telegram"
)

// ---------------------------------------------------------------------------
// ProfileHandler – /me and /you [user]
// ---------------------------------------------------------------------------

// ProfileHandler shows a member's profile. With self set it always shows the
// sender, otherwise the replied-to or named user.
type ProfileHandler struct {
	self   bool
	svc    *service.Service
	logger *logrus.Logger
}

// NewMeHandler creates the /me handler.
func NewMeHandler(svc *service.Service, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{self: true, svc: svc, logger: logger}
}

// NewYouHandler creates the /you handler.
func NewYouHandler(svc *service.Service, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, logger: logger}
}

// Handle processes the command.
func (h *ProfileHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if !isGroup(message.Chat) {
		reply(bot, message, "ℹ️ This command only works in groups.")
		return nil
	}
	ctx := context.Background()

	userID := message.From.ID
	if !h.self {
		target, _, err := resolveTarget(ctx, h.svc, message, args)
		if err != nil {
			return fmt.Errorf("resolve target: %w", err)
		}
		if target == nil {
			reply(bot, message, "❓ I could not find that user. Reply to one of their messages or name them.")
			return nil
		}
		userID = target.ID
	}

	p, err := h.svc.Profile(ctx, userID, message.Chat.ID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if p == nil {
		reply(bot, message, "🤷 I have not seen this user write anything yet.")
		return nil
	}

	reply(bot, message, formatProfile(p))
	return nil
}

func formatProfile(p *service.Profile) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👤 <b>%s</b>\n", html.EscapeString(p.User.DisplayName())))
	if p.User.Username != "" {
		sb.WriteString(fmt.Sprintf("@%s\n", html.EscapeString(p.User.Username)))
	}
	sb.WriteString(fmt.Sprintf("\n🎖 Rank: %s\n", p.Rank.Title()))
	sb.WriteString(fmt.Sprintf("💬 Messages: %d (today %d)\n", p.MessageCount, p.Today))
	if p.Warnings > 0 {
		sb.WriteString(fmt.Sprintf("⚠️ Warnings: %d\n", p.Warnings))
	}
	if p.User.Description != "" {
		sb.WriteString(fmt.Sprintf("\n📝 %s\n", html.EscapeString(p.User.Description)))
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// NicknameHandler – /nickname <text>, DescriptionHandler – /description <text>
// ---------------------------------------------------------------------------

// NicknameHandler sets the sender's nickname.
type NicknameHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewNicknameHandler creates a new NicknameHandler.
func NewNicknameHandler(svc *service.Service, logger *logrus.Logger) *NicknameHandler {
	return &NicknameHandler{svc: svc, logger: logger}
}

// Handle processes the /nickname command.
func (h *NicknameHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		reply(bot, message, fmt.Sprintf("❌ Please provide a nickname.\nUsage: <code>/nickname Night Owl</code> (up to %d characters)", service.MaxNicknameLength))
		return nil
	}
	ctx := context.Background()

	if _, err := h.svc.EnsureUser(ctx, message.From.ID, message.From.UserName, message.From.FirstName, message.From.LastName); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	nickname := strings.Join(args, " ")
	if err := h.svc.SetNickname(ctx, message.From.ID, nickname); err != nil {
		if errors.Is(err, service.ErrNicknameTooLong) {
			reply(bot, message, fmt.Sprintf("❌ A nickname can be at most %d characters.", service.MaxNicknameLength))
			return nil
		}
		return fmt.Errorf("set nickname: %w", err)
	}

	reply(bot, message, fmt.Sprintf("✅ Your nickname is now <b>%s</b>.", html.EscapeString(nickname)))

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Nickname changed")

	return nil
}

// DescriptionHandler sets the sender's profile description.
type DescriptionHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewDescriptionHandler creates a new DescriptionHandler.
func NewDescriptionHandler(svc *service.Service, logger *logrus.Logger) *DescriptionHandler {
	return &DescriptionHandler{svc: svc, logger: logger}
}

// Handle processes the /description command.
func (h *DescriptionHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		reply(bot, message, fmt.Sprintf("❌ Please provide a description.\nUsage: <code>/description I moderate on weekends</code> (up to %d characters)", service.MaxDescriptionLength))
		return nil
	}
	ctx := context.Background()

	if _, err := h.svc.EnsureUser(ctx, message.From.ID, message.From.UserName, message.From.FirstName, message.From.LastName); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	if err := h.svc.SetDescription(ctx, message.From.ID, strings.Join(args, " ")); err != nil {
		if errors.Is(err, service.ErrDescriptionTooLong) {
			reply(bot, message, fmt.Sprintf("❌ A description can be at most %d characters.", service.MaxDescriptionLength))
			return nil
		}
		return fmt.Errorf("set description: %w", err)
	}

	reply(bot, message, "✅ Description updated.")
	return nil
}

// ---------------------------------------------------------------------------
// StatsHandler – /stats
// ---------------------------------------------------------------------------

// StatsHandler shows the most active members of the chat.
type StatsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(svc *service.Service, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

// Handle processes the /stats command.
func (h *StatsHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if !isGroup(message.Chat) {
		reply(bot, message, "ℹ️ This command only works in groups.")
		return nil
	}

	active, err := h.svc.TopActive(context.Background(), message.Chat.ID)
	if err != nil {
		return fmt.Errorf("top active: %w", err)
	}
	if len(active) == 0 {
		reply(bot, message, "📊 No messages counted yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>Top %d members</b>\n\n", service.StatsLimit))
	for i, m := range active {
		sb.WriteString(fmt.Sprintf("%d. %s — %d\n", i+1, html.EscapeString(m.User.DisplayName()), m.MessageCount))
	}

	reply(bot, message, sb.String())
	return nil
}

// ---------------------------------------------------------------------------
// MyChatsHandler – /mychats (private chat only)
// ---------------------------------------------------------------------------

// MyChatsHandler lists the chats the sender belongs to.
type MyChatsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewMyChatsHandler creates a new MyChatsHandler.
func NewMyChatsHandler(svc *service.Service, logger *logrus.Logger) *MyChatsHandler {
	return &MyChatsHandler{svc: svc, logger: logger}
}

// Handle processes the /mychats command.
func (h *MyChatsHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if !message.Chat.IsPrivate() {
		reply(bot, message, "ℹ️ Send me /mychats in a private chat.")
		return nil
	}

	chats, err := h.svc.UserChats(context.Background(), message.From.ID)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		reply(bot, message, "💭 I have not seen you in any chat yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("💬 <b>Your chats</b>\n\n")
	for _, c := range chats {
		sb.WriteString(fmt.Sprintf("• %s — %s\n", chatLabel(c.Chat), c.Rank.Title()))
	}

	reply(bot, message, sb.String())
	return nil
}

func chatLabel(c models.Chat) string {
	title := html.EscapeString(c.Title)
	if title == "" {
		title = "Untitled chat"
	}
	if link := c.Link(); link != "" {
		return fmt.Sprintf(`<a href="%s">%s</a>`, link, title)
	}
	return title
}
