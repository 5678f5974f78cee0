package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/custos/internal/models"
)

// ChatMemberAPI is the part of the Bot API the platform adapter needs.
type ChatMemberAPI interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Platform answers membership queries and applies bans through the Bot API.
type Platform struct {
	api     ChatMemberAPI
	timeout time.Duration
}

// NewPlatform creates the adapter. Every call is bounded by timeout in
// addition to the caller's context.
func NewPlatform(api ChatMemberAPI, timeout time.Duration) *Platform {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Platform{api: api, timeout: timeout}
}

// QueryMembership returns the user's status in the chat.
func (p *Platform) QueryMembership(ctx context.Context, chatID, userID int64) (models.MemberStatus, error) {
	member, err := withTimeout(ctx, p.timeout, func() (tgbotapi.ChatMember, error) {
		return p.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
		})
	})
	if err != nil {
		return "", fmt.Errorf("get chat member %d in %d: %w", userID, chatID, err)
	}

	status, err := models.ParseMemberStatus(member.Status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// Ban removes the user from the chat until unbanned.
func (p *Platform) Ban(ctx context.Context, chatID, userID int64) error {
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	}
	if err := p.request(ctx, cfg); err != nil {
		return fmt.Errorf("ban %d in %d: %w", userID, chatID, err)
	}
	return nil
}

// Unban lifts a ban so the user may rejoin.
func (p *Platform) Unban(ctx context.Context, chatID, userID int64) error {
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	if err := p.request(ctx, cfg); err != nil {
		return fmt.Errorf("unban %d in %d: %w", userID, chatID, err)
	}
	return nil
}

func (p *Platform) request(ctx context.Context, c tgbotapi.Chattable) error {
	_, err := withTimeout(ctx, p.timeout, func() (*tgbotapi.APIResponse, error) {
		return p.api.Request(c)
	})
	return err
}

// withTimeout runs fn and gives up when ctx ends or timeout passes. The Bot
// API client takes no context, so an abandoned call finishes in the
// background and its result is dropped.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn()
		done <- result{val, err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
