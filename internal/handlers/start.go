package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/service"
	"github.com/Kerhoff/custos/internal/telegram"
)

// StartHandler handles the /start command
type StartHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(svc *service.Service, logger *logrus.Logger) *StartHandler {
	return &StartHandler{svc: svc, logger: logger}
}

// Handle registers the chat and the sender in groups and greets in private.
func (h *StartHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if message.Chat.IsPrivate() {
		reply(bot, message, `🛡 <b>Welcome to Custos!</b>

Add me to a group as an administrator with ban rights and I will keep order there.

Use /help to see what I can do, and /mychats to see your groups.`)
		return nil
	}

	ctx := context.Background()
	if _, err := h.svc.Join(ctx, fromTelegram(message.From), chatFromTelegram(message.Chat)); err != nil {
		return fmt.Errorf("join chat: %w", err)
	}

	reply(bot, message, "🛡 Custos is watching this chat. Use /help to see the commands.")

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Chat registered")

	return nil
}
