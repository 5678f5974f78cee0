package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/service"
)

// ActivityTracker counts group messages per member.
type ActivityTracker struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewActivityTracker creates a new ActivityTracker.
func NewActivityTracker(svc *service.Service, logger *logrus.Logger) *ActivityTracker {
	return &ActivityTracker{svc: svc, logger: logger}
}

// Observe records message. It is registered as a router message hook.
func (t *ActivityTracker) Observe(message *tgbotapi.Message) {
	if !isGroup(message.Chat) || message.From.IsBot {
		return
	}

	err := t.svc.TrackMessage(context.Background(), fromTelegram(message.From), chatFromTelegram(message.Chat))
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).WithError(err).Error("Failed to track message")
	}
}
