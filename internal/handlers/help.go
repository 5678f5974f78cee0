package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/service"
	"github.com/Kerhoff/custos/internal/telegram"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	autobanAt int
	logger    *logrus.Logger
}

func NewHelpHandler(autobanAt int, logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{autobanAt: autobanAt, logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	helpText := fmt.Sprintf(`📚 <b>Custos Help</b>

<b>Moderation</b> (reply to a message or name the user):
• /warn [user] [reason] - Warn a member, %d warnings ban
• /kick [user] [reason] - Remove a member, they may rejoin
• /ban [user] [reason] - Ban a member
• /upstaff [levels] [user] - Raise or lower a rank, e.g. <code>/upstaff -1 @bob</code>
• /staff - Show the chat staff

<b>Profile:</b>
• /me - Your profile
• /you [user] - Someone else's profile
• /nickname &lt;text&gt; - Set your nickname (up to %d characters)
• /description &lt;text&gt; - Set your description (up to %d characters)
• /stats - Most active members
• /mychats - Your chats (private chat only)

<i>Ranks: Participant → Moderator → Administrator → Owner.
Moderators may warn and kick, administrators and owners can do everything.</i>`,
		h.autobanAt, service.MaxNicknameLength, service.MaxDescriptionLength)

	msg := tgbotapi.NewMessage(message.Chat.ID, helpText)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}).Info("Sent help message")

	return nil
}
