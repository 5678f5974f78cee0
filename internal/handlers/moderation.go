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
	"github.com/Kerhoff/custos/internal/moderation"
	"github.com/Kerhoff/custos/internal/service"
	"github.com/Kerhoff/custos/internal/telegram"
)

// DefaultReason is recorded when a command gives none.
const DefaultReason = "No reason given"

// Callback prefixes of the ownership transfer keyboard.
const (
	TransferConfirmPrefix = "transfer_confirm"
	TransferCancelPrefix  = "transfer_cancel"
)

// ---------------------------------------------------------------------------
// PunishHandler – /ban, /kick, /warn [user] [reason]
// ---------------------------------------------------------------------------

// PunishHandler runs one of the target-and-reason moderation commands.
type PunishHandler struct {
	command moderation.Command
	engine  *moderation.Engine
	svc     *service.Service
	logger  *logrus.Logger
}

// NewPunishHandler creates a handler for /ban, /kick or /warn.
func NewPunishHandler(command moderation.Command, engine *moderation.Engine, svc *service.Service, logger *logrus.Logger) *PunishHandler {
	return &PunishHandler{command: command, engine: engine, svc: svc, logger: logger}
}

// Handle processes the command.
func (h *PunishHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if !isGroup(message.Chat) {
		reply(bot, message, "ℹ️ This command only works in groups.")
		return nil
	}
	ctx := context.Background()

	target, rest, err := resolveTarget(ctx, h.svc, message, args)
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}

	reason := strings.TrimSpace(strings.Join(rest, " "))
	if reason == "" {
		reason = DefaultReason
	}

	req := moderation.Request{
		Command: h.command,
		ChatID:  message.Chat.ID,
		ActorID: message.From.ID,
		Reason:  reason,
	}
	if target != nil {
		req.TargetID = target.ID
	}

	res := h.engine.AuthorizeAndExecute(ctx, req)
	if res.Outcome != moderation.OutcomeApplied {
		reply(bot, message, outcomeText(res))
		return nil
	}

	who := mention(*target)
	why := html.EscapeString(reason)

	switch h.command {
	case moderation.CommandBan:
		reply(bot, message, fmt.Sprintf("🔨 %s was banned.\n<b>Reason:</b> %s", who, why))
	case moderation.CommandKick:
		reply(bot, message, fmt.Sprintf("👢 %s was kicked.\n<b>Reason:</b> %s", who, why))
	case moderation.CommandWarn:
		text := fmt.Sprintf("⚠️ %s was warned (%d/%d).\n<b>Reason:</b> %s",
			who, res.Warnings, h.engine.Policy().Threshold(), why)
		if res.Escalation == moderation.EscalationAutoban {
			if res.AutobanErr != nil {
				text += "\n❌ The warning limit is reached but I could not ban them."
			} else {
				text += "\n🔨 The warning limit is reached, they were banned."
			}
		}
		reply(bot, message, text)
	}
	return nil
}

// ---------------------------------------------------------------------------
// UpstaffHandler – /upstaff [levels] [user]
// ---------------------------------------------------------------------------

// UpstaffHandler changes a member's rank by a number of levels.
type UpstaffHandler struct {
	engine *moderation.Engine
	svc    *service.Service
	logger *logrus.Logger
}

// NewUpstaffHandler creates a new UpstaffHandler.
func NewUpstaffHandler(engine *moderation.Engine, svc *service.Service, logger *logrus.Logger) *UpstaffHandler {
	return &UpstaffHandler{engine: engine, svc: svc, logger: logger}
}

// Handle processes the /upstaff command.
func (h *UpstaffHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if !isGroup(message.Chat) {
		reply(bot, message, "ℹ️ This command only works in groups.")
		return nil
	}
	ctx := context.Background()

	delta, args, err := parseDelta(args)
	if err != nil {
		reply(bot, message, "⚠️ The level count is out of range.")
		return nil
	}
	target, _, err := resolveTarget(ctx, h.svc, message, args)
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}

	req := moderation.Request{
		Command: moderation.CommandUpstaff,
		ChatID:  message.Chat.ID,
		ActorID: message.From.ID,
		Delta:   delta,
	}
	if target != nil {
		req.TargetID = target.ID
	}

	res := h.engine.AuthorizeAndExecute(ctx, req)
	switch res.Outcome {
	case moderation.OutcomeApplied:
		reply(bot, message, fmt.Sprintf("✅ %s is now %s (was %s).",
			mention(*target), res.NewRank.Title(), res.TargetRank.Title()))
	case moderation.OutcomeNeedsConfirmation:
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf(
			"👑 Transfer ownership of this chat to %s?\nYou will become an administrator. This request expires in %s.",
			mention(*target), humanDuration(h.engine.TransferTTL())))
		msg.ParseMode = tgbotapi.ModeHTML
		msg.ReplyMarkup = transferKeyboard(res.Transfer.Token)
		bot.Send(msg)
	default:
		reply(bot, message, outcomeText(res))
	}
	return nil
}

func transferKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", telegram.CallbackData(TransferConfirmPrefix, token)),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", telegram.CallbackData(TransferCancelPrefix, token)),
		),
	)
}

// ---------------------------------------------------------------------------
// Transfer keyboard callbacks
// ---------------------------------------------------------------------------

// TransferConfirmHandler completes an ownership transfer from the keyboard.
type TransferConfirmHandler struct {
	engine *moderation.Engine
	svc    *service.Service
	logger *logrus.Logger
}

// NewTransferConfirmHandler creates a new TransferConfirmHandler.
func NewTransferConfirmHandler(engine *moderation.Engine, svc *service.Service, logger *logrus.Logger) *TransferConfirmHandler {
	return &TransferConfirmHandler{engine: engine, svc: svc, logger: logger}
}

// HandleCallback confirms the transfer identified by token.
func (h *TransferConfirmHandler) HandleCallback(bot telegram.Sender, query *tgbotapi.CallbackQuery, token string) (string, error) {
	if query.Message == nil {
		return "", nil
	}
	ctx := context.Background()
	chatID := query.Message.Chat.ID

	res := h.engine.ConfirmTransfer(ctx, chatID, query.From.ID, token)
	switch res.Outcome {
	case moderation.OutcomeApplied:
		target := models.User{ID: res.Transfer.Target}
		if u, err := h.svc.Users.GetByID(ctx, res.Transfer.Target); err == nil && u != nil {
			target = *u
		}
		editMessage(bot, query.Message, fmt.Sprintf("👑 %s is the new owner of this chat.", mention(target)))
		return "Ownership transferred", nil
	case moderation.OutcomeFailed:
		return "", res.Err
	}

	// A foreign confirmer must not disturb the prompt.
	if res.Transfer == nil {
		return denialNotice(res.Err), nil
	}
	editMessage(bot, query.Message, "⚠️ Ownership transfer was not completed.")
	return denialNotice(res.Err), nil
}

// TransferCancelHandler withdraws an ownership transfer from the keyboard.
type TransferCancelHandler struct {
	engine *moderation.Engine
	logger *logrus.Logger
}

// NewTransferCancelHandler creates a new TransferCancelHandler.
func NewTransferCancelHandler(engine *moderation.Engine, logger *logrus.Logger) *TransferCancelHandler {
	return &TransferCancelHandler{engine: engine, logger: logger}
}

// HandleCallback cancels the transfer identified by token.
func (h *TransferCancelHandler) HandleCallback(bot telegram.Sender, query *tgbotapi.CallbackQuery, token string) (string, error) {
	if query.Message == nil {
		return "", nil
	}
	if err := h.engine.CancelTransfer(query.Message.Chat.ID, query.From.ID, token); err != nil {
		if moderation.IsDenial(err) {
			return denialNotice(err), nil
		}
		return "", err
	}
	editMessage(bot, query.Message, "✖️ Ownership transfer cancelled.")
	return "Cancelled", nil
}

func editMessage(bot telegram.Sender, message *tgbotapi.Message, text string) {
	edit := tgbotapi.NewEditMessageText(message.Chat.ID, message.MessageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	bot.Send(edit)
}

// ---------------------------------------------------------------------------
// StaffHandler – /staff
// ---------------------------------------------------------------------------

// StaffHandler lists the chat's staff grouped by rank.
type StaffHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(svc *service.Service, logger *logrus.Logger) *StaffHandler {
	return &StaffHandler{svc: svc, logger: logger}
}

// Handle processes the /staff command.
func (h *StaffHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	if !isGroup(message.Chat) {
		reply(bot, message, "ℹ️ This command only works in groups.")
		return nil
	}

	staff, err := h.svc.Staff(context.Background(), message.Chat.ID)
	if err != nil {
		return fmt.Errorf("list staff: %w", err)
	}
	if len(staff) == 0 {
		reply(bot, message, "👥 This chat has no staff yet.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("👥 <b>Staff</b>\n")

	current := models.Rank(-1)
	for _, m := range staff {
		if m.Rank != current {
			current = m.Rank
			sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", rankHeading(current)))
		}
		sb.WriteString(fmt.Sprintf("• %s\n", mention(m.User)))
	}

	reply(bot, message, sb.String())
	return nil
}

func rankHeading(r models.Rank) string {
	switch r {
	case models.RankOwner:
		return "👑 Owner"
	case models.RankAdministrator:
		return "⭐ Administrators"
	case models.RankModerator:
		return "🛡 Moderators"
	}
	return r.Title()
}

// outcomeText renders a non-applied result for the chat.
func outcomeText(res moderation.Result) string {
	if res.Outcome == moderation.OutcomeFailed {
		return "❌ Telegram refused the action. Make sure I am an administrator with ban rights."
	}

	switch {
	case errors.Is(res.Err, moderation.ErrInsufficientPermission):
		return fmt.Sprintf("⛔ %ss cannot use /%s.", res.ActorRank.Title(), res.Command)
	case errors.Is(res.Err, moderation.ErrRateLimited):
		return fmt.Sprintf("⏳ You can use /%s again in %s.", res.Command, humanDuration(res.RetryAfter))
	case errors.Is(res.Err, moderation.ErrTargetNotFound):
		return "❓ I could not find that user. Reply to one of their messages or name them."
	case errors.Is(res.Err, moderation.ErrInsufficientAuthority):
		return "⛔ You cannot do that to this member."
	case errors.Is(res.Err, moderation.ErrNoOpPromotion):
		return fmt.Sprintf("ℹ️ That would not change their rank (%s).", res.TargetRank.Title())
	case errors.Is(res.Err, moderation.ErrTransferConflict):
		return "⚠️ An ownership transfer is already waiting for confirmation."
	}
	return "⛔ Denied."
}

func denialNotice(err error) string {
	if errors.Is(err, moderation.ErrTransferConflict) {
		return "This transfer is not yours to confirm or is no longer valid"
	}
	return "Not allowed"
}
