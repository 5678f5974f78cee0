package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

// Punisher removes users from chats on the chat platform.
type Punisher interface {
	Ban(ctx context.Context, chatID, userID int64) error
	Unban(ctx context.Context, chatID, userID int64) error
}

// Outcome classifies the result of a command.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeNeedsConfirmation
	OutcomeDenied
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNeedsConfirmation:
		return "needs_confirmation"
	case OutcomeDenied:
		return "denied"
	default:
		return "failed"
	}
}

// Request is a moderation command issued by an actor in a chat. TargetID
// is zero when the command named nobody resolvable.
type Request struct {
	Command  Command
	ChatID   int64
	ActorID  int64
	TargetID int64
	Reason   string
	// Delta is the number of levels /upstaff moves the target.
	Delta int
}

// Result is the structured outcome of a command. Err holds the denial
// category for OutcomeDenied and the failure detail for OutcomeFailed.
type Result struct {
	Outcome    Outcome
	Command    Command
	Err        error
	ActorRank  models.Rank
	TargetRank models.Rank
	NewRank    models.Rank
	Warnings   int
	Escalation Escalation
	// AutobanErr is set when the warning threshold was reached but the ban
	// itself failed. The warning stays recorded.
	AutobanErr error
	Transfer   *models.PendingTransfer
	RetryAfter time.Duration
}

// Dependencies wires an Engine.
type Dependencies struct {
	Resolver  *Resolver
	Limiter   *RateLimiter
	Transfers *TransferTable
	Ranks     repository.RankStore
	Warnings  repository.WarningRepository
	Platform  Punisher
	Policy    Policy
	Metrics   *Metrics
	Logger    *logrus.Logger
}

// Engine authorizes moderation commands and applies their effects.
type Engine struct {
	resolver  *Resolver
	limiter   *RateLimiter
	transfers *TransferTable
	ranks     repository.RankStore
	warnings  repository.WarningRepository
	platform  Punisher
	policy    Policy
	metrics   *Metrics
	logger    *logrus.Logger
}

// NewEngine creates an Engine from its dependencies.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{
		resolver:  deps.Resolver,
		limiter:   deps.Limiter,
		transfers: deps.Transfers,
		ranks:     deps.Ranks,
		warnings:  deps.Warnings,
		platform:  deps.Platform,
		policy:    deps.Policy,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// Policy returns the warning escalation policy in use.
func (e *Engine) Policy() Policy {
	return e.policy
}

// TransferTTL returns how long ownership proposals stay confirmable.
func (e *Engine) TransferTTL() time.Duration {
	return e.transfers.TTL()
}

// AuthorizeAndExecute runs the full authorization pipeline for req and,
// when allowed, applies its effect. The rate limit is consulted before any
// target lookup, so a throttled attempt never queries the target's rank.
func (e *Engine) AuthorizeAndExecute(ctx context.Context, req Request) (res Result) {
	res.Command = req.Command
	defer func() { e.finish(req, res) }()

	actor := e.resolver.Resolve(ctx, req.ActorID, req.ChatID)
	res.ActorRank = actor.Rank

	if err := CheckCommandPermission(actor.Rank, req.Command); err != nil {
		return denied(res, err)
	}

	if err := e.limiter.CheckAndRecord(req.ActorID, req.Command, actor.Rank); err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			res.RetryAfter = rl.RetryAfter
		}
		e.metrics.throttled(req.Command)
		return denied(res, err)
	}

	if req.TargetID == 0 {
		return denied(res, fmt.Errorf("%w: no target given", ErrTargetNotFound))
	}

	target := e.resolver.Resolve(ctx, req.TargetID, req.ChatID)
	res.TargetRank = target.Rank
	if !target.Known {
		return denied(res, fmt.Errorf("%w: rank of %d could not be determined", ErrTargetNotFound, req.TargetID))
	}

	if req.Command.moderates() && !CanModerate(actor.Rank, target.Rank) {
		return denied(res, fmt.Errorf("%w: %s cannot act on %s", ErrInsufficientAuthority, actor.Rank, target.Rank))
	}

	switch req.Command {
	case CommandBan:
		return e.ban(ctx, req, res)
	case CommandKick:
		return e.kick(ctx, req, res)
	case CommandWarn:
		return e.warn(ctx, req, res)
	case CommandUpstaff:
		return e.upstaff(ctx, req, res)
	}
	return denied(res, fmt.Errorf("%w: unknown command %q", ErrInsufficientPermission, req.Command))
}

func (e *Engine) ban(ctx context.Context, req Request, res Result) Result {
	if err := e.platform.Ban(ctx, req.ChatID, req.TargetID); err != nil {
		return failed(res, fmt.Errorf("ban user %d: %w", req.TargetID, err))
	}
	res.Outcome = OutcomeApplied
	return res
}

// kick is a ban immediately followed by an unban, so the user may rejoin.
func (e *Engine) kick(ctx context.Context, req Request, res Result) Result {
	if err := e.platform.Ban(ctx, req.ChatID, req.TargetID); err != nil {
		return failed(res, fmt.Errorf("kick user %d: %w", req.TargetID, err))
	}
	if err := e.platform.Unban(ctx, req.ChatID, req.TargetID); err != nil {
		return failed(res, fmt.Errorf("lift kick ban for user %d: %w", req.TargetID, err))
	}
	res.Outcome = OutcomeApplied
	return res
}

func (e *Engine) warn(ctx context.Context, req Request, res Result) Result {
	count, err := e.warnings.Add(ctx, &models.Warning{
		UserID:   req.TargetID,
		ChatID:   req.ChatID,
		Reason:   req.Reason,
		IssuedBy: req.ActorID,
	})
	if err != nil {
		return failed(res, fmt.Errorf("record warning: %w", err))
	}

	res.Outcome = OutcomeApplied
	res.Warnings = count
	res.Escalation = e.policy.Evaluate(count)

	if res.Escalation == EscalationAutoban {
		e.metrics.autoban()
		if err := e.platform.Ban(ctx, req.ChatID, req.TargetID); err != nil {
			res.AutobanErr = err
		}
	}
	return res
}

func (e *Engine) upstaff(ctx context.Context, req Request, res Result) Result {
	p, err := ResolvePromotion(res.ActorRank, res.TargetRank, req.Delta)
	res.NewRank = p.To
	if err != nil {
		return denied(res, err)
	}

	if p.NeedsConfirmation {
		pending, err := e.transfers.Propose(req.ChatID, req.ActorID, req.TargetID)
		if err != nil {
			return denied(res, err)
		}
		res.Outcome = OutcomeNeedsConfirmation
		res.Transfer = &pending
		return res
	}

	if err := e.ranks.SetRank(ctx, req.TargetID, req.ChatID, p.To); err != nil {
		return failed(res, fmt.Errorf("set rank: %w", err))
	}
	res.Outcome = OutcomeApplied
	return res
}

// ConfirmTransfer completes a pending ownership transfer. The confirmer
// must be the proposer and must still resolve to owner right now.
func (e *Engine) ConfirmTransfer(ctx context.Context, chatID, confirmer int64, token string) (res Result) {
	res.Command = CommandUpstaff
	req := Request{Command: CommandUpstaff, ChatID: chatID, ActorID: confirmer}
	defer func() { e.finish(req, res) }()

	p, err := e.transfers.Claim(chatID, token, confirmer)
	if err != nil {
		return denied(res, err)
	}
	req.TargetID = p.Target
	res.Transfer = &p

	actor := e.resolver.Resolve(ctx, confirmer, chatID)
	res.ActorRank = actor.Rank
	if !actor.Known || actor.Rank != models.RankOwner {
		return denied(res, fmt.Errorf("%w: confirmer is no longer the owner", ErrTransferConflict))
	}

	if err := e.ranks.TransferOwnership(ctx, chatID, p.Proposer, p.Target); err != nil {
		if errors.Is(err, repository.ErrNotOwner) {
			return denied(res, fmt.Errorf("%w: %w", ErrTransferConflict, err))
		}
		e.transfers.Restore(p)
		return failed(res, err)
	}

	res.Outcome = OutcomeApplied
	res.NewRank = models.RankOwner
	return res
}

// CancelTransfer withdraws the chat's pending transfer on behalf of its proposer.
func (e *Engine) CancelTransfer(chatID, userID int64, token string) error {
	if err := e.transfers.Cancel(chatID, token, userID); err != nil {
		return err
	}
	e.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"user_id": userID,
	}).Info("Ownership transfer cancelled")
	return nil
}

// Sweep expires stale transfer proposals and rate-limit entries.
func (e *Engine) Sweep() (transfers, rateEntries int) {
	return e.transfers.Sweep(), e.limiter.Prune()
}

func (e *Engine) finish(req Request, res Result) {
	e.metrics.decision(req.Command, res.Outcome)

	entry := e.logger.WithFields(logrus.Fields{
		"command":   req.Command,
		"chat_id":   req.ChatID,
		"user_id":   req.ActorID,
		"target_id": req.TargetID,
		"outcome":   res.Outcome.String(),
	})
	switch res.Outcome {
	case OutcomeFailed:
		entry.WithError(res.Err).Error("Moderation command failed")
	case OutcomeDenied:
		entry.WithField("reason", res.Err.Error()).Info("Moderation command denied")
	default:
		if res.AutobanErr != nil {
			entry = entry.WithField("autoban_error", res.AutobanErr.Error())
		}
		entry.Info("Moderation command executed")
	}
}

func denied(res Result, err error) Result {
	res.Outcome = OutcomeDenied
	res.Err = err
	return res
}

func failed(res Result, err error) Result {
	res.Outcome = OutcomeFailed
	res.Err = err
	return res
}
