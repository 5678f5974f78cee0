package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

// DefaultResolverTimeout bounds a single platform membership query.
const DefaultResolverTimeout = 5 * time.Second

// MembershipQuerier reports a user's membership status from the chat platform.
type MembershipQuerier interface {
	QueryMembership(ctx context.Context, chatID, userID int64) (models.MemberStatus, error)
}

// Source names where an effective rank came from.
type Source string

const (
	SourcePlatform Source = "platform"
	SourceStore    Source = "store"
	SourceDefault  Source = "default"
)

// Resolution is a user's effective rank. Known is false when the rank is a
// default guess, which moderation checks must treat as unresolvable.
type Resolution struct {
	Rank   models.Rank
	Known  bool
	Source Source
}

// Resolver reconciles platform membership status with the stored rank.
// Owner and administrator come from the platform; moderator is only
// known to the store.
type Resolver struct {
	platform MembershipQuerier
	ranks    repository.RankStore
	timeout  time.Duration
	logger   *logrus.Logger
	metrics  *Metrics
}

// NewResolver creates a resolver. A non-positive timeout means DefaultResolverTimeout.
func NewResolver(platform MembershipQuerier, ranks repository.RankStore, timeout time.Duration, logger *logrus.Logger, metrics *Metrics) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolverTimeout
	}
	return &Resolver{
		platform: platform,
		ranks:    ranks,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Resolve returns the effective rank of the user in the chat. It never
// fails: platform errors fall back to the stored rank, then to participant.
func (r *Resolver) Resolve(ctx context.Context, userID, chatID int64) Resolution {
	res := r.resolve(ctx, userID, chatID)
	r.metrics.resolution(res.Source)
	return res
}

func (r *Resolver) resolve(ctx context.Context, userID, chatID int64) Resolution {
	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	status, err := r.platform.QueryMembership(qctx, chatID, userID)
	cancel()
	if err == nil {
		_, err = models.ParseMemberStatus(string(status))
	}
	if err != nil {
		return r.fallback(ctx, userID, chatID, fmt.Errorf("%w: %w", ErrExternalResolution, err))
	}

	switch status {
	case models.MemberStatusLeft, models.MemberStatusKicked:
		return Resolution{Rank: models.RankParticipant, Known: true, Source: SourcePlatform}
	case models.MemberStatusCreator:
		return r.reconcile(ctx, userID, chatID, models.RankOwner)
	case models.MemberStatusAdministrator:
		return r.reconcile(ctx, userID, chatID, models.RankAdministrator)
	}

	stored, err := r.ranks.GetMember(ctx, userID, chatID)
	if err != nil {
		r.log(userID, chatID).WithError(err).Error("Failed to read stored rank")
		return Resolution{Rank: models.RankParticipant, Known: false, Source: SourceDefault}
	}

	rank := models.RankParticipant
	if stored != nil && stored.Rank == models.RankModerator {
		rank = models.RankModerator
	}
	r.writeBack(ctx, userID, chatID, stored, rank)
	return Resolution{Rank: rank, Known: true, Source: SourcePlatform}
}

func (r *Resolver) reconcile(ctx context.Context, userID, chatID int64, rank models.Rank) Resolution {
	stored, err := r.ranks.GetMember(ctx, userID, chatID)
	if err != nil {
		r.log(userID, chatID).WithError(err).Warn("Failed to read stored rank before reconciliation")
	}
	r.writeBack(ctx, userID, chatID, stored, rank)
	return Resolution{Rank: rank, Known: true, Source: SourcePlatform}
}

func (r *Resolver) writeBack(ctx context.Context, userID, chatID int64, stored *models.Member, rank models.Rank) {
	if stored != nil && stored.Rank == rank {
		return
	}
	if err := r.ranks.SetRank(ctx, userID, chatID, rank); err != nil {
		r.log(userID, chatID).WithError(err).Error("Failed to write back reconciled rank")
		return
	}
	r.log(userID, chatID).WithField("rank", rank.String()).Debug("Reconciled rank with platform status")
}

func (r *Resolver) fallback(ctx context.Context, userID, chatID int64, cause error) Resolution {
	entry := r.log(userID, chatID).WithError(cause)

	stored, err := r.ranks.GetMember(ctx, userID, chatID)
	if err != nil {
		entry.WithField("store_error", err.Error()).Warn("Rank unresolvable, no stored rank available")
		return Resolution{Rank: models.RankParticipant, Known: false, Source: SourceDefault}
	}
	if stored == nil {
		entry.Warn("Rank unresolvable, defaulting to participant")
		return Resolution{Rank: models.RankParticipant, Known: false, Source: SourceDefault}
	}

	entry.WithField("rank", stored.Rank.String()).Warn("Using stored rank after platform query failure")
	return Resolution{Rank: stored.Rank, Known: true, Source: SourceStore}
}

func (r *Resolver) log(userID, chatID int64) *logrus.Entry {
	return r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"chat_id": chatID,
	})
}
