package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kerhoff/custos/internal/models"
)

// ErrNotOwner is returned by TransferOwnership when the proposer no longer
// holds the owner rank at write time.
var ErrNotOwner = errors.New("proposer is not the chat owner")

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	FindInChat(ctx context.Context, chatID int64, lookup UserLookup) (*models.User, error)
	SetNickname(ctx context.Context, id int64, nickname string) error
	SetDescription(ctx context.Context, id int64, description string) error
}

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	Upsert(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	GetByID(ctx context.Context, id int64) (*models.Chat, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.UserChat, error)
}

// RankStore is the persistent (user, chat) -> rank mapping used by the
// moderation core.
type RankStore interface {
	GetMember(ctx context.Context, userID, chatID int64) (*models.Member, error)
	SetRank(ctx context.Context, userID, chatID int64, rank models.Rank) error
	// TransferOwnership demotes from to administrator and promotes to to
	// owner as a single unit. Either both writes apply or neither does.
	TransferOwnership(ctx context.Context, chatID, from, to int64) error
}

// MemberRepository defines the interface for chat membership operations
type MemberRepository interface {
	RankStore
	Ensure(ctx context.Context, userID, chatID int64) (*models.Member, error)
	RecordMessage(ctx context.Context, userID, chatID int64, at time.Time) error
	DailyCount(ctx context.Context, userID, chatID int64, day time.Time) (int64, error)
	ListStaff(ctx context.Context, chatID int64) ([]*models.StaffMember, error)
	TopActive(ctx context.Context, chatID int64, limit int) ([]*models.ActiveMember, error)
}

// WarningRepository defines the interface for the warning log
type WarningRepository interface {
	// Add appends a warning and returns the new warning total for the
	// (user, chat) pair.
	Add(ctx context.Context, warning *models.Warning) (int, error)
	Count(ctx context.Context, userID, chatID int64) (int, error)
	List(ctx context.Context, userID, chatID int64) ([]*models.Warning, error)
}

// UserLookup selects a user inside a chat by one of their handles.
type UserLookup struct {
	Username  string
	Nickname  string
	FirstName string
}
