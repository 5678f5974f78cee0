package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

// Profile field limits, in characters.
const (
	MaxNicknameLength    = 50
	MaxDescriptionLength = 200
)

// StatsLimit is the number of members shown by the activity ranking.
const StatsLimit = 20

var (
	ErrNicknameTooLong    = fmt.Errorf("nickname is longer than %d characters", MaxNicknameLength)
	ErrDescriptionTooLong = fmt.Errorf("description is longer than %d characters", MaxDescriptionLength)
	ErrUnknownUser        = errors.New("user has never been seen")
)

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the application.
type Service struct {
	logger   *logrus.Logger
	now      func() time.Time
	Users    repository.UserRepository
	Chats    repository.ChatRepository
	Members  repository.MemberRepository
	Warnings repository.WarningRepository
}

// New creates a new Service with all required dependencies.
func New(logger *logrus.Logger,
	users repository.UserRepository,
	chats repository.ChatRepository,
	members repository.MemberRepository,
	warnings repository.WarningRepository,
) *Service {
	return &Service{
		logger: logger, now: time.Now,
		Users: users, Chats: chats, Members: members, Warnings: warnings,
	}
}

// Profile is what /me and /you show about a member.
type Profile struct {
	User         models.User
	Rank         models.Rank
	MessageCount int64
	Today        int64
	Warnings     int
}

// EnsureUser stores the user's current Telegram profile. Nickname and
// description set through the bot are kept.
func (s *Service) EnsureUser(ctx context.Context, id int64, username, firstName, lastName string) (*models.User, error) {
	user, err := s.Users.Upsert(ctx, &models.User{
		ID:        id,
		Username:  strings.TrimSpace(username),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %d: %w", id, err)
	}
	return user, nil
}

// EnsureChat stores the chat's current title and type.
func (s *Service) EnsureChat(ctx context.Context, id int64, title, chatType string) (*models.Chat, error) {
	chat, err := s.Chats.Upsert(ctx, &models.Chat{ID: id, Title: title, Type: chatType})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert chat %d: %w", id, err)
	}
	return chat, nil
}

// Join registers the user as a member of the chat without counting a message.
func (s *Service) Join(ctx context.Context, user models.User, chat models.Chat) (*models.Member, error) {
	if _, err := s.EnsureUser(ctx, user.ID, user.Username, user.FirstName, user.LastName); err != nil {
		return nil, err
	}
	if _, err := s.EnsureChat(ctx, chat.ID, chat.Title, chat.Type); err != nil {
		return nil, err
	}
	member, err := s.Members.Ensure(ctx, user.ID, chat.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure member %d in %d: %w", user.ID, chat.ID, err)
	}
	return member, nil
}

// TrackMessage records one message from user in chat.
func (s *Service) TrackMessage(ctx context.Context, user models.User, chat models.Chat) error {
	if _, err := s.EnsureUser(ctx, user.ID, user.Username, user.FirstName, user.LastName); err != nil {
		return err
	}
	if _, err := s.EnsureChat(ctx, chat.ID, chat.Title, chat.Type); err != nil {
		return err
	}
	if err := s.Members.RecordMessage(ctx, user.ID, chat.ID, s.now()); err != nil {
		return fmt.Errorf("failed to record message of %d in %d: %w", user.ID, chat.ID, err)
	}
	return nil
}

// Profile assembles the member's profile in chat. It returns nil if the
// user is unknown.
func (s *Service) Profile(ctx context.Context, userID, chatID int64) (*Profile, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, nil
	}

	p := &Profile{User: *user, Rank: models.RankParticipant}

	member, err := s.Members.GetMember(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %d in %d: %w", userID, chatID, err)
	}
	if member != nil {
		p.Rank = member.Rank
		p.MessageCount = member.MessageCount
	}

	if p.Today, err = s.Members.DailyCount(ctx, userID, chatID, s.now()); err != nil {
		return nil, fmt.Errorf("failed to get daily count: %w", err)
	}
	if p.Warnings, err = s.Warnings.Count(ctx, userID, chatID); err != nil {
		return nil, fmt.Errorf("failed to count warnings: %w", err)
	}
	return p, nil
}

// Staff lists the chat's staff, highest rank first.
func (s *Service) Staff(ctx context.Context, chatID int64) ([]*models.StaffMember, error) {
	staff, err := s.Members.ListStaff(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff of %d: %w", chatID, err)
	}
	return staff, nil
}

// TopActive returns the StatsLimit most active members of the chat.
func (s *Service) TopActive(ctx context.Context, chatID int64) ([]*models.ActiveMember, error) {
	active, err := s.Members.TopActive(ctx, chatID, StatsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank members of %d: %w", chatID, err)
	}
	return active, nil
}

// UserChats lists the chats the user belongs to.
func (s *Service) UserChats(ctx context.Context, userID int64) ([]*models.UserChat, error) {
	chats, err := s.Chats.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats of %d: %w", userID, err)
	}
	return chats, nil
}

// SetNickname changes the user's in-bot nickname.
func (s *Service) SetNickname(ctx context.Context, userID int64, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return ErrNicknameTooLong
	}
	return s.updateProfile(ctx, userID, func() error {
		return s.Users.SetNickname(ctx, userID, nickname)
	})
}

// SetDescription changes the user's profile description.
func (s *Service) SetDescription(ctx context.Context, userID int64, description string) error {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return s.updateProfile(ctx, userID, func() error {
		return s.Users.SetDescription(ctx, userID, description)
	})
}

func (s *Service) updateProfile(ctx context.Context, userID int64, update func() error) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return ErrUnknownUser
	}
	if err := update(); err != nil {
		return fmt.Errorf("failed to update profile of %d: %w", userID, err)
	}
	return nil
}

// FindTarget resolves a command argument naming a user in the chat: a
// numeric id, an @username, a nickname, or a first name. It returns nil if
// nobody matches.
func (s *Service) FindTarget(ctx context.Context, chatID int64, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		user, err := s.Users.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user %d: %w", id, err)
		}
		if user == nil {
			return &models.User{ID: id}, nil
		}
		return user, nil
	}

	lookups := []repository.UserLookup{{Nickname: ref}, {FirstName: ref}}
	if name, ok := strings.CutPrefix(ref, "@"); ok {
		lookups = []repository.UserLookup{{Username: name}}
	}

	for _, lookup := range lookups {
		user, err := s.Users.FindInChat(ctx, chatID, lookup)
		if err != nil {
			return nil, fmt.Errorf("failed to find %q in %d: %w", ref, chatID, err)
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, nil
}
