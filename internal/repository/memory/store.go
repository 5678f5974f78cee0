// Package memory provides process-local implementations of the repository
// interfaces. State is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
)

type memberKey struct {
	userID int64
	chatID int64
}

type dayKey struct {
	memberKey
	day string
}

// Store holds every table behind one lock.
type Store struct {
	mu       sync.RWMutex
	users    map[int64]models.User
	chats    map[int64]models.Chat
	members  map[memberKey]models.Member
	warnings []models.Warning
	daily    map[dayKey]int64
	nextWarn int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:   make(map[int64]models.User),
		chats:   make(map[int64]models.Chat),
		members: make(map[memberKey]models.Member),
		daily:   make(map[dayKey]int64),
	}
}

func (s *Store) Users() repository.UserRepository       { return userRepository{s} }
func (s *Store) Chats() repository.ChatRepository       { return chatRepository{s} }
func (s *Store) Members() repository.MemberRepository   { return memberRepository{s} }
func (s *Store) Warnings() repository.WarningRepository { return warningRepository{s} }

type userRepository struct{ s *Store }

func (r userRepository) Upsert(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	existing, ok := r.s.users[user.ID]
	if ok {
		user.Nickname = existing.Nickname
		user.Description = existing.Description
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.s.users[user.ID] = *user

	return user, nil
}

func (r userRepository) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepository) FindInChat(_ context.Context, chatID int64, lookup repository.UserLookup) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var match func(u models.User) bool
	switch {
	case lookup.Username != "":
		match = func(u models.User) bool { return strings.EqualFold(u.Username, lookup.Username) }
	case lookup.Nickname != "":
		match = func(u models.User) bool { return u.Nickname == lookup.Nickname }
	case lookup.FirstName != "":
		match = func(u models.User) bool { return u.FirstName == lookup.FirstName }
	default:
		return nil, nil
	}

	var found *models.User
	for key, m := range r.s.members {
		if key.chatID != chatID {
			continue
		}
		u, ok := r.s.users[key.userID]
		if !ok || !match(u) {
			continue
		}
		if found == nil || m.UpdatedAt.After(r.s.members[memberKey{found.ID, chatID}].UpdatedAt) {
			u := u
			found = &u
		}
	}
	return found, nil
}

func (r userRepository) SetNickname(_ context.Context, id int64, nickname string) error {
	return r.update(id, func(u *models.User) { u.Nickname = nickname })
}

func (r userRepository) SetDescription(_ context.Context, id int64, description string) error {
	return r.update(id, func(u *models.User) { u.Description = description })
}

func (r userRepository) update(id int64, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return errUserNotFound(id)
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.s.users[id] = u
	return nil
}

type chatRepository struct{ s *Store }

func (r chatRepository) Upsert(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.chats[chat.ID]; ok {
		chat.AddedAt = existing.AddedAt
	} else {
		chat.AddedAt = time.Now()
	}
	r.s.chats[chat.ID] = *chat
	return chat, nil
}

func (r chatRepository) GetByID(_ context.Context, id int64) (*models.Chat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.chats[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r chatRepository) ListForUser(_ context.Context, userID int64) ([]*models.UserChat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var chats []*models.UserChat
	for key, m := range r.s.members {
		if key.userID != userID {
			continue
		}
		c, ok := r.s.chats[key.chatID]
		if !ok {
			continue
		}
		chats = append(chats, &models.UserChat{Chat: c, Rank: m.Rank})
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].Chat.Title < chats[j].Chat.Title })
	return chats, nil
}

type memberRepository struct{ s *Store }

func (r memberRepository) GetMember(_ context.Context, userID, chatID int64) (*models.Member, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.members[memberKey{userID, chatID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r memberRepository) SetRank(_ context.Context, userID, chatID int64, rank models.Rank) error {
	if !rank.Valid() {
		return errInvalidRank(rank)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m := r.s.memberLocked(userID, chatID)
	m.Rank = rank
	m.UpdatedAt = time.Now()
	r.s.members[memberKey{userID, chatID}] = m
	return nil
}

func (r memberRepository) TransferOwnership(_ context.Context, chatID, from, to int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	proposer, ok := r.s.members[memberKey{from, chatID}]
	if !ok || proposer.Rank != models.RankOwner {
		return repository.ErrNotOwner
	}

	now := time.Now()
	target := r.s.memberLocked(to, chatID)
	proposer.Rank, proposer.UpdatedAt = models.RankAdministrator, now
	target.Rank, target.UpdatedAt = models.RankOwner, now

	r.s.members[memberKey{from, chatID}] = proposer
	r.s.members[memberKey{to, chatID}] = target
	return nil
}

func (r memberRepository) Ensure(_ context.Context, userID, chatID int64) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := memberKey{userID, chatID}
	m := r.s.memberLocked(userID, chatID)
	r.s.members[key] = m
	return &m, nil
}

func (r memberRepository) RecordMessage(_ context.Context, userID, chatID int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := memberKey{userID, chatID}
	m := r.s.memberLocked(userID, chatID)
	m.MessageCount++
	r.s.members[key] = m
	r.s.daily[dayKey{key, at.Format(time.DateOnly)}]++
	return nil
}

func (r memberRepository) DailyCount(_ context.Context, userID, chatID int64, day time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.daily[dayKey{memberKey{userID, chatID}, day.Format(time.DateOnly)}], nil
}

func (r memberRepository) ListStaff(_ context.Context, chatID int64) ([]*models.StaffMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var staff []*models.StaffMember
	for key, m := range r.s.members {
		if key.chatID != chatID || !m.Rank.IsStaff() {
			continue
		}
		staff = append(staff, &models.StaffMember{User: r.s.userLocked(key.userID), Rank: m.Rank})
	}
	sort.Slice(staff, func(i, j int) bool {
		if staff[i].Rank != staff[j].Rank {
			return staff[i].Rank > staff[j].Rank
		}
		return staff[i].User.ID < staff[j].User.ID
	})
	return staff, nil
}

func (r memberRepository) TopActive(_ context.Context, chatID int64, limit int) ([]*models.ActiveMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var active []*models.ActiveMember
	for key, m := range r.s.members {
		if key.chatID != chatID || m.MessageCount == 0 {
			continue
		}
		active = append(active, &models.ActiveMember{User: r.s.userLocked(key.userID), MessageCount: m.MessageCount})
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].MessageCount != active[j].MessageCount {
			return active[i].MessageCount > active[j].MessageCount
		}
		return active[i].User.ID < active[j].User.ID
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

type warningRepository struct{ s *Store }

func (r warningRepository) Add(_ context.Context, warning *models.Warning) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if warning.IssuedAt.IsZero() {
		warning.IssuedAt = time.Now()
	}
	r.s.nextWarn++
	warning.ID = r.s.nextWarn
	r.s.warnings = append(r.s.warnings, *warning)

	return r.s.countLocked(warning.UserID, warning.ChatID), nil
}

func (r warningRepository) Count(_ context.Context, userID, chatID int64) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.countLocked(userID, chatID), nil
}

func (r warningRepository) List(_ context.Context, userID, chatID int64) ([]*models.Warning, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Warning
	for i := range r.s.warnings {
		w := r.s.warnings[i]
		if w.UserID == userID && w.ChatID == chatID {
			out = append(out, &w)
		}
	}
	return out, nil
}

// memberLocked returns the member record, or a fresh participant record.
func (s *Store) memberLocked(userID, chatID int64) models.Member {
	if m, ok := s.members[memberKey{userID, chatID}]; ok {
		return m
	}
	now := time.Now()
	return models.Member{
		UserID:    userID,
		ChatID:    chatID,
		Rank:      models.RankParticipant,
		JoinedAt:  now,
		UpdatedAt: now,
	}
}

func (s *Store) userLocked(id int64) models.User {
	if u, ok := s.users[id]; ok {
		return u
	}
	return models.User{ID: id}
}

func (s *Store) countLocked(userID, chatID int64) int {
	n := 0
	for _, w := range s.warnings {
		if w.UserID == userID && w.ChatID == chatID {
			n++
		}
	}
	return n
}
