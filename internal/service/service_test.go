package service

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository/memory"
)

const chatID = int64(-100777)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := memory.New()
	return New(logger, store.Users(), store.Chats(), store.Members(), store.Warnings())
}

var (
	alice = models.User{ID: 1, Username: "alice", FirstName: "Alice"}
	bob   = models.User{ID: 2, Username: "bob_b", FirstName: "Bob"}
	group = models.Chat{ID: chatID, Title: "Readers", Type: "supergroup"}
)

func TestTrackMessageAndProfile(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.TrackMessage(ctx, alice, group))
	}
	_, err := s.Warnings.Add(ctx, &models.Warning{UserID: alice.ID, ChatID: chatID, IssuedBy: 9})
	require.NoError(t, err)

	p, err := s.Profile(ctx, alice.ID, chatID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Alice", p.User.FirstName)
	assert.Equal(t, models.RankParticipant, p.Rank)
	assert.Equal(t, int64(3), p.MessageCount)
	assert.Equal(t, int64(3), p.Today)
	assert.Equal(t, 1, p.Warnings)

	chat, err := s.Chats.GetByID(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, "Readers", chat.Title)
}

func TestProfileUnknownUser(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	p, err := s.Profile(context.Background(), 404, chatID)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestJoinDoesNotCountMessage(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()

	m, err := s.Join(ctx, bob, group)
	require.NoError(t, err)
	assert.Equal(t, models.RankParticipant, m.Rank)
	assert.Zero(t, m.MessageCount)

	chats, err := s.UserChats(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, chatID, chats[0].Chat.ID)
}

func TestNicknameAndDescriptionLimits(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.TrackMessage(ctx, alice, group))

	assert.ErrorIs(t, s.SetNickname(ctx, alice.ID, strings.Repeat("я", MaxNicknameLength+1)), ErrNicknameTooLong)
	require.NoError(t, s.SetNickname(ctx, alice.ID, strings.Repeat("я", MaxNicknameLength)))

	assert.ErrorIs(t, s.SetDescription(ctx, alice.ID, strings.Repeat("x", MaxDescriptionLength+1)), ErrDescriptionTooLong)
	require.NoError(t, s.SetDescription(ctx, alice.ID, "  reads a lot  "))

	u, err := s.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "reads a lot", u.Description)

	assert.ErrorIs(t, s.SetNickname(ctx, 404, "ghost"), ErrUnknownUser)
}

func TestProfileFieldsSurviveUpsert(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.TrackMessage(ctx, alice, group))
	require.NoError(t, s.SetNickname(ctx, alice.ID, "Ally"))

	renamed := alice
	renamed.FirstName = "Alicia"
	require.NoError(t, s.TrackMessage(ctx, renamed, group))

	u, err := s.Users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ally", u.Nickname)
	assert.Equal(t, "Alicia", u.FirstName)
}

func TestFindTarget(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.TrackMessage(ctx, alice, group))
	require.NoError(t, s.TrackMessage(ctx, bob, group))
	require.NoError(t, s.SetNickname(ctx, bob.ID, "Bobby"))

	cases := map[string]int64{
		"@alice": alice.ID,
		"@BOB_B": bob.ID,
		"Bobby":  bob.ID,
		"Alice":  alice.ID,
		"2":      bob.ID,
		"555":    555,
	}
	for ref, want := range cases {
		u, err := s.FindTarget(ctx, chatID, ref)
		require.NoError(t, err, ref)
		require.NotNil(t, u, ref)
		assert.Equal(t, want, u.ID, ref)
	}

	for _, ref := range []string{"", "@carol", "Carol", "-5"} {
		u, err := s.FindTarget(ctx, chatID, ref)
		require.NoError(t, err, ref)
		assert.Nil(t, u, ref)
	}

	// Lookups are scoped to the chat.
	u, err := s.FindTarget(ctx, chatID-1, "@alice")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestStaffAndTopActive(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.TrackMessage(ctx, alice, group))
	require.NoError(t, s.TrackMessage(ctx, bob, group))
	require.NoError(t, s.TrackMessage(ctx, bob, group))
	require.NoError(t, s.Members.SetRank(ctx, alice.ID, chatID, models.RankModerator))

	staff, err := s.Staff(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, alice.ID, staff[0].User.ID)

	active, err := s.TopActive(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, bob.ID, active[0].User.ID)
	assert.Equal(t, int64(2), active[0].MessageCount)
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartSweeper(ctx, 5*time.Millisecond, func() (int, int) {
			calls.Add(1)
			return 1, 0
		})
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
