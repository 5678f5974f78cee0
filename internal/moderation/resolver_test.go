package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
	"github.com/Kerhoff/custos/internal/repository/memory"
)

func newTestResolver(platform MembershipQuerier, ranks repository.RankStore) (*Resolver, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewResolver(platform, ranks, 20*time.Millisecond, discardLogger(), metrics), metrics
}

func TestResolverStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status models.MemberStatus
		stored models.Rank
		want   models.Rank
	}{
		{models.MemberStatusCreator, models.RankParticipant, models.RankOwner},
		{models.MemberStatusAdministrator, models.RankModerator, models.RankAdministrator},
		{models.MemberStatusMember, models.RankModerator, models.RankModerator},
		{models.MemberStatusMember, models.RankAdministrator, models.RankParticipant},
		{models.MemberStatusRestricted, models.RankModerator, models.RankModerator},
		{models.MemberStatusRestricted, models.RankParticipant, models.RankParticipant},
		{models.MemberStatusLeft, models.RankModerator, models.RankParticipant},
		{models.MemberStatusKicked, models.RankAdministrator, models.RankParticipant},
	}

	for _, tc := range cases {
		ctx := context.Background()
		ranks := memory.New().Members()
		require.NoError(t, ranks.SetRank(ctx, 1, testChat, tc.stored))

		platform := newFakePlatform()
		platform.set(1, tc.status)
		r, _ := newTestResolver(platform, ranks)

		res := r.Resolve(ctx, 1, testChat)
		assert.Equal(t, tc.want, res.Rank, "%s stored as %s", tc.status, tc.stored)
		assert.True(t, res.Known)
		assert.Equal(t, SourcePlatform, res.Source)
	}
}

func TestResolverWritesBackPlatformRank(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ranks := memory.New().Members()

	platform := newFakePlatform()
	platform.set(1, models.MemberStatusCreator)
	platform.set(2, models.MemberStatusMember)
	platform.set(3, models.MemberStatusLeft)
	r, _ := newTestResolver(platform, ranks)

	r.Resolve(ctx, 1, testChat)
	r.Resolve(ctx, 2, testChat)
	r.Resolve(ctx, 3, testChat)

	owner, err := ranks.GetMember(ctx, 1, testChat)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, models.RankOwner, owner.Rank)

	member, err := ranks.GetMember(ctx, 2, testChat)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, models.RankParticipant, member.Rank)

	// Departed users are not written back.
	gone, err := ranks.GetMember(ctx, 3, testChat)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestResolverDemotedAdministratorIsReconciled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ranks := memory.New().Members()
	require.NoError(t, ranks.SetRank(ctx, 1, testChat, models.RankAdministrator))

	platform := newFakePlatform()
	platform.set(1, models.MemberStatusMember)
	r, _ := newTestResolver(platform, ranks)

	assert.Equal(t, models.RankParticipant, r.Resolve(ctx, 1, testChat).Rank)
	m, err := ranks.GetMember(ctx, 1, testChat)
	require.NoError(t, err)
	assert.Equal(t, models.RankParticipant, m.Rank)
}

func TestResolverFallsBackToStoredRank(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ranks := memory.New().Members()
	require.NoError(t, ranks.SetRank(ctx, 1, testChat, models.RankAdministrator))

	platform := newFakePlatform()
	platform.fail(1)
	platform.fail(2)
	r, metrics := newTestResolver(platform, ranks)

	stored := r.Resolve(ctx, 1, testChat)
	assert.Equal(t, Resolution{Rank: models.RankAdministrator, Known: true, Source: SourceStore}, stored)

	unknown := r.Resolve(ctx, 2, testChat)
	assert.Equal(t, Resolution{Rank: models.RankParticipant, Known: false, Source: SourceDefault}, unknown)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues(string(SourceStore))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues(string(SourceDefault))))
}

func TestResolverUnknownStatusFallsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ranks := memory.New().Members()
	require.NoError(t, ranks.SetRank(ctx, 1, testChat, models.RankModerator))

	platform := newFakePlatform()
	platform.set(1, models.MemberStatus("banished"))
	r, _ := newTestResolver(platform, ranks)

	res := r.Resolve(ctx, 1, testChat)
	assert.Equal(t, SourceStore, res.Source)
	assert.Equal(t, models.RankModerator, res.Rank)
}

func TestResolverQueryTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ranks := memory.New().Members()
	require.NoError(t, ranks.SetRank(ctx, 1, testChat, models.RankModerator))

	platform := newFakePlatform()
	platform.blocking = true
	r, _ := newTestResolver(platform, ranks)

	start := time.Now()
	res := r.Resolve(ctx, 1, testChat)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, SourceStore, res.Source)
	assert.Equal(t, models.RankModerator, res.Rank)
}

type brokenRanks struct {
	repository.RankStore
}

func (brokenRanks) GetMember(context.Context, int64, int64) (*models.Member, error) {
	return nil, errors.New("connection reset")
}

func TestResolverStoreFailureIsUnknown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	platform := newFakePlatform()
	platform.set(1, models.MemberStatusMember)
	r, _ := newTestResolver(platform, brokenRanks{memory.New().Members()})

	res := r.Resolve(ctx, 1, testChat)
	assert.False(t, res.Known)

	// Platform-sourced ranks do not depend on the store.
	platform.set(2, models.MemberStatusAdministrator)
	res = r.Resolve(ctx, 2, testChat)
	assert.True(t, res.Known)
	assert.Equal(t, models.RankAdministrator, res.Rank)
}

// Telegram keeps reporting the previous creator as creator and the new owner
// as a plain member, so the first resolutions after a transfer put the
// stored ranks back to what Telegram says.
func TestResolverRevertsBotSideOwnershipTransfer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ranks := memory.New().Members()

	require.NoError(t, ranks.SetRank(ctx, 1, testChat, models.RankOwner))
	require.NoError(t, ranks.TransferOwnership(ctx, testChat, 1, 2))

	platform := newFakePlatform()
	platform.set(1, models.MemberStatusCreator)
	platform.set(2, models.MemberStatusMember)
	r, _ := newTestResolver(platform, ranks)

	assert.Equal(t, models.RankOwner, r.Resolve(ctx, 1, testChat).Rank)
	assert.Equal(t, models.RankParticipant, r.Resolve(ctx, 2, testChat).Rank)

	previous, err := ranks.GetMember(ctx, 1, testChat)
	require.NoError(t, err)
	assert.Equal(t, models.RankOwner, previous.Rank)

	next, err := ranks.GetMember(ctx, 2, testChat)
	require.NoError(t, err)
	assert.Equal(t, models.RankParticipant, next.Rank)
}
