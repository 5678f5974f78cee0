package moderation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/custos/internal/models"
)

func TestResolvePromotionZeroDeltaIsNoOp(t *testing.T) {
	t.Parallel()

	for _, r := range []models.Rank{models.RankParticipant, models.RankModerator, models.RankAdministrator} {
		p, err := ResolvePromotion(models.RankOwner, r, 0)
		assert.ErrorIs(t, err, ErrNoOpPromotion, r)
		assert.Equal(t, r, p.To)
	}

	_, err := ResolvePromotion(models.RankOwner, models.RankOwner, 0)
	assert.ErrorIs(t, err, ErrNoOpPromotion)
	_, err = ResolvePromotion(models.RankAdministrator, models.RankAdministrator, 0)
	assert.ErrorIs(t, err, ErrNoOpPromotion)
}

func TestResolvePromotionAdministratorOnOwner(t *testing.T) {
	t.Parallel()

	for delta := -5; delta <= 5; delta++ {
		_, err := ResolvePromotion(models.RankAdministrator, models.RankOwner, delta)
		assert.ErrorIs(t, err, ErrInsufficientAuthority, "delta %d", delta)
	}
}

func TestResolvePromotionImmediate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		actor, target models.Rank
		delta         int
		want          models.Rank
	}{
		{models.RankAdministrator, models.RankParticipant, 1, models.RankModerator},
		{models.RankAdministrator, models.RankParticipant, 2, models.RankAdministrator},
		{models.RankAdministrator, models.RankModerator, 1, models.RankAdministrator},
		{models.RankOwner, models.RankModerator, 1, models.RankAdministrator},
		{models.RankOwner, models.RankAdministrator, -1, models.RankModerator},
		{models.RankAdministrator, models.RankModerator, -5, models.RankParticipant},
		{models.RankOwner, models.RankAdministrator, math.MinInt, models.RankParticipant},
	}

	for _, tc := range cases {
		p, err := ResolvePromotion(tc.actor, tc.target, tc.delta)
		require.NoError(t, err, "%s moves %s by %d", tc.actor, tc.target, tc.delta)
		assert.Equal(t, tc.target, p.From)
		assert.Equal(t, tc.want, p.To)
		assert.False(t, p.NeedsConfirmation)
	}
}

func TestResolvePromotionCapsAtOwner(t *testing.T) {
	t.Parallel()

	p, err := ResolvePromotion(models.RankAdministrator, models.RankAdministrator, 10)
	assert.ErrorIs(t, err, ErrInsufficientAuthority)
	assert.Equal(t, models.RankOwner, p.To)
	assert.False(t, p.NeedsConfirmation)

	p, err = ResolvePromotion(models.RankOwner, models.RankAdministrator, 10)
	require.NoError(t, err)
	assert.Equal(t, models.RankOwner, p.To)
	assert.True(t, p.NeedsConfirmation)

	p, err = ResolvePromotion(models.RankOwner, models.RankParticipant, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, models.RankOwner, p.To)
	assert.True(t, p.NeedsConfirmation)
}

func TestResolvePromotionDemotionRules(t *testing.T) {
	t.Parallel()

	p, err := ResolvePromotion(models.RankAdministrator, models.RankAdministrator, -1)
	require.NoError(t, err)
	assert.Equal(t, models.RankModerator, p.To)
	assert.False(t, p.NeedsConfirmation)

	p, err = ResolvePromotion(models.RankAdministrator, models.RankAdministrator, -5)
	require.NoError(t, err)
	assert.Equal(t, models.RankParticipant, p.To)

	_, err = ResolvePromotion(models.RankOwner, models.RankOwner, -1)
	assert.ErrorIs(t, err, ErrInsufficientAuthority)

	_, err = ResolvePromotion(models.RankModerator, models.RankModerator, 1)
	require.NoError(t, err)
}

func TestResolvePromotionInvalidRank(t *testing.T) {
	t.Parallel()

	_, err := ResolvePromotion(models.Rank(7), models.RankParticipant, 1)
	assert.ErrorIs(t, err, ErrInsufficientAuthority)
}
