package moderation

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/custos/internal/models"
)

var allRanks = []models.Rank{
	models.RankParticipant,
	models.RankModerator,
	models.RankAdministrator,
	models.RankOwner,
}

func TestCheckCommandPermission(t *testing.T) {
	t.Parallel()

	allowed := map[Command][]models.Rank{
		CommandUpstaff: {models.RankAdministrator, models.RankOwner},
		CommandBan:     {models.RankAdministrator, models.RankOwner},
		CommandWarn:    {models.RankModerator, models.RankAdministrator, models.RankOwner},
		CommandKick:    {models.RankModerator, models.RankAdministrator, models.RankOwner},
	}

	for cmd, ranks := range allowed {
		assert.ElementsMatch(t, ranks, AllowedRanks(cmd), cmd)
		for _, r := range allRanks {
			err := CheckCommandPermission(r, cmd)
			if slices.Contains(ranks, r) {
				assert.NoError(t, err, "%s /%s", r, cmd)
			} else {
				assert.ErrorIs(t, err, ErrInsufficientPermission, "%s /%s", r, cmd)
			}
		}
	}
}

func TestCheckCommandPermissionUnknownCommand(t *testing.T) {
	t.Parallel()

	for _, r := range allRanks {
		assert.ErrorIs(t, CheckCommandPermission(r, Command("mute")), ErrInsufficientPermission)
	}
	assert.Empty(t, AllowedRanks(Command("mute")))
}

func TestAllowedRanksReturnsCopy(t *testing.T) {
	t.Parallel()

	ranks := AllowedRanks(CommandBan)
	require.NotEmpty(t, ranks)
	ranks[0] = models.RankParticipant

	assert.ErrorIs(t, CheckCommandPermission(models.RankParticipant, CommandBan), ErrInsufficientPermission)
}

func TestCanModerate(t *testing.T) {
	t.Parallel()

	for _, actor := range allRanks {
		for _, target := range allRanks {
			assert.Equal(t, actor > target, CanModerate(actor, target), "%s over %s", actor, target)
		}
	}

	assert.False(t, CanModerate(models.Rank(9), models.RankParticipant))
	assert.False(t, CanModerate(models.RankOwner, models.Rank(-1)))
}
