package moderation

import (
	"fmt"
	"slices"

	"github.com/Kerhoff/custos/internal/models"
)

// Command is a moderation command subject to rank checks.
type Command string

const (
	CommandUpstaff Command = "upstaff"
	CommandBan     Command = "ban"
	CommandWarn    Command = "warn"
	CommandKick    Command = "kick"
)

var commandPermissions = map[Command][]models.Rank{
	CommandUpstaff: {models.RankAdministrator, models.RankOwner},
	CommandBan:     {models.RankAdministrator, models.RankOwner},
	CommandWarn:    {models.RankModerator, models.RankAdministrator, models.RankOwner},
	CommandKick:    {models.RankModerator, models.RankAdministrator, models.RankOwner},
}

// AllowedRanks returns the ranks permitted to issue cmd.
func AllowedRanks(cmd Command) []models.Rank {
	return slices.Clone(commandPermissions[cmd])
}

// CheckCommandPermission denies any rank outside the command's allow-set.
// Unknown commands have an empty allow-set.
func CheckCommandPermission(actor models.Rank, cmd Command) error {
	if !slices.Contains(commandPermissions[cmd], actor) {
		return fmt.Errorf("%w: %s cannot use /%s", ErrInsufficientPermission, actor, cmd)
	}
	return nil
}

// CanModerate reports whether actor strictly outranks target.
func CanModerate(actor, target models.Rank) bool {
	return actor.Valid() && target.Valid() && actor > target
}

// moderates reports whether the command acts on a target that must be
// outranked by the actor.
func (c Command) moderates() bool {
	return c == CommandBan || c == CommandKick || c == CommandWarn
}
