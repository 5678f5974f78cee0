package models

import (
	"database/sql/driver"
	"fmt"
)

// Rank is a member's authority level inside a chat. Ranks are totally
// ordered: a higher value outranks every lower one.
type Rank int

const (
	RankParticipant Rank = iota
	RankModerator
	RankAdministrator
	RankOwner
)

// MinRank and MaxRank bound the valid rank range.
const (
	MinRank = RankParticipant
	MaxRank = RankOwner
)

var rankNames = [...]string{
	RankParticipant:   "participant",
	RankModerator:     "moderator",
	RankAdministrator: "administrator",
	RankOwner:         "owner",
}

var rankTitles = [...]string{
	RankParticipant:   "Participant",
	RankModerator:     "Moderator",
	RankAdministrator: "Administrator",
	RankOwner:         "Owner",
}

// ParseRank converts the stored name of a rank back into a Rank.
func ParseRank(s string) (Rank, error) {
	for r, name := range rankNames {
		if name == s {
			return Rank(r), nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

// RankAt returns the rank at the given level, clamped to the valid range.
func RankAt(level int) Rank {
	if level < int(MinRank) {
		return MinRank
	}
	if level > int(MaxRank) {
		return MaxRank
	}
	return Rank(level)
}

// Valid reports whether r is one of the four defined ranks.
func (r Rank) Valid() bool {
	return r >= MinRank && r <= MaxRank
}

// String returns the stored name of the rank.
func (r Rank) String() string {
	if !r.Valid() {
		return fmt.Sprintf("rank(%d)", int(r))
	}
	return rankNames[r]
}

// Title returns the human readable rank name.
func (r Rank) Title() string {
	if !r.Valid() {
		return "Unknown"
	}
	return rankTitles[r]
}

// IsStaff reports whether the rank is above participant.
func (r Rank) IsStaff() bool {
	return r > RankParticipant
}

// Value implements driver.Valuer.
func (r Rank) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return rankNames[r], nil
}

// Scan implements sql.Scanner and rejects values outside the enumeration.
func (r *Rank) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Rank", src)
	}

	parsed, err := ParseRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so ranks render by name in JSON.
func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(rankNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
