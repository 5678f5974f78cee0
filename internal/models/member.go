package models

import (
	"fmt"
	"time"
)

// MemberStatus is a user's membership status as reported by the chat platform.
type MemberStatus string

const (
	MemberStatusCreator       MemberStatus = "creator"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusMember        MemberStatus = "member"
	MemberStatusRestricted    MemberStatus = "restricted"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
)

// ParseMemberStatus validates a platform status string.
func ParseMemberStatus(s string) (MemberStatus, error) {
	switch st := MemberStatus(s); st {
	case MemberStatusCreator, MemberStatusAdministrator, MemberStatusMember,
		MemberStatusRestricted, MemberStatusLeft, MemberStatusKicked:
		return st, nil
	}
	return "", fmt.Errorf("unknown member status %q", s)
}

// Member is a user's membership record in one chat
type Member struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	ChatID       int64     `json:"chat_id" db:"chat_id"`
	Rank         Rank      `json:"rank" db:"rank"`
	MessageCount int64     `json:"message_count" db:"message_count"`
	JoinedAt     time.Time `json:"joined_at" db:"joined_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// StaffMember is a member above participant rank joined with their profile.
type StaffMember struct {
	User User `json:"user"`
	Rank Rank `json:"rank"`
}

// ActiveMember is one row of a chat's activity ranking.
type ActiveMember struct {
	User         User  `json:"user"`
	MessageCount int64 `json:"message_count"`
}

// UserChat is a chat the user belongs to, with their rank there.
type UserChat struct {
	Chat Chat `json:"chat"`
	Rank Rank `json:"rank"`
}
