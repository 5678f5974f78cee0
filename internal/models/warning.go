package models

import "time"

// Warning is one entry of a member's append-only warning log
type Warning struct {
	ID       int64     `json:"id" db:"id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	ChatID   int64     `json:"chat_id" db:"chat_id"`
	Reason   string    `json:"reason" db:"reason"`
	IssuedBy int64     `json:"issued_by" db:"issued_by"`
	IssuedAt time.Time `json:"issued_at" db:"issued_at"`
}

// PendingTransfer is an ownership transfer proposal waiting for the
// proposer's confirmation.
type PendingTransfer struct {
	Token     string    `json:"token"`
	ChatID    int64     `json:"chat_id"`
	Proposer  int64     `json:"proposer"`
	Target    int64     `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpiresAt returns the moment the proposal stops being confirmable.
func (p *PendingTransfer) ExpiresAt(ttl time.Duration) time.Time {
	return p.CreatedAt.Add(ttl)
}
