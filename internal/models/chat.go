package models

import (
	"strconv"
	"time"
)

// Chat represents a Telegram group the bot has been added to
type Chat struct {
	ID      int64     `json:"id" db:"id"`
	Title   string    `json:"title" db:"title"`
	Type    string    `json:"type" db:"type"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// Link returns a t.me link to the chat. Supergroup IDs carry a -100 prefix
// that the link format omits.
func (c *Chat) Link() string {
	const supergroupPrefix = 1000000000000
	if c.ID < 0 {
		id := -c.ID
		if id > supergroupPrefix {
			id -= supergroupPrefix
		}
		return "https://t.me/c/" + strconv.FormatInt(id, 10) + "/1"
	}
	return "https://t.me/" + strconv.FormatInt(c.ID, 10)
}
