package moderation

import (
	"sync"
	"time"

	"github.com/Kerhoff/custos/internal/models"
)

// DefaultCooldowns are the moderator cooldowns per command.
func DefaultCooldowns() map[Command]time.Duration {
	return map[Command]time.Duration{
		CommandWarn: time.Hour,
		CommandKick: 15 * time.Minute,
	}
}

type rateKey struct {
	userID  int64
	command Command
}

// RateLimiter tracks the last use of throttled commands per (user, command).
// State lives in process memory and is reset on restart.
type RateLimiter struct {
	mu        sync.Mutex
	last      map[rateKey]time.Time
	cooldowns map[Command]time.Duration
	longest   time.Duration
	now       func() time.Time
}

// NewRateLimiter creates a limiter with the given moderator cooldowns. A nil
// clock means time.Now.
func NewRateLimiter(cooldowns map[Command]time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	l := &RateLimiter{
		last:      make(map[rateKey]time.Time),
		cooldowns: make(map[Command]time.Duration, len(cooldowns)),
		now:       now,
	}
	for cmd, d := range cooldowns {
		l.cooldowns[cmd] = d
		l.longest = max(l.longest, d)
	}
	return l
}

// CheckAndRecord lets the command through or reports the remaining
// cooldown. Administrators and owners always pass and are never recorded.
// A pass records the current time immediately, whatever the command's
// eventual outcome.
func (l *RateLimiter) CheckAndRecord(userID int64, cmd Command, rank models.Rank) error {
	if rank >= models.RankAdministrator {
		return nil
	}

	now := l.now()
	key := rateKey{userID: userID, command: cmd}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cooldown, ok := l.cooldowns[cmd]; ok && rank == models.RankModerator {
		if last, seen := l.last[key]; seen {
			if elapsed := now.Sub(last); elapsed < cooldown {
				return &RateLimitError{Command: cmd, RetryAfter: cooldown - elapsed}
			}
		}
	}

	l.last[key] = now
	return nil
}

// Prune drops entries whose cooldown has fully elapsed and returns how many
// were removed.
func (l *RateLimiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, last := range l.last {
		if now.Sub(last) >= l.longest {
			delete(l.last, key)
			removed++
		}
	}
	return removed
}
