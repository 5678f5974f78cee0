package moderation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kerhoff/custos/internal/models"
)

// DefaultTransferTTL is how long an ownership transfer proposal stays confirmable.
const DefaultTransferTTL = 5 * time.Minute

// TransferTable holds at most one outstanding ownership transfer per chat.
type TransferTable struct {
	mu       sync.Mutex
	pending  map[int64]models.PendingTransfer
	ttl      time.Duration
	now      func() time.Time
	newToken func() string
}

// NewTransferTable creates an empty table. A nil clock means time.Now.
func NewTransferTable(ttl time.Duration, now func() time.Time) *TransferTable {
	if ttl <= 0 {
		ttl = DefaultTransferTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TransferTable{
		pending:  make(map[int64]models.PendingTransfer),
		ttl:      ttl,
		now:      now,
		newToken: uuid.NewString,
	}
}

// TTL returns the proposal lifetime.
func (t *TransferTable) TTL() time.Duration {
	return t.ttl
}

// Propose records a transfer from proposer to target. It fails while another
// unexpired proposal exists for the chat.
func (t *TransferTable) Propose(chatID, proposer, target int64) (models.PendingTransfer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if p, ok := t.pending[chatID]; ok && !t.expired(p, now) {
		return models.PendingTransfer{}, fmt.Errorf("%w: a transfer to %d is already pending", ErrTransferConflict, p.Target)
	}

	p := models.PendingTransfer{
		Token:     t.newToken(),
		ChatID:    chatID,
		Proposer:  proposer,
		Target:    target,
		CreatedAt: now,
	}
	t.pending[chatID] = p
	return p, nil
}

// Pending returns the chat's unexpired proposal, if any.
func (t *TransferTable) Pending(chatID int64) (models.PendingTransfer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[chatID]
	if !ok || t.expired(p, t.now()) {
		return models.PendingTransfer{}, false
	}
	return p, true
}

// Claim removes and returns the proposal if token matches and confirmer is
// its proposer. A confirmer other than the proposer leaves the table
// unchanged.
func (t *TransferTable) Claim(chatID int64, token string, confirmer int64) (models.PendingTransfer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.lookupLocked(chatID, token)
	if err != nil {
		return models.PendingTransfer{}, err
	}
	if p.Proposer != confirmer {
		return models.PendingTransfer{}, fmt.Errorf("%w: only the proposer can confirm", ErrTransferConflict)
	}

	delete(t.pending, chatID)
	return p, nil
}

// Restore puts a claimed proposal back, unless it expired or the chat
// already has a new one.
func (t *TransferTable) Restore(p models.PendingTransfer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[p.ChatID]; ok || t.expired(p, t.now()) {
		return
	}
	t.pending[p.ChatID] = p
}

// Cancel withdraws the proposal. Only its proposer may cancel.
func (t *TransferTable) Cancel(chatID int64, token string, userID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.lookupLocked(chatID, token)
	if err != nil {
		return err
	}
	if p.Proposer != userID {
		return fmt.Errorf("%w: only the proposer can cancel", ErrTransferConflict)
	}

	delete(t.pending, chatID)
	return nil
}

// Sweep drops expired proposals and returns how many were removed.
func (t *TransferTable) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for chatID, p := range t.pending {
		if t.expired(p, now) {
			delete(t.pending, chatID)
			removed++
		}
	}
	return removed
}

func (t *TransferTable) lookupLocked(chatID int64, token string) (models.PendingTransfer, error) {
	p, ok := t.pending[chatID]
	if !ok {
		return models.PendingTransfer{}, fmt.Errorf("%w: no pending transfer", ErrTransferConflict)
	}
	if t.expired(p, t.now()) {
		delete(t.pending, chatID)
		return models.PendingTransfer{}, fmt.Errorf("%w: proposal expired", ErrTransferConflict)
	}
	if p.Token != token {
		return models.PendingTransfer{}, fmt.Errorf("%w: stale confirmation token", ErrTransferConflict)
	}
	return p, nil
}

func (t *TransferTable) expired(p models.PendingTransfer, now time.Time) bool {
	return !now.Before(p.ExpiresAt(t.ttl))
}
