package moderation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferTableSingleFlight(t *testing.T) {
	t.Parallel()
	table := NewTransferTable(DefaultTransferTTL, newFakeClock().Now)

	p, err := table.Propose(testChat, 1, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Token)

	_, err = table.Propose(testChat, 1, 3)
	assert.ErrorIs(t, err, ErrTransferConflict)

	// Other chats are independent.
	_, err = table.Propose(testChat-1, 1, 3)
	assert.NoError(t, err)

	pending, ok := table.Pending(testChat)
	require.True(t, ok)
	assert.Equal(t, int64(2), pending.Target)
}

func TestTransferTableExpiry(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	table := NewTransferTable(time.Minute, clock.Now)

	p, err := table.Propose(testChat, 1, 2)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, ok := table.Pending(testChat)
	assert.False(t, ok)

	_, err = table.Claim(testChat, p.Token, 1)
	assert.ErrorIs(t, err, ErrTransferConflict)

	_, err = table.Propose(testChat, 1, 3)
	assert.NoError(t, err)
}

func TestTransferTableClaim(t *testing.T) {
	t.Parallel()
	table := NewTransferTable(DefaultTransferTTL, newFakeClock().Now)

	p, err := table.Propose(testChat, 1, 2)
	require.NoError(t, err)

	_, err = table.Claim(testChat, "stale", 1)
	assert.ErrorIs(t, err, ErrTransferConflict)

	_, err = table.Claim(testChat, p.Token, 2)
	assert.ErrorIs(t, err, ErrTransferConflict)
	_, ok := table.Pending(testChat)
	assert.True(t, ok, "a foreign confirmer must not consume the proposal")

	claimed, err := table.Claim(testChat, p.Token, 1)
	require.NoError(t, err)
	assert.Equal(t, p, claimed)

	_, err = table.Claim(testChat, p.Token, 1)
	assert.ErrorIs(t, err, ErrTransferConflict)
}

func TestTransferTableRestore(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	table := NewTransferTable(time.Minute, clock.Now)

	p, err := table.Propose(testChat, 1, 2)
	require.NoError(t, err)
	claimed, err := table.Claim(testChat, p.Token, 1)
	require.NoError(t, err)

	table.Restore(claimed)
	restored, ok := table.Pending(testChat)
	require.True(t, ok)
	assert.Equal(t, p.Token, restored.Token)

	claimed, err = table.Claim(testChat, p.Token, 1)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	table.Restore(claimed)
	_, ok = table.Pending(testChat)
	assert.False(t, ok)
}

func TestTransferTableCancel(t *testing.T) {
	t.Parallel()
	table := NewTransferTable(DefaultTransferTTL, newFakeClock().Now)

	p, err := table.Propose(testChat, 1, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, table.Cancel(testChat, p.Token, 2), ErrTransferConflict)
	require.NoError(t, table.Cancel(testChat, p.Token, 1))

	_, ok := table.Pending(testChat)
	assert.False(t, ok)
	assert.ErrorIs(t, table.Cancel(testChat, p.Token, 1), ErrTransferConflict)
}

func TestTransferTableSweep(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	table := NewTransferTable(time.Minute, clock.Now)

	_, err := table.Propose(1, 10, 20)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = table.Propose(2, 10, 20)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	assert.Equal(t, 1, table.Sweep())
	_, ok := table.Pending(2)
	assert.True(t, ok)
}

func TestTransferTableConcurrentPropose(t *testing.T) {
	t.Parallel()
	table := NewTransferTable(DefaultTransferTTL, newFakeClock().Now)

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := int64(0); i < 20; i++ {
		wg.Add(1)
		go func(target int64) {
			defer wg.Done()
			if _, err := table.Propose(testChat, 1, target); err == nil {
				won.Add(1)
			}
		}(100 + i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}
