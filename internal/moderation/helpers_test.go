package moderation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/repository"
	"github.com/Kerhoff/custos/internal/repository/memory"
)

const testChat = int64(-100500)

var errPlatformDown = errors.New("platform unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakePlatform answers membership queries from a status table and records
// ban and unban calls. Users missing from the table are plain members.
type fakePlatform struct {
	mu       sync.Mutex
	statuses map[int64]models.MemberStatus
	failing  map[int64]bool
	blocking bool
	queries  map[int64]int
	banErr   error
	unbanErr error
	banned   []int64
	unbanned []int64
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		statuses: make(map[int64]models.MemberStatus),
		failing:  make(map[int64]bool),
		queries:  make(map[int64]int),
	}
}

func (p *fakePlatform) set(userID int64, status models.MemberStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[userID] = status
}

func (p *fakePlatform) fail(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[userID] = true
}

func (p *fakePlatform) queryCount(userID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries[userID]
}

func (p *fakePlatform) bans() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.banned...)
}

func (p *fakePlatform) QueryMembership(ctx context.Context, _, userID int64) (models.MemberStatus, error) {
	p.mu.Lock()
	p.queries[userID]++
	blocking, failing := p.blocking, p.failing[userID]
	status, ok := p.statuses[userID]
	p.mu.Unlock()

	if blocking {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if failing {
		return "", errPlatformDown
	}
	if !ok {
		return models.MemberStatusMember, nil
	}
	return status, nil
}

func (p *fakePlatform) Ban(_ context.Context, _, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.banErr != nil {
		return p.banErr
	}
	p.banned = append(p.banned, userID)
	return nil
}

func (p *fakePlatform) Unban(_ context.Context, _, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unbanErr != nil {
		return p.unbanErr
	}
	p.unbanned = append(p.unbanned, userID)
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type testEnv struct {
	engine   *Engine
	platform *fakePlatform
	store    *memory.Store
	clock    *fakeClock
	metrics  *Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		platform: newFakePlatform(),
		store:    memory.New(),
		clock:    newFakeClock(),
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	env.engine = env.build(env.store.Members())
	return env
}

// build wires an engine over the env's platform and clock with the given
// rank store, so tests can swap in a failing store.
func (env *testEnv) build(ranks repository.RankStore) *Engine {
	logger := discardLogger()
	return NewEngine(Dependencies{
		Resolver:  NewResolver(env.platform, ranks, 50*time.Millisecond, logger, env.metrics),
		Limiter:   NewRateLimiter(DefaultCooldowns(), env.clock.Now),
		Transfers: NewTransferTable(DefaultTransferTTL, env.clock.Now),
		Ranks:     ranks,
		Warnings:  env.store.Warnings(),
		Platform:  env.platform,
		Policy:    Policy{AutobanThreshold: DefaultAutobanThreshold},
		Metrics:   env.metrics,
		Logger:    logger,
	})
}

// rankOf reads the stored rank, or -1 when no record exists.
func (env *testEnv) rankOf(t *testing.T, userID int64) models.Rank {
	t.Helper()
	m, err := env.store.Members().GetMember(context.Background(), userID, testChat)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if m == nil {
		return -1
	}
	return m.Rank
}

// seedModerator makes the user a platform member stored as moderator.
func (env *testEnv) seedModerator(t *testing.T, userID int64) {
	t.Helper()
	if err := env.store.Members().SetRank(context.Background(), userID, testChat, models.RankModerator); err != nil {
		t.Fatalf("seed moderator: %v", err)
	}
}
