package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/soffa-projects/matchqueue/adapters"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/db"
	"github.com/soffa-projects/matchqueue/test"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
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

type fixture struct {
	conn  *adapters.DB
	store *adapters.QueueStore
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	conn, err := adapters.NewDB(test.DatabaseURL(t), db.Migrations, db.MigrationsDir)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &fixture{
		conn:  conn,
		store: adapters.NewQueueStore(conn),
		clock: newFakeClock(),
	}
}

func (fx *fixture) enqueuer() *Enqueuer {
	return NewEnqueuer(fx.store).WithClock(fx.clock.Now)
}

func (fx *fixture) dispatcher(cfg Config) *Dispatcher {
	d := NewDispatcher(fx.store, cfg)
	d.now = fx.clock.Now
	return d
}

func (fx *fixture) sweeper(cfg Config) *Sweeper {
	s := NewSweeper(fx.store, cfg)
	s.now = fx.clock.Now
	return s
}

func (fx *fixture) worker(registry *Registry, cfg Config) *Worker {
	return NewWorker(fx.store, registry, cfg).WithClock(fx.clock.Now)
}

// records returns every stored record in creation order.
func (fx *fixture) records(t *testing.T) []f.JobRecord {
	var records []f.JobRecord
	err := fx.conn.NewSelect().Model(&records).OrderExpr("created_at ASC, id ASC").Scan(context.Background())
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	return records
}

func (fx *fixture) only(t *testing.T) f.JobRecord {
	records := fx.records(t)
	if len(records) != 1 {
		t.Fatalf("expected a single record, got %d", len(records))
	}
	return records[0]
}

type fakeCalculator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *fakeCalculator) CalcPlayAttempts(ctx context.Context, levelID string) error {
	return c.record(levelID)
}

func (c *fakeCalculator) RefreshIndexCalcs(ctx context.Context, levelID string) error {
	return c.record(levelID)
}

func (c *fakeCalculator) record(levelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, levelID)
	return c.err
}

func (c *fakeCalculator) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.calls...)
}

func levelOf(t *testing.T, record f.JobRecord) string {
	p, err := f.DecodePayload(record.Kind, record.Message)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", record.ID, err)
	}
	switch v := p.(type) {
	case f.CalcPlayAttemptsPayload:
		return v.LevelID
	case f.RefreshIndexPayload:
		return v.LevelID
	}
	t.Fatalf("unexpected payload %T", p)
	return ""
}
