package jobs

import (
	"context"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

// Sweeper releases claims abandoned by a worker that died mid-processing.
// Attempts are left untouched, so recovered records still count against
// the attempt budget.
type Sweeper struct {
	store       f.QueueStore
	lease       time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewSweeper(store f.QueueStore, cfg Config) *Sweeper {
	cfg = cfg.withDefaults()
	return &Sweeper{
		store:       store,
		lease:       cfg.LeaseTimeout,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (f.RecoverResult, error) {
	res, err := s.store.Recover(ctx, s.now(), s.lease, s.maxAttempts)
	if err != nil {
		return res, err
	}
	if res.Released > 0 || res.Failed > 0 {
		log.Warn("recovered orphaned claims: %d released, %d failed", res.Released, res.Failed)
	}
	return res, nil
}
