package jobs

import (
	"context"
	"fmt"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/h"
)

// Claim is a batch of records owned by one run.
type Claim struct {
	RunID   string
	Records []f.JobRecord
}

func (c Claim) Empty() bool {
	return len(c.Records) == 0
}

// Dispatcher takes batches of claimable records in a single transaction.
type Dispatcher struct {
	store f.QueueStore
	cfg   Config
	now   func() time.Time
}

func NewDispatcher(store f.QueueStore, cfg Config) *Dispatcher {
	return &Dispatcher{store: store, cfg: cfg.withDefaults(), now: time.Now}
}

// Claim selects up to BatchSize records and stamps them with a fresh run
// id. On any failure the transaction is rolled back and no record changes.
// It returns f.ErrClaimConflict when another claim took some of the
// selected records first.
func (d *Dispatcher) Claim(ctx context.Context) (Claim, error) {
	claim := Claim{RunID: h.NewId("run")}
	startedAt := d.now().UTC()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ClaimTimeout)
	defer cancel()

	err := d.store.InTx(ctx, func(ctx context.Context, tx f.QueueTx) error {
		records, err := tx.FindClaimable(ctx, f.ClaimFilter{
			MaxAttempts: d.cfg.MaxAttempts,
			Limit:       d.cfg.BatchSize,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		n, err := tx.MarkClaimed(ctx, ids, f.ClaimStamp{RunID: claim.RunID, StartedAt: startedAt})
		if err != nil {
			return err
		}
		if n != int64(len(records)) {
			return fmt.Errorf("%w: selected %d, updated %d", f.ErrClaimConflict, len(records), n)
		}
		for i := range records {
			r := &records[i]
			r.IsProcessing = true
			r.ProcessingStartedAt = &startedAt
			r.ProcessingAttempts++
			r.JobRunID = &claim.RunID
		}
		claim.Records = records
		return nil
	})
	if err != nil {
		return Claim{RunID: claim.RunID}, fmt.Errorf("claim %s: %w", claim.RunID, err)
	}
	return claim, nil
}
