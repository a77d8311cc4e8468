package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/uptrace/bun"
)

// QueueStore keeps job records in the queue_messages table.
type QueueStore struct {
	db *DB
}

func NewQueueStore(db *DB) *QueueStore {
	return &QueueStore{db: db}
}

func (s *QueueStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *QueueStore) Insert(ctx context.Context, record *f.JobRecord) error {
	if record.Log == nil {
		record.Log = []string{}
	}
	res, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (dedupe_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return f.ErrDuplicateKey
	}
	return nil
}

func (s *QueueStore) InTx(ctx context.Context, fn func(ctx context.Context, tx f.QueueTx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &queueTx{tx: tx, dialect: s.db.Dialect()})
	})
}

func (s *QueueStore) Recover(ctx context.Context, now time.Time, lease time.Duration, maxAttempts int) (f.RecoverResult, error) {
	var result f.RecoverResult
	cutoff := now.Add(-lease).UTC()

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var exhausted []f.JobRecord
		err := tx.NewSelect().
			Model(&exhausted).
			Where("state = ?", f.StatePending).
			Where("is_processing = ?", true).
			Where("processing_started_at < ?", cutoff).
			Where("processing_attempts >= ?", maxAttempts).
			Scan(ctx)
		if err != nil {
			return err
		}
		completedAt := now.UTC()
		for i := range exhausted {
			rec := &exhausted[i]
			rec.IsProcessing = false
			rec.State = f.StateFailed
			rec.ProcessingCompletedAt = &completedAt
			rec.Log = append(rec.Log, fmt.Sprintf("lease expired after %d attempts", rec.ProcessingAttempts))
			_, err := tx.NewUpdate().
				Model(rec).
				Column("is_processing", "state", "processing_completed_at", "log").
				WherePK().
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		result.Failed = int64(len(exhausted))

		res, err := tx.NewUpdate().
			Model((*f.JobRecord)(nil)).
			Set("is_processing = ?", false).
			Where("state = ?", f.StatePending).
			Where("is_processing = ?", true).
			Where("processing_started_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return err
		}
		result.Released, err = res.RowsAffected()
		return err
	})
	return result, err
}

func (s *QueueStore) Finalize(ctx context.Context, record *f.JobRecord) (bool, error) {
	if record.JobRunID == nil {
		return false, fmt.Errorf("finalize %s: record was never claimed", record.ID)
	}
	res, err := s.db.NewUpdate().
		Model(record).
		Column("is_processing", "processing_completed_at", "log", "state").
		WherePK().
		Where("job_run_id = ?", *record.JobRunID).
		Where("state = ?", f.StatePending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *QueueStore) Get(ctx context.Context, id string) (*f.JobRecord, error) {
	record := new(f.JobRecord)
	err := s.db.NewSelect().Model(record).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, f.ErrJobNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *QueueStore) Count(ctx context.Context, state f.JobState) (int, error) {
	q := s.db.NewSelect().Model((*f.JobRecord)(nil))
	if state != "" {
		q = q.Where("state = ?", state)
	}
	return q.Count(ctx)
}

type queueTx struct {
	tx      bun.Tx
	dialect string
}

func (t *queueTx) FindClaimable(ctx context.Context, filter f.ClaimFilter) ([]f.JobRecord, error) {
	var records []f.JobRecord
	q := t.tx.NewSelect().
		Model(&records).
		Where("state = ?", f.StatePending).
		Where("processing_attempts < ?", filter.MaxAttempts).
		Where("is_processing = ?", false).
		OrderExpr("priority DESC, created_at ASC, id ASC").
		Limit(filter.Limit)
	if t.dialect == DialectPostgres {
		q = q.For("UPDATE SKIP LOCKED")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (t *queueTx) MarkClaimed(ctx context.Context, ids []string, stamp f.ClaimStamp) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := t.tx.NewUpdate().
		Model((*f.JobRecord)(nil)).
		Set("is_processing = ?", true).
		Set("processing_started_at = ?", stamp.StartedAt.UTC()).
		Set("processing_attempts = processing_attempts + 1").
		Set("job_run_id = ?", stamp.RunID).
		Where("id IN (?)", bun.In(ids)).
		Where("state = ?", f.StatePending).
		Where("is_processing = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
