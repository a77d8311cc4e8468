package f

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateKey  = errors.New("queue: duplicate dedupe key")
	ErrClaimConflict = errors.New("queue: claim conflict")
	ErrNoHandler     = errors.New("queue: no handler registered")
	ErrJobNotFound   = errors.New("queue: record not found")
)

// ClaimFilter selects claimable records.
type ClaimFilter struct {
	MaxAttempts int
	Limit       int
}

// ClaimStamp is written to every record of a claimed batch.
type ClaimStamp struct {
	RunID     string
	StartedAt time.Time
}

type RecoverResult struct {
	Released int64
	Failed   int64
}

// QueueTx is the part of the store usable inside a claim transaction.
type QueueTx interface {
	// FindClaimable returns pending, idle records under the attempt cap,
	// ordered priority desc, created_at asc, id asc.
	FindClaimable(ctx context.Context, filter ClaimFilter) ([]JobRecord, error)
	// MarkClaimed flags ids as processing, bumps their attempts and stamps
	// the run. It returns how many rows were still idle and got updated.
	MarkClaimed(ctx context.Context, ids []string, stamp ClaimStamp) (int64, error)
}

type QueueStore interface {
	// Insert returns ErrDuplicateKey when the dedupe key already exists.
	Insert(ctx context.Context, record *JobRecord) error
	InTx(ctx context.Context, fn func(ctx context.Context, tx QueueTx) error) error
	// Recover releases claims started more than lease before now. Orphans
	// that already used maxAttempts are failed instead.
	Recover(ctx context.Context, now time.Time, lease time.Duration, maxAttempts int) (RecoverResult, error)
	// Finalize writes the outcome of a claimed record. It only applies while
	// the record still belongs to record.JobRunID.
	Finalize(ctx context.Context, record *JobRecord) (bool, error)
	Get(ctx context.Context, id string) (*JobRecord, error)
	Count(ctx context.Context, state JobState) (int, error)
	Ping(ctx context.Context) error
}

// CycleTrigger schedules worker cycles out of process.
type CycleTrigger interface {
	Trigger(ctx context.Context) error
	Close() error
}
