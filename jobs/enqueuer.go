package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/soffa-projects/matchqueue/log"
)

type EnqueueOptions struct {
	// DedupeKey makes the enqueue a no-op while a record with the same key
	// exists. Empty means a fresh key, so the record is never deduplicated.
	DedupeKey string
	// Priority orders claims, higher first.
	Priority int
}

type EnqueueOption func(*EnqueueOptions)

func WithDedupeKey(key string) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.DedupeKey = key
	}
}

func WithPriority(priority int) EnqueueOption {
	return func(o *EnqueueOptions) {
		o.Priority = priority
	}
}

func applyEnqueueOptions(opts []EnqueueOption) EnqueueOptions {
	var options EnqueueOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.DedupeKey == "" {
		options.DedupeKey = uuid.NewString()
	}
	return options
}

type Enqueuer struct {
	store f.QueueStore
	now   func() time.Time
}

func NewEnqueuer(store f.QueueStore) *Enqueuer {
	return &Enqueuer{store: store, now: time.Now}
}

func (e *Enqueuer) WithClock(now func() time.Time) *Enqueuer {
	e.now = now
	return e
}

// Enqueue inserts a pending record for payload. A duplicate dedupe key is
// not an error.
func (e *Enqueuer) Enqueue(ctx context.Context, payload f.Payload, opts ...EnqueueOption) error {
	message, err := f.EncodePayload(payload)
	if err != nil {
		return err
	}
	options := applyEnqueueOptions(opts)
	record := &f.JobRecord{
		ID:        h.NewId("qm"),
		DedupeKey: options.DedupeKey,
		Kind:      payload.Kind(),
		Message:   message,
		State:     f.StatePending,
		Priority:  options.Priority,
		CreatedAt: e.now().UTC(),
		Log:       []string{},
	}
	err = e.store.Insert(ctx, record)
	if errors.Is(err, f.ErrDuplicateKey) {
		log.Debug("%s already queued with dedupe key %s", record.Kind, record.DedupeKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", record.Kind, err)
	}
	log.Debug("queued %s as %s", record.Kind, record.ID)
	return nil
}

func (e *Enqueuer) QueueFetch(ctx context.Context, url string, options f.FetchOptions, opts ...EnqueueOption) error {
	return e.Enqueue(ctx, f.FetchPayload{URL: url, Options: options}, opts...)
}

// QueueRefreshIndexCalcs is keyed by kind and level id, so a level is
// refreshed at most once per record and never shadows other level jobs.
func (e *Enqueuer) QueueRefreshIndexCalcs(ctx context.Context, levelID string, opts ...EnqueueOption) error {
	opts = append([]EnqueueOption{WithDedupeKey(levelKey(f.KindRefreshIndexCalculations, levelID))}, opts...)
	return e.Enqueue(ctx, f.RefreshIndexPayload{LevelID: levelID}, opts...)
}

func (e *Enqueuer) QueueCalcPlayAttempts(ctx context.Context, levelID string, opts ...EnqueueOption) error {
	opts = append([]EnqueueOption{WithDedupeKey(levelKey(f.KindCalcPlayAttempts, levelID))}, opts...)
	return e.Enqueue(ctx, f.CalcPlayAttemptsPayload{LevelID: levelID}, opts...)
}

func levelKey(kind f.JobKind, levelID string) string {
	return string(kind) + ":" + levelID
}
