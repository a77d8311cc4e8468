package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

// Processor runs the handler of a claimed record and finalizes it.
type Processor struct {
	store       f.QueueStore
	registry    *Registry
	maxAttempts int
	now         func() time.Time
}

func NewProcessor(store f.QueueStore, registry *Registry, cfg Config) *Processor {
	cfg = cfg.withDefaults()
	return &Processor{
		store:       store,
		registry:    registry,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
	}
}

// Process handles record and reports whether the attempt failed. Failures
// stay local to the record.
func (p *Processor) Process(ctx context.Context, record f.JobRecord) bool {
	runID := ""
	if record.JobRunID != nil {
		runID = *record.JobRunID
	}
	logger := log.WithJob(runID, record.ID, string(record.Kind))
	if record.State.Terminal() {
		logger.Warnf("record is already %s, skipped", record.State)
		return false
	}

	line, outcome, state := p.run(ctx, record, runID)
	if outcome == f.OutcomeFailed {
		logger.Warnf("attempt %d/%d failed: %s", record.ProcessingAttempts, p.maxAttempts, line)
	}

	completedAt := p.now().UTC()
	record.IsProcessing = false
	record.ProcessingCompletedAt = &completedAt
	record.Log = append(record.Log, line)
	record.State = state

	ok, err := p.store.Finalize(ctx, &record)
	if err != nil {
		logger.Errorf("failed to finalize: %v", err)
		return true
	}
	if !ok {
		logger.Warn("record was reclaimed by another run, outcome dropped")
	}
	return outcome == f.OutcomeFailed
}

func (p *Processor) run(ctx context.Context, record f.JobRecord, runID string) (string, f.Outcome, f.JobState) {
	payload, err := f.DecodePayload(record.Kind, record.Message)
	if err != nil {
		if errors.Is(err, f.ErrNoHandler) {
			return p.failed(record, fmt.Sprintf("%s: no handler registered", record.Kind))
		}
		// retrying cannot fix a payload that does not decode
		return fmt.Sprintf("%s: invalid payload: %v", record.Kind, err), f.OutcomeFailed, f.StateFailed
	}
	handler, ok := p.registry.Lookup(record.Kind)
	if !ok {
		return p.failed(record, fmt.Sprintf("%s: no handler registered", record.Kind))
	}
	job := f.Job{
		ID:       record.ID,
		Kind:     record.Kind,
		RunID:    runID,
		Attempts: record.ProcessingAttempts,
		Payload:  payload,
	}
	line, err := invoke(ctx, handler, job)
	if err != nil {
		return p.failed(record, line)
	}
	return line, f.OutcomeSucceeded, Transition(record.ProcessingAttempts, p.maxAttempts, f.OutcomeSucceeded)
}

func (p *Processor) failed(record f.JobRecord, line string) (string, f.Outcome, f.JobState) {
	return line, f.OutcomeFailed, Transition(record.ProcessingAttempts, p.maxAttempts, f.OutcomeFailed)
}

func invoke(ctx context.Context, handler Handler, job f.Job) (line string, err error) {
	defer func() {
		if r := recover(); r != nil {
			line = fmt.Sprintf("%s: handler panicked: %v", job.Kind, r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	line, err = handler.Handle(ctx, job)
	if err != nil && line == "" {
		line = fmt.Sprintf("%s: %v", job.Kind, err)
	}
	return line, err
}
