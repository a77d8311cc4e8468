package f

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type JobKind string

const (
	KindFetch                    JobKind = "FETCH"
	KindRefreshIndexCalculations JobKind = "REFRESH_INDEX_CALCULATIONS"
	KindCalcPlayAttempts         JobKind = "CALC_PLAY_ATTEMPTS"
)

func ParseJobKind(value string) (JobKind, error) {
	switch kind := JobKind(value); kind {
	case KindFetch, KindRefreshIndexCalculations, KindCalcPlayAttempts:
		return kind, nil
	}
	return "", fmt.Errorf("unknown job kind %q", value)
}

// JobState is the persisted lifecycle state. In-progress is tracked by
// JobRecord.IsProcessing, never as a state of its own.
type JobState string

const (
	StatePending   JobState = "PENDING"
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
)

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type JobRecord struct {
	bun.BaseModel `bun:"table:queue_messages"`

	ID                    string     `bun:"id,pk" json:"id"`
	DedupeKey             string     `bun:"dedupe_key,notnull" json:"dedupeKey"`
	Kind                  JobKind    `bun:"type,notnull" json:"type"`
	Message               string     `bun:"message,notnull" json:"message"`
	State                 JobState   `bun:"state,notnull" json:"state"`
	IsProcessing          bool       `bun:"is_processing,notnull" json:"isProcessing"`
	ProcessingStartedAt   *time.Time `bun:"processing_started_at" json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt *time.Time `bun:"processing_completed_at" json:"processingCompletedAt,omitempty"`
	ProcessingAttempts    int        `bun:"processing_attempts,notnull" json:"processingAttempts"`
	Priority              int        `bun:"priority,notnull" json:"priority"`
	CreatedAt             time.Time  `bun:"created_at,notnull" json:"createdAt"`
	JobRunID              *string    `bun:"job_run_id" json:"jobRunId,omitempty"`
	Log                   []string   `bun:"log,type:text" json:"log"`
}

// Job is a claimed record with its payload decoded.
type Job struct {
	ID       string
	Kind     JobKind
	RunID    string
	Attempts int
	Payload  Payload
}

// Outcome of one handler invocation.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
)

// CycleResult summarizes one worker invocation.
type CycleResult struct {
	Claimed  int
	Errors   int
	JobRunID string
}

func (r CycleResult) String() string {
	if r.Claimed == 0 {
		return "NONE"
	}
	if r.Errors == 0 {
		return fmt.Sprintf("Processed %d messages with no errors", r.Claimed)
	}
	return fmt.Sprintf("Processed %d messages with %d errors", r.Claimed, r.Errors)
}
