package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soffa-projects/matchqueue/adapters"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/test"
)

func TestRunCycle_CalcPlayAttempts(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	calc := &fakeCalculator{}

	assert.Nil(fx.enqueuer().Enqueue(ctx, f.CalcPlayAttemptsPayload{LevelID: "L1"}))

	worker := fx.worker(DefaultRegistry(nil, calc, calc), DefaultConfig())
	result, err := worker.RunCycle(ctx)
	assert.Nil(err)
	assert.Equals(result.String(), "Processed 1 messages with no errors")
	assert.Equals(calc.Calls(), []string{"L1"})

	record := fx.only(t)
	assert.Equals(record.State, f.StateCompleted)
	assert.False(record.IsProcessing)
	assert.NotNil(record.ProcessingCompletedAt)
	assert.Equals(record.Log, []string{"calc play attempts for L1"})
	assert.Equals(*record.JobRunID, result.JobRunID)
}

func TestRunCycle_NothingToDo(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)

	result, err := fx.worker(NewRegistry(), DefaultConfig()).RunCycle(context.Background())
	assert.Nil(err)
	assert.Equals(result.String(), "NONE")
}

func TestRunCycle_FetchFailsUntilAttemptsRunOut(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	assert.Nil(fx.enqueuer().QueueFetch(ctx, server.URL, f.FetchOptions{}))
	worker := fx.worker(DefaultRegistry(adapters.NewFetcher(time.Second), nil, nil), DefaultConfig())

	states := []f.JobState{}
	for i := 0; i < 3; i++ {
		result, err := worker.RunCycle(ctx)
		assert.Nil(err)
		assert.Equals(result.String(), "Processed 1 messages with 1 errors")
		states = append(states, fx.only(t).State)
	}
	assert.Equals(states, []f.JobState{f.StatePending, f.StatePending, f.StateFailed})

	record := fx.only(t)
	line := server.URL + ": 500 Internal Server Error"
	assert.Equals(record.Log, []string{line, line, line})
	assert.Equals(record.ProcessingAttempts, 3)
	assert.False(record.IsProcessing)

	result, err := worker.RunCycle(ctx)
	assert.Nil(err)
	assert.Equals(result.String(), "NONE")
	assert.Equals(hits.Load(), int32(3))
	assert.Equals(fx.only(t).ProcessingAttempts, 3)
}

func TestRunCycle_FetchTransportError(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	assert.Nil(fx.enqueuer().QueueFetch(ctx, url, f.FetchOptions{}))
	worker := fx.worker(DefaultRegistry(adapters.NewFetcher(time.Second), nil, nil), Config{MaxAttempts: 1})

	result, err := worker.RunCycle(ctx)
	assert.Nil(err)
	assert.Equals(result.Errors, 1)

	record := fx.only(t)
	assert.Equals(record.State, f.StateFailed)
	assert.Len(record.Log, 1)
	assert.True(strings.HasPrefix(record.Log[0], url+": "))
}

func TestRunCycle_IsolatesFailures(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	q := fx.enqueuer()

	assert.Nil(q.QueueCalcPlayAttempts(ctx, "ok"))
	assert.Nil(q.QueueRefreshIndexCalcs(ctx, "broken"))

	registry := NewRegistry()
	registry.Register(f.KindCalcPlayAttempts, CalcPlayAttemptsHandler(&fakeCalculator{}))
	registry.Register(f.KindRefreshIndexCalculations, RefreshIndexHandler(&fakeCalculator{err: errors.New("index offline")}))

	result, err := fx.worker(registry, DefaultConfig()).RunCycle(ctx)
	assert.Nil(err)
	assert.Equals(result.String(), "Processed 2 messages with 1 errors")

	for _, r := range fx.records(t) {
		switch r.Kind {
		case f.KindCalcPlayAttempts:
			assert.Equals(r.State, f.StateCompleted)
		case f.KindRefreshIndexCalculations:
			assert.Equals(r.State, f.StatePending)
			assert.Equals(r.Log, []string{"refreshed index calculations for broken: index offline"})
		}
	}
}

func TestRunCycle_InvalidPayloadFailsImmediately(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()

	assert.Nil(fx.store.Insert(ctx, &f.JobRecord{
		ID:        "qm_bad",
		DedupeKey: "bad",
		Kind:      f.KindCalcPlayAttempts,
		Message:   `{"levelId":""}`,
		State:     f.StatePending,
		CreatedAt: fx.clock.Now(),
	}))

	calc := &fakeCalculator{}
	result, err := fx.worker(DefaultRegistry(nil, calc, calc), DefaultConfig()).RunCycle(ctx)
	assert.Nil(err)
	assert.Equals(result.Errors, 1)
	assert.Len(calc.Calls(), 0)

	record := fx.only(t)
	assert.Equals(record.State, f.StateFailed)
	assert.Equals(record.ProcessingAttempts, 1)
	assert.Len(record.Log, 1)
	assert.Contains(record.Log[0], "CALC_PLAY_ATTEMPTS: invalid payload")
}

func TestRunCycle_MissingHandlerIsRetried(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()

	assert.Nil(fx.enqueuer().QueueCalcPlayAttempts(ctx, "L1"))

	result, err := fx.worker(NewRegistry(), DefaultConfig()).RunCycle(ctx)
	assert.Nil(err)
	assert.Equals(result.Errors, 1)

	record := fx.only(t)
	assert.Equals(record.State, f.StatePending)
	assert.Equals(record.Log, []string{"CALC_PLAY_ATTEMPTS: no handler registered"})
}

func TestRunCycle_RecoversHandlerPanic(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()

	assert.Nil(fx.enqueuer().QueueCalcPlayAttempts(ctx, "L1"))
	registry := NewRegistry()
	registry.Register(f.KindCalcPlayAttempts, HandlerFunc(func(ctx context.Context, job f.Job) (string, error) {
		panic("boom")
	}))

	result, err := fx.worker(registry, DefaultConfig()).RunCycle(ctx)
	assert.Nil(err)
	assert.Equals(result.Errors, 1)
	assert.Equals(fx.only(t).Log, []string{"CALC_PLAY_ATTEMPTS: handler panicked: boom"})
}

func TestProcess_StaleRunDoesNotClobberReclaimedRecord(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	cfg := DefaultConfig()
	calc := &fakeCalculator{}

	assert.Nil(fx.enqueuer().QueueCalcPlayAttempts(ctx, "L1"))
	first, err := fx.dispatcher(cfg).Claim(ctx)
	assert.Nil(err)

	fx.clock.Advance(6 * time.Minute)
	_, err = fx.sweeper(cfg).Sweep(ctx)
	assert.Nil(err)
	second, err := fx.dispatcher(cfg).Claim(ctx)
	assert.Nil(err)
	assert.Len(second.Records, 1)

	p := NewProcessor(fx.store, DefaultRegistry(nil, calc, calc), cfg)
	assert.False(p.Process(ctx, first.Records[0]))

	record := fx.only(t)
	assert.True(record.IsProcessing)
	assert.Equals(record.State, f.StatePending)
	assert.Equals(*record.JobRunID, second.RunID)
	assert.Len(record.Log, 0)

	assert.False(p.Process(ctx, second.Records[0]))
	record = fx.only(t)
	assert.Equals(record.State, f.StateCompleted)
	assert.Equals(record.ProcessingAttempts, 2)
}

func TestProcess_SkipsTerminalRecord(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	ctx := context.Background()
	calc := &fakeCalculator{}

	assert.Nil(fx.enqueuer().QueueCalcPlayAttempts(ctx, "L1"))
	record := fx.only(t)
	record.State = f.StateCompleted

	failed := NewProcessor(fx.store, DefaultRegistry(nil, calc, calc), DefaultConfig()).Process(ctx, record)
	assert.False(failed)
	assert.Len(calc.Calls(), 0)

	stored := fx.only(t)
	assert.Equals(stored.State, f.StatePending)
	assert.Len(stored.Log, 0)
}

func TestRun_StopsWithContext(t *testing.T) {
	assert := test.NewAssertions(t)
	fx := newFixture(t)
	calc := &fakeCalculator{}
	assert.Nil(fx.enqueuer().QueueCalcPlayAttempts(context.Background(), "L1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fx.worker(DefaultRegistry(nil, calc, calc), DefaultConfig()).Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(func() int { return len(calc.Calls()) }, 1)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
