package jobs

import (
	"context"
	"sync"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

// Worker runs queue cycles: sweep, claim, then process the claimed batch
// concurrently.
type Worker struct {
	sweeper    *Sweeper
	dispatcher *Dispatcher
	processor  *Processor
}

func NewWorker(store f.QueueStore, registry *Registry, cfg Config) *Worker {
	return &Worker{
		sweeper:    NewSweeper(store, cfg),
		dispatcher: NewDispatcher(store, cfg),
		processor:  NewProcessor(store, registry, cfg),
	}
}

// WithClock sets the time source of every stage.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.sweeper.now = now
	w.dispatcher.now = now
	w.processor.now = now
	return w
}

// RunCycle returns an error only when the claim itself failed. Handler
// failures are counted in the result.
func (w *Worker) RunCycle(ctx context.Context) (f.CycleResult, error) {
	if _, err := w.sweeper.Sweep(ctx); err != nil {
		log.Error("recovery sweep failed: %v", err)
	}

	claim, err := w.dispatcher.Claim(ctx)
	if err != nil {
		log.WithJobRun(claim.RunID).Errorf("claim failed: %v", err)
		return f.CycleResult{JobRunID: claim.RunID}, err
	}
	result := f.CycleResult{JobRunID: claim.RunID, Claimed: len(claim.Records)}
	if claim.Empty() {
		return result, nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, record := range claim.Records {
		wg.Add(1)
		go func(record f.JobRecord) {
			defer wg.Done()
			if w.processor.Process(ctx, record) {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(record)
	}
	wg.Wait()

	result.Errors = failed
	log.WithJobRun(claim.RunID).Info(result.String())
	return result, nil
}

// Run repeats RunCycle every interval until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info("queue worker running every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunCycle(ctx); err != nil && ctx.Err() == nil {
				log.Error("queue cycle failed: %v", err)
			}
		}
	}
}
