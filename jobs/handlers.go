package jobs

import (
	"context"
	"fmt"
	"sync"

	f "github.com/soffa-projects/matchqueue/core"
)

// Handler runs one claimed job. The returned line is appended to the record
// log whatever the outcome; a non-nil error marks the attempt as failed.
type Handler interface {
	Handle(ctx context.Context, job f.Job) (string, error)
}

type HandlerFunc func(ctx context.Context, job f.Job) (string, error)

func (fn HandlerFunc) Handle(ctx context.Context, job f.Job) (string, error) {
	return fn(ctx, job)
}

// Registry maps each job kind to its handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[f.JobKind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[f.JobKind]Handler)}
}

// DefaultRegistry registers the built-in handlers for every non-nil
// collaborator.
func DefaultRegistry(fetcher f.URLFetcher, index f.IndexCalculator, plays f.PlayAttemptsCalculator) *Registry {
	r := NewRegistry()
	if fetcher != nil {
		r.Register(f.KindFetch, FetchHandler(fetcher))
	}
	if index != nil {
		r.Register(f.KindRefreshIndexCalculations, RefreshIndexHandler(index))
	}
	if plays != nil {
		r.Register(f.KindCalcPlayAttempts, CalcPlayAttemptsHandler(plays))
	}
	return r
}

func (r *Registry) Register(kind f.JobKind, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

func (r *Registry) Lookup(kind f.JobKind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[kind]
	return handler, ok
}

func FetchHandler(fetcher f.URLFetcher) Handler {
	return HandlerFunc(func(ctx context.Context, job f.Job) (string, error) {
		p, ok := job.Payload.(f.FetchPayload)
		if !ok {
			return fmt.Sprintf("%s: unexpected payload %T", job.Kind, job.Payload), fmt.Errorf("unexpected payload %T", job.Payload)
		}
		res, err := fetcher.Fetch(ctx, p)
		if err != nil {
			return fmt.Sprintf("%s: %v", p.URL, err), err
		}
		line := fmt.Sprintf("%s: %d %s", p.URL, res.StatusCode, res.StatusText)
		if !res.OK() {
			return line, fmt.Errorf("unexpected status %d", res.StatusCode)
		}
		return line, nil
	})
}

func RefreshIndexHandler(calc f.IndexCalculator) Handler {
	return HandlerFunc(func(ctx context.Context, job f.Job) (string, error) {
		p, ok := job.Payload.(f.RefreshIndexPayload)
		if !ok {
			return fmt.Sprintf("%s: unexpected payload %T", job.Kind, job.Payload), fmt.Errorf("unexpected payload %T", job.Payload)
		}
		line := "refreshed index calculations for " + p.LevelID
		if err := calc.RefreshIndexCalcs(ctx, p.LevelID); err != nil {
			return fmt.Sprintf("%s: %v", line, err), err
		}
		return line, nil
	})
}

func CalcPlayAttemptsHandler(calc f.PlayAttemptsCalculator) Handler {
	return HandlerFunc(func(ctx context.Context, job f.Job) (string, error) {
		p, ok := job.Payload.(f.CalcPlayAttemptsPayload)
		if !ok {
			return fmt.Sprintf("%s: unexpected payload %T", job.Kind, job.Payload), fmt.Errorf("unexpected payload %T", job.Payload)
		}
		line := "calc play attempts for " + p.LevelID
		if err := calc.CalcPlayAttempts(ctx, p.LevelID); err != nil {
			return fmt.Sprintf("%s: %v", line, err), err
		}
		return line, nil
	})
}
