package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

type Phase string

const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
)

// Timer is the part of *time.Timer the registry needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn on its own goroutine after d.
type AfterFunc func(d time.Duration, fn func()) Timer

func stdAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

type task struct {
	timer     Timer
	cancelled atomic.Bool
}

func (t *task) cancel() {
	t.cancelled.Store(true)
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Entry is the handle of one registered start/end pair.
type Entry struct {
	MatchID string
	start   *task
	end     *task
}

// Cancelled reports whether the pair was cancelled or replaced.
func (e *Entry) Cancelled() bool {
	return e.start.cancelled.Load() && e.end.cancelled.Load()
}

func (e *Entry) cancel() {
	e.start.cancel()
	e.end.cancel()
}

// Registry owns the start/end timers of every scheduled match. At most one
// pair is live per match id.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	afterFunc AfterFunc
}

type RegistryOption func(*Registry)

// WithAfterFunc replaces time.AfterFunc, for tests.
func WithAfterFunc(fn AfterFunc) RegistryOption {
	return func(r *Registry) {
		r.afterFunc = fn
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:   make(map[string]*Entry),
		afterFunc: stdAfterFunc,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register arms fire for the start and end of matchID, cancelling any pair
// registered before. Once the end task ran, the entry is released.
func (r *Registry) Register(matchID string, startDelay time.Duration, endDelay time.Duration, fire func(phase Phase)) *Entry {
	entry := &Entry{MatchID: matchID, start: &task{}, end: &task{}}

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.entries[matchID]; ok {
		previous.cancel()
	}
	entry.start.timer = r.afterFunc(startDelay, func() {
		if entry.start.cancelled.Load() {
			return
		}
		fire(PhaseStart)
	})
	entry.end.timer = r.afterFunc(endDelay, func() {
		if entry.end.cancelled.Load() {
			return
		}
		fire(PhaseEnd)
		r.release(entry)
	})
	r.entries[matchID] = entry
	return entry
}

// Cancel stops the pair registered for matchID.
func (r *Registry) Cancel(matchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[matchID]
	if !ok {
		return false
	}
	entry.cancel()
	delete(r.entries, matchID)
	return true
}

// ClearAll cancels every pair and returns how many there were.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	for id, entry := range r.entries {
		entry.cancel()
		delete(r.entries, id)
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) release(entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.entries[entry.MatchID]; ok && current == entry {
		delete(r.entries, entry.MatchID)
	}
}
