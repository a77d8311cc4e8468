package realtime

import (
	"context"
	"fmt"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

// Scheduler arms a broadcast at the start and at the end of each match.
type Scheduler struct {
	registry    *Registry
	matches     f.MatchSource
	broadcaster *Broadcaster
	skew        time.Duration
	now         func() time.Time
	// timeout bounds the work done by one firing.
	timeout time.Duration
}

type SchedulerOption func(*Scheduler)

// WithSkew delays every firing by d past the match timestamps, so that
// state checks run after the stored time has passed.
func WithSkew(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.skew = d
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

func NewScheduler(registry *Registry, matches f.MatchSource, broadcaster *Broadcaster, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		registry:    registry,
		matches:     matches,
		broadcaster: broadcaster,
		skew:        time.Millisecond,
		now:         time.Now,
		timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule replaces the timers of matchID with a pair computed from the
// match's current start and end times. Times already past fire at once.
func (s *Scheduler) Schedule(ctx context.Context, matchID string) error {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", matchID, err)
	}
	now := s.now()
	startDelay := match.StartTime.Sub(now) + s.skew
	endDelay := match.EndTime.Sub(now) + s.skew
	s.registry.Register(matchID, startDelay, endDelay, func(phase Phase) {
		s.fire(matchID, phase)
	})
	log.WithMatch(matchID).Debugf("broadcasts scheduled in %s and %s", startDelay, endDelay)
	return nil
}

// Unschedule cancels the timers of matchID, if any.
func (s *Scheduler) Unschedule(matchID string) bool {
	return s.registry.Cancel(matchID)
}

// ClearAll cancels every pending timer.
func (s *Scheduler) ClearAll() int {
	n := s.registry.ClearAll()
	if n > 0 {
		log.Info("cleared %d match schedules", n)
	}
	return n
}

// ScheduleActive arms timers for every open or running match.
func (s *Scheduler) ScheduleActive(ctx context.Context) (int, error) {
	matches, err := s.matches.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list matches: %w", err)
	}
	scheduled := 0
	for _, m := range matches {
		if err := s.Schedule(ctx, m.MatchID); err != nil {
			log.WithMatch(m.MatchID).Warnf("failed to schedule: %v", err)
			continue
		}
		scheduled++
	}
	return scheduled, nil
}

// fire never propagates errors; a failing firing must not affect other
// timers.
func (s *Scheduler) fire(matchID string, phase Phase) {
	logger := log.WithMatch(matchID).WithField("phase", phase)
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.matches.CheckForFinishedMatch(ctx, matchID); err != nil {
		logger.Errorf("check for finished match failed: %v", err)
	}
	if err := s.broadcaster.BroadcastMatch(ctx, matchID); err != nil {
		logger.Errorf("broadcast failed: %v", err)
	}
	if err := s.broadcaster.BroadcastMatches(ctx); err != nil {
		logger.Errorf("lobby refresh failed: %v", err)
	}
}
