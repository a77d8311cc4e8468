package adapters

import (
	"context"
	"database/sql"
	"errors"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

// MatchStore is the bun-backed match source used by the scheduler and
// broadcaster.
type MatchStore struct {
	db  *DB
	now func() time.Time
}

func NewMatchStore(db *DB) *MatchStore {
	return &MatchStore{db: db, now: time.Now}
}

// WithClock overrides the time source used to decide whether a match ended.
func (s *MatchStore) WithClock(now func() time.Time) *MatchStore {
	s.now = now
	return s
}

func (s *MatchStore) Save(ctx context.Context, match *f.Match) error {
	if match.CreatedAt.IsZero() {
		match.CreatedAt = s.now().UTC()
	}
	match.StartTime = match.StartTime.UTC()
	match.EndTime = match.EndTime.UTC()
	_, err := s.db.NewInsert().
		Model(match).
		On("CONFLICT (match_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("players = EXCLUDED.players").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("levels = EXCLUDED.levels").
		Set("scores = EXCLUDED.scores").
		Exec(ctx)
	return err
}

func (s *MatchStore) GetMatch(ctx context.Context, matchID string) (*f.Match, error) {
	match := new(f.Match)
	err := s.db.NewSelect().Model(match).Where("match_id = ?", matchID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, f.ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *MatchStore) ListActive(ctx context.Context) ([]f.Match, error) {
	var matches []f.Match
	err := s.db.NewSelect().
		Model(&matches).
		Where("state IN (?, ?)", f.MatchOpen, f.MatchActive).
		OrderExpr("created_at ASC").
		Scan(ctx)
	return matches, err
}

// CheckForFinishedMatch starts matches whose start time passed and finishes
// those whose end time passed.
func (s *MatchStore) CheckForFinishedMatch(ctx context.Context, matchID string) error {
	now := s.now().UTC()

	res, err := s.db.NewUpdate().
		Model((*f.Match)(nil)).
		Set("state = ?", f.MatchFinished).
		Where("match_id = ?", matchID).
		Where("state = ?", f.MatchActive).
		Where("end_time <= ?", now).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.WithMatch(matchID).Info("match finished")
		return nil
	}

	res, err = s.db.NewUpdate().
		Model((*f.Match)(nil)).
		Set("state = ?", f.MatchActive).
		Where("match_id = ?", matchID).
		Where("state = ?", f.MatchOpen).
		Where("start_time <= ?", now).
		Where("end_time > ?", now).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.WithMatch(matchID).Info("match started")
	}
	return nil
}
