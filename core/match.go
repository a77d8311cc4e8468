package f

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var ErrMatchNotFound = errors.New("match: not found")

type MatchState string

const (
	MatchOpen     MatchState = "OPEN"
	MatchActive   MatchState = "ACTIVE"
	MatchFinished MatchState = "FINISHED"
	MatchAborted  MatchState = "ABORTED"
)

type Player struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type Match struct {
	bun.BaseModel `bun:"table:multiplayer_matches"`

	MatchID   string         `bun:"match_id,pk" json:"matchId"`
	State     MatchState     `bun:"state,notnull" json:"state"`
	Players   []Player       `bun:"players,type:text" json:"players"`
	StartTime time.Time      `bun:"start_time,notnull" json:"startTime"`
	EndTime   time.Time      `bun:"end_time,notnull" json:"endTime"`
	Levels    []string       `bun:"levels,type:text" json:"levels"`
	Scores    map[string]int `bun:"scores,type:text" json:"scores"`
	CreatedBy string         `bun:"created_by" json:"createdBy"`
	CreatedAt time.Time      `bun:"created_at,notnull" json:"createdAt"`
}

func (m Match) HasPlayer(userID string) bool {
	for _, p := range m.Players {
		if p.ID == userID {
			return true
		}
	}
	return false
}

func (m Match) PlayerIDs() []string {
	ids := make([]string, 0, len(m.Players))
	for _, p := range m.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// MatchView is the broadcast form of a match. Levels is only populated
// for viewers allowed to see them.
type MatchView struct {
	MatchID   string         `json:"matchId"`
	State     MatchState     `json:"state"`
	Players   []Player       `json:"players"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Levels    []string       `json:"levels,omitempty"`
	Scores    map[string]int `json:"scores"`
	CreatedBy string         `json:"createdBy"`
}

// EnrichMatch builds the view of m seen by viewerID. Levels are revealed to
// the players of an active match, and to everyone once it is finished.
// An empty viewerID yields the public view.
func EnrichMatch(m Match, viewerID string) MatchView {
	view := MatchView{
		MatchID:   m.MatchID,
		State:     m.State,
		Players:   append([]Player{}, m.Players...),
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Scores:    make(map[string]int, len(m.Scores)),
		CreatedBy: m.CreatedBy,
	}
	for k, v := range m.Scores {
		view.Scores[k] = v
	}
	reveal := m.State == MatchFinished ||
		(m.State == MatchActive && viewerID != "" && m.HasPlayer(viewerID))
	if reveal {
		view.Levels = append([]string{}, m.Levels...)
	}
	return view
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID         string `bun:"id,pk" json:"_id"`
	Name       string `bun:"name,notnull" json:"name"`
	HideStatus bool   `bun:"hide_status,notnull" json:"hideStatus,omitempty"`
}

type MatchSource interface {
	// GetMatch returns ErrMatchNotFound when the match does not exist.
	GetMatch(ctx context.Context, matchID string) (*Match, error)
	// ListActive returns matches that are open or in progress.
	ListActive(ctx context.Context) ([]Match, error)
	// CheckForFinishedMatch moves a match past its end time to FINISHED.
	CheckForFinishedMatch(ctx context.Context, matchID string) error
}

// SessionSource enumerates the user ids behind connected sessions. The same
// user may appear once per open session.
type SessionSource interface {
	ConnectedSessions(ctx context.Context) ([]string, error)
}

type UserDirectory interface {
	GetUsers(ctx context.Context, ids []string) ([]User, error)
}
