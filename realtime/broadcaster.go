package realtime

import (
	"context"
	"errors"
	"fmt"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/soffa-projects/matchqueue/log"
)

// Broadcaster pushes match and presence views to rooms.
type Broadcaster struct {
	emitter  f.RoomEmitter
	matches  f.MatchSource
	sessions f.SessionSource
	users    f.UserDirectory
}

func NewBroadcaster(emitter f.RoomEmitter, matches f.MatchSource, sessions f.SessionSource, users f.UserDirectory) *Broadcaster {
	return &Broadcaster{
		emitter:  emitter,
		matches:  matches,
		sessions: sessions,
		users:    users,
	}
}

// BroadcastMatch sends every player its own view of the match, then sends
// the public view to the match room without those players. A missing match
// is logged and skipped.
func (b *Broadcaster) BroadcastMatch(ctx context.Context, matchID string) error {
	match, err := b.matches.GetMatch(ctx, matchID)
	if errors.Is(err, f.ErrMatchNotFound) {
		log.WithMatch(matchID).Error("cant find match to broadcast to")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchID, err)
	}

	for _, player := range match.Players {
		err := b.emitter.Emit(ctx, f.Emission{
			Room:  f.UserRoom(player.ID),
			Event: f.EventMatch,
			Data:  f.EnrichMatch(*match, player.ID),
		})
		if err != nil {
			return fmt.Errorf("emit match %s to %s: %w", matchID, player.ID, err)
		}
	}
	return b.emitter.Emit(ctx, f.Emission{
		Room:   matchID,
		Except: f.UserRooms(match.PlayerIDs()),
		Event:  f.EventMatch,
		Data:   f.EnrichMatch(*match, ""),
	})
}

// BroadcastConnectedPlayers emits the visible users behind the connected
// sessions to everyone.
func (b *Broadcaster) BroadcastConnectedPlayers(ctx context.Context) error {
	ids, err := b.sessions.ConnectedSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	users, err := b.users.GetUsers(ctx, h.UniqueStrings(ids))
	if err != nil {
		return fmt.Errorf("load connected users: %w", err)
	}
	visible := make([]f.User, 0, len(users))
	for _, u := range users {
		if !u.HideStatus {
			visible = append(visible, u)
		}
	}
	return b.emitter.Emit(ctx, f.Emission{
		Room:  f.GlobalRoom,
		Event: f.EventConnectedPlayers,
		Data:  visible,
	})
}

// BroadcastMatches refreshes the lobby with the public view of every open
// or running match.
func (b *Broadcaster) BroadcastMatches(ctx context.Context) error {
	matches, err := b.matches.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list matches: %w", err)
	}
	views := make([]f.MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, f.EnrichMatch(m, ""))
	}
	return b.emitter.Emit(ctx, f.Emission{
		Room:  f.LobbyRoom,
		Event: f.EventMatches,
		Data:  views,
	})
}
