package f

import (
	"context"
	"strings"
)

const (
	// GlobalRoom addresses every connected session.
	GlobalRoom = ""
	LobbyRoom  = "LOBBY"
	// UserRoomPrefix marks the private room of a user. Only the hub puts
	// sessions in these rooms.
	UserRoomPrefix = "user:"

	EventMatch            = "match"
	EventMatches          = "matches"
	EventConnectedPlayers = "connectedPlayers"
)

// Emission is one event sent to a room. Sessions joined to any room in
// Except do not receive it.
type Emission struct {
	Room   string   `json:"room"`
	Except []string `json:"except,omitempty"`
	Event  string   `json:"event"`
	Data   any      `json:"data"`
}

type RoomEmitter interface {
	Emit(ctx context.Context, e Emission) error
}

// UserRoom names the private room of userID.
func UserRoom(userID string) string {
	return UserRoomPrefix + userID
}

func UserRooms(userIDs []string) []string {
	rooms := make([]string, len(userIDs))
	for i, id := range userIDs {
		rooms[i] = UserRoom(id)
	}
	return rooms
}

func IsUserRoom(room string) bool {
	return strings.HasPrefix(room, UserRoomPrefix)
}
