package adapters

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

const (
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

// OutboundMessage is the frame written to sockets for every emission.
type OutboundMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// InboundMessage is what clients send to enter or leave rooms.
type InboundMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type session struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]struct{}
}

// Hub tracks websocket sessions and their rooms. Every session joins the
// private room of its user on connect.
type Hub struct {
	mu       sync.Mutex
	sessions map[*session]struct{}
	rooms    map[string]map[*session]struct{}

	verifier     f.TokenVerifier
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	onPresence   func()
}

type HubOption func(*Hub)

func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) { h.pingInterval = d }
}

// WithPresenceHook registers fn to run after a user connects or disconnects.
func WithPresenceHook(fn func()) HubOption {
	return func(h *Hub) { h.onPresence = fn }
}

func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

func NewHub(verifier f.TokenVerifier, opts ...HubOption) *Hub {
	h := &Hub{
		sessions:     make(map[*session]struct{}),
		rooms:        make(map[string]map[*session]struct{}),
		verifier:     verifier,
		pingInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetPresenceHook replaces the presence hook after construction.
func (h *Hub) SetPresenceHook(fn func()) {
	h.mu.Lock()
	h.onPresence = fn
	h.mu.Unlock()
}

// Emit delivers e to the sessions of e.Room, or to every session for the
// global room, skipping sessions that joined any room in e.Except.
func (h *Hub) Emit(ctx context.Context, e f.Emission) error {
	msg, err := json.Marshal(OutboundMessage{Event: e.Event, Data: e.Data})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var targets map[*session]struct{}
	if e.Room == f.GlobalRoom {
		targets = h.sessions
	} else {
		targets = h.rooms[e.Room]
	}
	for s := range targets {
		if s.inAny(e.Except) {
			continue
		}
		select {
		case s.send <- msg:
		default:
			log.Warn("dropping slow session %s of %s", s.id, s.userID)
			h.removeLocked(s)
		}
	}
	return nil
}

// ConnectedSessions returns the user id of every open session.
func (h *Hub) ConnectedSessions(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.sessions))
	for s := range h.sessions {
		ids = append(ids, s.userID)
	}
	return ids, nil
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// RoomSize reports how many sessions joined room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// ServeHTTP authenticates the "token" query parameter and upgrades the
// connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil || userID == "" {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}
	s := &session{
		id:     r.RemoteAddr,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		rooms:  map[string]struct{}{},
	}
	h.register(s)
	go h.writePump(s)
	go h.readPump(s)
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	for s := range h.sessions {
		h.removeLocked(s)
	}
	h.mu.Unlock()
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.joinLocked(s, f.UserRoom(s.userID))
	hook := h.onPresence
	h.mu.Unlock()
	log.Debug("session %s connected as %s", s.id, s.userID)
	if hook != nil {
		go hook()
	}
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	_, known := h.sessions[s]
	h.removeLocked(s)
	hook := h.onPresence
	h.mu.Unlock()
	if known && hook != nil {
		go hook()
	}
}

func (h *Hub) removeLocked(s *session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	for room := range s.rooms {
		h.leaveLocked(s, room)
	}
	close(s.send)
}

func (h *Hub) joinLocked(s *session, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	s.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(s *session, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(s.rooms, room)
}

// handle applies a client request. Private user rooms are managed by the
// hub alone, whether or not their owner is connected.
func (h *Hub) handle(s *session, in InboundMessage) {
	if in.Room == f.GlobalRoom {
		return
	}
	if f.IsUserRoom(in.Room) {
		log.Warn("session %s of %s tried to use private room %s", s.id, s.userID, in.Room)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	switch in.Type {
	case "join":
		h.joinLocked(s, in.Room)
	case "leave":
		h.leaveLocked(s, in.Room)
	}
}

func (h *Hub) readPump(s *session) {
	defer func() {
		h.unregister(s)
		_ = s.conn.Close()
	}()
	wait := 2 * h.pingInterval
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(wait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		var in InboundMessage
		if err := s.conn.ReadJSON(&in); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Debug("read deadline exceeded for %s", s.id)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read error for %s: %v", s.id, err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(wait))
		h.handle(s, in)
	}
}

func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("write error for %s: %v", s.id, err)
				h.unregister(s)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.unregister(s)
				return
			}
		}
	}
}

func (s *session) inAny(rooms []string) bool {
	for _, r := range rooms {
		if _, ok := s.rooms[r]; ok {
			return true
		}
	}
	return false
}
