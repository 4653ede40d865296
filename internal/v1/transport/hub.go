// Package transport is the WebSocket edge (C5's socket half): it upgrades
// HTTP connections, tracks which sockets are bound to which room, and routes
// inbound frames to the room engine. Every outbound broadcast happens after
// the engine's mutating call has already released the room lock (the engine
// calls back into Hub.Emit/EmitTo itself); this package never holds a room
// lock of its own. Grounded on the teacher's transport.Hub (register/
// unregister bookkeeping, buffered per-client send channel, read/write
// pumps) with the protobuf wire codec replaced by JSON, following
// Seednode-partybox's ReadJSON/WriteJSON idiom (no generated protobuf stubs
// exist in this pack).
package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/logging"
	"github.com/ovidtrivia/quizroom/internal/v1/metrics"
	"github.com/ovidtrivia/quizroom/internal/v1/questions"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
	"github.com/ovidtrivia/quizroom/internal/v1/socket"
)

// Engine is the subset of the room registry the hub dispatches inbound
// socket events against. Satisfied by *room.Registry.
type Engine interface {
	GetRoom(pin string) (*room.Room, error)
	AddMessage(pin, participantID, text string) (*room.Room, room.ChatMessage, error)
	StartGame(pin, requestedBy string, questions []room.Question) (*room.Room, error)
	SubmitAnswer(pin, participantID string, optionIndex int) (*room.Room, error)
}

// Binder is the subset of socket.Binder the hub needs. Satisfied by
// *socket.Binder.
type Binder interface {
	Bind(pin, participantID, sid string) error
	GetBound(sid string) (socket.Binding, bool)
	Unbind(sid string) (*room.Room, room.Participant, *room.Participant, error)
	UnbindParticipant(pin, participantID string)
}

// Provider generates a fresh question set to back a start_game request.
// Satisfied by *questions.Provider.
type Provider interface {
	Generate(ctx context.Context, topic string, perTeam int) questions.Result
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub owns every live WebSocket connection and the pin -> bound-sockets
// index that lets Emit/EmitTo reach the right clients without the engine
// knowing anything about sockets.
type Hub struct {
	mu    sync.Mutex
	byPin map[string]map[string]*Client
	bySid map[string]*Client

	binder   Binder
	engine   Engine
	provider Provider

	allowedOrigins []string
}

// NewHub constructs a Hub. allowedOrigins may contain "*" to allow any
// origin (the default, matching CORS_ALLOW_ORIGINS).
func NewHub(binder Binder, engine Engine, provider Provider, allowedOrigins []string) *Hub {
	return &Hub{
		byPin:          make(map[string]map[string]*Client),
		bySid:          make(map[string]*Client),
		binder:         binder,
		engine:         engine,
		provider:       provider,
		allowedOrigins: allowedOrigins,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWs upgrades the request to a WebSocket and runs the connection's
// read/write pumps until it closes. GET /ws
func (h *Hub) ServeWs(c *gin.Context) {
	up := upgrader
	up.CheckOrigin = func(r *http.Request) bool {
		return validateOrigin(r, h.allowedOrigins)
	}

	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		sid:  uuid.NewString(),
		send: make(chan []byte, 32),
	}

	h.mu.Lock()
	h.bySid[client.sid] = client
	h.mu.Unlock()

	metrics.IncConnection()
	go client.writePump()
	client.readPump()
}

// validateOrigin reports whether r's Origin header is acceptable. An empty
// origin (non-browser clients) and a configured "*" are always allowed.
func validateOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" {
			return true
		}
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		allowedURL, err := url.Parse(a)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// Emit sends event/data to every socket bound to pin, except the one bound
// to skipParticipantID (when non-empty). Implements room.Broadcaster and
// timer.Broadcaster.
func (h *Hub) Emit(pin string, event events.Name, data any, skipParticipantID string) {
	h.mu.Lock()
	clients := h.byPin[pin]
	targets := make([]*Client, 0, len(clients))
	for _, c := range clients {
		if skipParticipantID != "" && c.boundParticipant() == skipParticipantID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	payload, err := marshalEnvelope(event, data)
	if err != nil {
		logging.Warn(context.Background(), "failed to marshal outbound event", zap.String("event", string(event)), zap.Error(err))
		return
	}
	for _, c := range targets {
		c.enqueue(payload)
	}
}

// EmitTo sends event/data to the single socket bound to participantID within
// pin, if any. Implements room.Broadcaster.
func (h *Hub) EmitTo(pin, participantID string, event events.Name, data any) {
	h.mu.Lock()
	var target *Client
	for _, c := range h.byPin[pin] {
		if c.boundParticipant() == participantID {
			target = c
			break
		}
	}
	h.mu.Unlock()
	if target == nil {
		return
	}

	payload, err := marshalEnvelope(event, data)
	if err != nil {
		logging.Warn(context.Background(), "failed to marshal outbound event", zap.String("event", string(event)), zap.Error(err))
		return
	}
	target.enqueue(payload)
}

func (h *Hub) trackBinding(pin, participantID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.setBinding(pin, participantID)
	m, ok := h.byPin[pin]
	if !ok {
		m = make(map[string]*Client)
		h.byPin[pin] = m
	}
	m[c.sid] = c
}

func (h *Hub) untrackBinding(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pin := c.boundPin()
	if pin == "" {
		return
	}
	if m, ok := h.byPin[pin]; ok {
		delete(m, c.sid)
		if len(m) == 0 {
			delete(h.byPin, pin)
		}
	}
	c.clearBinding()
}

// leaveCurrentRoom unbinds c from whatever room it is bound to, treating the
// departure as a leaveRoom call (C3). Safe to call on an unbound client.
func (h *Hub) leaveCurrentRoom(c *Client) {
	if c.boundPin() == "" {
		return
	}
	if _, _, _, err := h.binder.Unbind(c.sid); err != nil {
		logging.Warn(context.Background(), "unbind on leave failed", zap.Error(err))
	}
	h.untrackBinding(c)
}

// EvictParticipant clears any socket binding held for (pin, participantID)
// without driving a leave through the engine, for callers (the REST edge)
// that have already removed the participant from the room themselves.
// Safe to call when the participant has no live socket.
func (h *Hub) EvictParticipant(pin, participantID string) {
	h.binder.UnbindParticipant(pin, participantID)

	h.mu.Lock()
	var stale []*Client
	if m, ok := h.byPin[pin]; ok {
		for sid, c := range m {
			if c.boundParticipant() == participantID {
				delete(m, sid)
				stale = append(stale, c)
			}
		}
		if len(m) == 0 {
			delete(h.byPin, pin)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		c.clearBinding()
	}
}

// handleDisconnect is called once from Client.readPump's deferred cleanup.
// A disconnect IS a leave (spec §4.3).
func (h *Hub) handleDisconnect(c *Client) {
	h.leaveCurrentRoom(c)

	h.mu.Lock()
	delete(h.bySid, c.sid)
	h.mu.Unlock()
}

// Shutdown closes every live connection so a process-wide shutdown does not
// leave sockets dangling; their readPumps will observe the close and run
// the normal disconnect cleanup.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.bySid))
	for _, c := range h.bySid {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}
