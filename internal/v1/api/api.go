// Package api implements the REST edge (D1): gin handlers under /api/v1
// that wrap the room registry and session store. Every handler that
// mutates room state relies on the engine's own broadcast calls for
// socket fan-out (see internal/v1/room); this package only ever emits the
// game_preparing milestone directly, since question generation is a
// concern the REST edge orchestrates itself (mirroring
// internal/v1/transport's handleStartGame). Grounded on the teacher's
// cmd/v1/session/main.go for router/cookie idioms and on
// Seednode-partybox's cookie/QR handlers for the opaque-identifier and
// PNG QR patterns this system replaces JWT auth with.
package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/questions"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
	"github.com/ovidtrivia/quizroom/internal/v1/session"
)

// Engine is the subset of *room.Registry the REST edge drives.
type Engine interface {
	CreateRoom(hostName, topic string, questionsPerTeam, maxParticipants, timerSeconds int) (*room.Room, room.Participant, error)
	JoinRoom(pin, name string) (*room.Room, room.Participant, error)
	GetRoom(pin string) (*room.Room, error)
	CheckPin(pin string) bool
	StartGame(pin, requestedBy string, qs []room.Question) (*room.Room, error)
	SubmitAnswer(pin, participantID string, optionIndex int) (*room.Room, error)
	AddMessage(pin, participantID, text string) (*room.Room, room.ChatMessage, error)
	LeaveRoom(pin, participantID string) (*room.Room, room.Participant, *room.Participant, error)
}

// SessionStore is the subset of *session.Store the REST edge drives.
type SessionStore interface {
	Create(roomPin, participantID, name string, role room.Role) session.Data
	Get(sessionID string) (session.Data, bool)
	Delete(sessionID string)
	UpdateRole(roomPin, participantID string, role room.Role)
	DeleteByRoom(roomPin string)
}

// Provider generates a fresh question set to back /rooms/{pin}/start.
type Provider interface {
	Generate(ctx context.Context, topic string, perTeam int) questions.Result
}

// Broadcaster lets the REST edge announce the game_preparing milestone the
// same way the WebSocket edge does, since generation happens here too, and
// lets it clear a stale socket binding after an engine-side leave.
type Broadcaster interface {
	Emit(pin string, event events.Name, data any, skipParticipantID string)
	EvictParticipant(pin, participantID string)
}

// Handlers wires the engine, session store, and question provider into the
// REST surface declared in SPEC_FULL.md §6.
type Handlers struct {
	engine    Engine
	sessions  SessionStore
	provider  Provider
	broadcast Broadcaster

	publicBaseURL string
	secureCookie  bool
}

// NewHandlers constructs Handlers. publicBaseURL is used to build the join
// URL encoded into QR codes (empty means "derive from the request host").
// secureCookie sets the cookie's Secure flag (true in production).
func NewHandlers(engine Engine, sessions SessionStore, provider Provider, broadcast Broadcaster, publicBaseURL string, secureCookie bool) *Handlers {
	return &Handlers{
		engine:        engine,
		sessions:      sessions,
		provider:      provider,
		broadcast:     broadcast,
		publicBaseURL: publicBaseURL,
		secureCookie:  secureCookie,
	}
}

// RegisterRoutes attaches every handler in SPEC_FULL.md §6 (core +
// supplemented) under rg.
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/rooms", h.createRoom)
	rg.POST("/rooms/check-pin", h.checkPin)
	rg.GET("/rooms/check-pin", h.checkPin)
	rg.POST("/rooms/:pin/join", h.joinRoom)
	rg.GET("/rooms/:pin", h.getRoom)
	rg.GET("/rooms/:pin/qr", h.roomQR)
	rg.POST("/rooms/:pin/start", h.startGame)
	rg.POST("/rooms/:pin/answer", h.submitAnswer)
	rg.POST("/rooms/:pin/messages", h.postMessage)
	rg.POST("/rooms/:pin/leave", h.leaveRoom)
	rg.GET("/session", h.getSession)
	rg.POST("/session/logout", h.logout)
	rg.GET("/health", h.health)
}
