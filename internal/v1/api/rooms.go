package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
)

type createRoomRequest struct {
	HostName         string `json:"hostName"`
	Topic            string `json:"topic"`
	QuestionsPerTeam int    `json:"questionsPerTeam"`
	MaxParticipants  int    `json:"maxParticipants"`
	TimerSeconds     int    `json:"timerSeconds"`
}

func (r createRoomRequest) validate() string {
	if strings.TrimSpace(r.HostName) == "" {
		return "hostName is required"
	}
	if r.QuestionsPerTeam != 5 && r.QuestionsPerTeam != 6 && r.QuestionsPerTeam != 7 {
		return "questionsPerTeam must be 5, 6, or 7"
	}
	if r.MaxParticipants < 2 || r.MaxParticipants > 100 {
		return "maxParticipants must be between 2 and 100"
	}
	if r.TimerSeconds < 10 || r.TimerSeconds > 120 {
		return "timerSeconds must be between 10 and 120"
	}
	return ""
}

// createRoom handles POST /rooms.
func (h *Handlers) createRoom(c *gin.Context) {
	if _, ok := h.currentSession(c); ok {
		c.JSON(http.StatusConflict, gin.H{"error": "this session already belongs to a room"})
		return
	}

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "malformed request body")
		return
	}
	if msg := req.validate(); msg != "" {
		validationError(c, msg)
		return
	}

	r, host, err := h.engine.CreateRoom(req.HostName, req.Topic, req.QuestionsPerTeam, req.MaxParticipants, req.TimerSeconds)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	sess := h.sessions.Create(r.Pin, host.ParticipantID, host.Name, host.Role)
	h.setSessionCookie(c, sess.SessionID)

	c.JSON(http.StatusCreated, gin.H{
		"room":        r,
		"participant": host,
	})
}

type checkPinRequest struct {
	Pin string `json:"pin" form:"pin"`
}

// checkPin handles POST/GET /rooms/check-pin.
func (h *Handlers) checkPin(c *gin.Context) {
	var req checkPinRequest
	if c.Request.Method == http.MethodGet {
		req.Pin = c.Query("pin")
	} else if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Pin) == "" {
		validationError(c, "pin is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": h.engine.CheckPin(req.Pin)})
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName"`
}

// joinRoom handles POST /rooms/{pin}/join.
func (h *Handlers) joinRoom(c *gin.Context) {
	pin := c.Param("pin")

	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "malformed request body")
		return
	}
	if strings.TrimSpace(req.PlayerName) == "" {
		validationError(c, "playerName is required")
		return
	}

	r, p, err := h.engine.JoinRoom(pin, req.PlayerName)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	sess := h.sessions.Create(r.Pin, p.ParticipantID, p.Name, p.Role)
	h.setSessionCookie(c, sess.SessionID)

	c.JSON(http.StatusOK, gin.H{
		"room":        r,
		"participant": p,
	})
}

// getRoom handles GET /rooms/{pin}. The caller must hold a session cookie
// bound to this exact pin.
func (h *Handlers) getRoom(c *gin.Context) {
	pin := c.Param("pin")

	sess, ok := h.currentSession(c)
	if !ok || !strings.EqualFold(sess.RoomPin, pin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no session bound to this room"})
		return
	}

	r, err := h.engine.GetRoom(pin)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// startGame handles POST /rooms/{pin}/start. Host-only. The provider call
// runs between the lock-free read and the mutating transition, mirroring
// internal/v1/transport.handleStartGame: it never holds the room lock.
func (h *Handlers) startGame(c *gin.Context) {
	pin := c.Param("pin")

	sess, ok := h.currentSession(c)
	if !ok || !strings.EqualFold(sess.RoomPin, pin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no session bound to this room"})
		return
	}
	if sess.Role != room.RoleHost {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the host can start the game"})
		return
	}

	r, err := h.engine.GetRoom(pin)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	if h.broadcast != nil {
		h.broadcast.Emit(pin, events.OutGamePreparing, events.GamePreparingPayload{
			Preparing:        true,
			Topic:            r.Topic,
			QuestionsPerTeam: r.QuestionsPerTeam,
		}, "")
	}

	result := h.provider.Generate(c.Request.Context(), r.Topic, r.QuestionsPerTeam)

	updated, err := h.engine.StartGame(pin, sess.ParticipantID, result.Questions)
	if err != nil {
		if h.broadcast != nil {
			h.broadcast.Emit(pin, events.OutGamePreparing, events.GamePreparingPayload{
				Preparing: false,
				Error:     err.Error(),
			}, "")
		}
		writeEngineError(c, err)
		return
	}

	if h.broadcast != nil {
		h.broadcast.Emit(pin, events.OutGamePreparing, events.GamePreparingPayload{
			Preparing: false,
			Source:    result.Source,
			Message:   result.Reason,
		}, "")
	}

	c.JSON(http.StatusOK, gin.H{
		"room":              updated,
		"gameInfo":          updated.GameInfo,
		"generationSource":  result.Source,
		"generationMessage": result.Reason,
	})
}

type answerRequest struct {
	OptionIndex int `json:"optionIndex"`
}

// submitAnswer handles POST /rooms/{pin}/answer.
func (h *Handlers) submitAnswer(c *gin.Context) {
	pin := c.Param("pin")

	sess, ok := h.currentSession(c)
	if !ok || !strings.EqualFold(sess.RoomPin, pin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no session bound to this room"})
		return
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "malformed request body")
		return
	}
	if req.OptionIndex < 0 || req.OptionIndex > 3 {
		validationError(c, "optionIndex must be between 0 and 3")
		return
	}

	r, err := h.engine.SubmitAnswer(pin, sess.ParticipantID, req.OptionIndex)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type messageRequest struct {
	Text string `json:"text"`
}

// postMessage handles POST /rooms/{pin}/messages.
func (h *Handlers) postMessage(c *gin.Context) {
	pin := c.Param("pin")

	sess, ok := h.currentSession(c)
	if !ok || !strings.EqualFold(sess.RoomPin, pin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no session bound to this room"})
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, "malformed request body")
		return
	}
	if len(req.Text) < 1 || len(req.Text) > 400 {
		validationError(c, "text must be between 1 and 400 characters")
		return
	}

	r, msg, err := h.engine.AddMessage(pin, sess.ParticipantID, req.Text)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": r, "message": msg})
}

// leaveRoom handles POST /rooms/{pin}/leave.
func (h *Handlers) leaveRoom(c *gin.Context) {
	pin := c.Param("pin")

	sess, ok := h.currentSession(c)
	if !ok || !strings.EqualFold(sess.RoomPin, pin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "no session bound to this room"})
		return
	}

	_, _, _, err := h.engine.LeaveRoom(pin, sess.ParticipantID)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	if h.broadcast != nil {
		h.broadcast.EvictParticipant(pin, sess.ParticipantID)
	}
	h.sessions.Delete(sess.SessionID)
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// getSession handles GET /session.
func (h *Handlers) getSession(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "session": sess})
}

// logout handles POST /session/logout.
func (h *Handlers) logout(c *gin.Context) {
	if sess, ok := h.currentSession(c); ok {
		h.sessions.Delete(sess.SessionID)
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// health handles GET /health, the teacher's plain liveness endpoint kept
// alongside the supplemented /healthz/live and /healthz/ready split.
func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// joinURL builds the client-facing join URL encoded into a room's QR code.
func (h *Handlers) joinURL(c *gin.Context, pin string) string {
	if h.publicBaseURL != "" {
		return fmt.Sprintf("%s/join/%s", strings.TrimSuffix(h.publicBaseURL, "/"), pin)
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s/join/%s", scheme, c.Request.Host, pin)
}
