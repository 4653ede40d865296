package transport

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/logging"
)

// dispatch routes one decoded inbound frame to the matching engine
// operation. Unbound sockets may only send create_room/join_room; every
// other event requires a prior binding and emits error otherwise.
func (h *Hub) dispatch(c *Client, frame inboundFrame) {
	switch frame.Event {
	case events.InCreateRoom:
		h.handleCreateRoom(c, frame.Data)
	case events.InJoinRoom:
		h.handleJoinRoom(c, frame.Data)
	case events.InMessage:
		h.handleMessage(c, frame.Data)
	case events.InStartGame:
		h.handleStartGame(c, frame.Data)
	case events.InAnswer:
		h.handleAnswer(c, frame.Data)
	case events.InLeaveRoom:
		h.handleLeaveRoom(c)
	default:
		c.sendError("unknown event: " + string(frame.Event))
	}
}

func (h *Hub) handleCreateRoom(c *Client, raw json.RawMessage) {
	var payload events.InboundCreateRoom
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError("malformed create_room payload")
		return
	}
	if err := h.binder.Bind(payload.Pin, payload.ParticipantID, c.sid); err != nil {
		c.sendError(err.Error())
		return
	}
	h.trackBinding(payload.Pin, payload.ParticipantID, c)

	snap, err := h.engine.GetRoom(payload.Pin)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendEvent(events.OutRoomCreated, snap)
}

func (h *Hub) handleJoinRoom(c *Client, raw json.RawMessage) {
	var payload events.InboundJoinRoom
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError("malformed join_room payload")
		return
	}
	if err := h.binder.Bind(payload.Pin, payload.ParticipantID, c.sid); err != nil {
		c.sendError(err.Error())
		return
	}
	h.trackBinding(payload.Pin, payload.ParticipantID, c)

	snap, err := h.engine.GetRoom(payload.Pin)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendEvent(events.OutRoomJoined, snap)
}

// requireBound fetches the caller's (pin, participantId), emitting error and
// reporting false if the socket is not yet bound to a room.
func (h *Hub) requireBound(c *Client) (pin, participantID string, ok bool) {
	pin = c.boundPin()
	participantID = c.boundParticipant()
	if pin == "" || participantID == "" {
		c.sendError("socket is not bound to a room")
		return "", "", false
	}
	return pin, participantID, true
}

func (h *Hub) handleMessage(c *Client, raw json.RawMessage) {
	pin, participantID, ok := h.requireBound(c)
	if !ok {
		return
	}
	var payload events.InboundMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError("malformed message payload")
		return
	}
	if _, _, err := h.engine.AddMessage(pin, participantID, payload.Text); err != nil {
		c.sendError(err.Error())
	}
}

func (h *Hub) handleAnswer(c *Client, raw json.RawMessage) {
	pin, participantID, ok := h.requireBound(c)
	if !ok {
		return
	}
	var payload events.InboundAnswer
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.sendError("malformed answer payload")
		return
	}
	if _, err := h.engine.SubmitAnswer(pin, participantID, payload.OptionIndex); err != nil {
		c.sendError(err.Error())
	}
}

func (h *Hub) handleLeaveRoom(c *Client) {
	if _, _, ok := h.requireBound(c); !ok {
		return
	}
	h.leaveCurrentRoom(c)
}

// handleStartGame runs the question-provider call and the resulting
// startGame transition. The provider call can take up to GEMINI_TIMEOUT_SECONDS;
// it blocks only this client's readPump goroutine, never the room lock or
// any other client's connection.
func (h *Hub) handleStartGame(c *Client, raw json.RawMessage) {
	pin, participantID, ok := h.requireBound(c)
	if !ok {
		return
	}

	r, err := h.engine.GetRoom(pin)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	h.Emit(pin, events.OutGamePreparing, events.GamePreparingPayload{
		Preparing:        true,
		Topic:            r.Topic,
		QuestionsPerTeam: r.QuestionsPerTeam,
	}, "")

	result := h.provider.Generate(context.Background(), r.Topic, r.QuestionsPerTeam)

	if _, err := h.engine.StartGame(pin, participantID, result.Questions); err != nil {
		logging.Warn(context.Background(), "start_game failed", zap.String("pin", pin), zap.Error(err))
		h.Emit(pin, events.OutGamePreparing, events.GamePreparingPayload{
			Preparing: false,
			Error:     err.Error(),
		}, "")
		c.sendError(err.Error())
		return
	}

	h.Emit(pin, events.OutGamePreparing, events.GamePreparingPayload{
		Preparing: false,
		Source:    result.Source,
		Message:   result.Reason,
	}, "")
}
