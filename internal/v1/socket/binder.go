// Package socket maintains the sid -> (pin, participantId) index that lets
// the transport layer route an inbound WebSocket frame to the right
// room/participant without the engine knowing anything about sockets.
package socket

import (
	"sync"

	"github.com/ovidtrivia/quizroom/internal/v1/room"
)

// Binding identifies which room/participant a socket is currently acting
// as.
type Binding struct {
	Pin           string
	ParticipantID string
}

// Engine is the subset of the room registry the binder needs.
type Engine interface {
	BindSocket(pin, participantID, sid string) error
	LeaveRoom(pin, participantID string) (*room.Room, room.Participant, *room.Participant, error)
}

// Binder indexes live socket IDs against the participant they are
// currently bound to. It is a pure cache: every entry is reconstructable
// from Participant records, and it is never persisted.
type Binder struct {
	mu     sync.Mutex
	byID   map[string]Binding
	engine Engine
}

// NewBinder constructs an empty Binder bound to engine.
func NewBinder(engine Engine) *Binder {
	return &Binder{
		byID:   make(map[string]Binding),
		engine: engine,
	}
}

// Bind associates sid with (pin, participantId), evicting any prior sid
// this participant held under a different connection.
func (b *Binder) Bind(pin, participantID, sid string) error {
	if err := b.engine.BindSocket(pin, participantID, sid); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for existingSid, binding := range b.byID {
		if binding.Pin == pin && binding.ParticipantID == participantID && existingSid != sid {
			delete(b.byID, existingSid)
		}
	}
	b.byID[sid] = Binding{Pin: pin, ParticipantID: participantID}
	return nil
}

// GetBound returns the (pin, participantId) a socket is bound to, if any.
func (b *Binder) GetBound(sid string) (Binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	binding, ok := b.byID[sid]
	return binding, ok
}

// UnbindParticipant removes every sid entry bound to (pin, participantID)
// without calling back into the engine. It is used when the engine-side
// leave already happened through a path other than a socket disconnect
// (e.g. the REST leave endpoint), so the stale binding left behind by a
// still-open socket does not linger until that socket disconnects on its
// own (spec §4.2: "clear all socket bindings for that participant").
func (b *Binder) UnbindParticipant(pin, participantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sid, binding := range b.byID {
		if binding.Pin == pin && binding.ParticipantID == participantID {
			delete(b.byID, sid)
		}
	}
}

// Unbind removes sid's index entry and treats the disconnect as a leave:
// the bound participant is removed from its room exactly as if they had
// called leaveRoom directly.
func (b *Binder) Unbind(sid string) (*room.Room, room.Participant, *room.Participant, error) {
	b.mu.Lock()
	binding, ok := b.byID[sid]
	if ok {
		delete(b.byID, sid)
	}
	b.mu.Unlock()

	if !ok {
		return nil, room.Participant{}, nil, room.ErrNotFound
	}
	return b.engine.LeaveRoom(binding.Pin, binding.ParticipantID)
}
