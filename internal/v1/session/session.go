// Package session maps an opaque cookie value to the (pin, participantId)
// it was issued for. It is the JWT replacement named in SPEC_FULL.md
// (SPEC_FULL.md: "JWT/Auth0 -> opaque session cookie"), grounded on the
// original backend's SessionStore.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
)

// Data is the persisted shape of one session.
type Data struct {
	SessionID     string    `json:"sessionId"`
	RoomPin       string    `json:"roomPin"`
	ParticipantID string    `json:"participantId"`
	Name          string    `json:"name"`
	Role          room.Role `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Persister receives the full session set after every mutation.
type Persister interface {
	Save(sessions []Data)
}

// Store is the in-memory session registry. A session is deliberately
// process-local: the system is single-process-authoritative (see
// SPEC_FULL.md Non-goals), so there is no cross-instance session lookup.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Data
	persist  Persister
}

// NewStore constructs an empty Store. persist may be nil to disable
// persistence.
func NewStore(persist Persister) *Store {
	return &Store{
		sessions: make(map[string]Data),
		persist:  persist,
	}
}

// Create mints a new opaque session bound to (roomPin, participantId).
func (s *Store) Create(roomPin, participantID, name string, role room.Role) Data {
	s.mu.Lock()
	d := Data{
		SessionID:     strings.ReplaceAll(uuid.New().String(), "-", ""),
		RoomPin:       roomPin,
		ParticipantID: participantID,
		Name:          name,
		Role:          role,
		CreatedAt:     time.Now().UTC(),
	}
	s.sessions[d.SessionID] = d
	all := s.snapshotLocked()
	s.mu.Unlock()

	s.saveAsync(all)
	return d
}

// Get returns the session for sessionID, if any.
func (s *Store) Get(sessionID string) (Data, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.sessions[sessionID]
	return d, ok
}

// Delete removes sessionID (logout / leaveRoom).
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	all := s.snapshotLocked()
	s.mu.Unlock()

	s.saveAsync(all)
}

// UpdateRole updates the role recorded for every session bound to
// (roomPin, participantId) — used when a participant is promoted to HOST.
func (s *Store) UpdateRole(roomPin, participantID string, role room.Role) {
	s.mu.Lock()
	for id, d := range s.sessions {
		if d.RoomPin == roomPin && d.ParticipantID == participantID {
			d.Role = role
			s.sessions[id] = d
		}
	}
	all := s.snapshotLocked()
	s.mu.Unlock()

	s.saveAsync(all)
}

// DeleteByRoom removes every session bound to roomPin (room dissolved).
func (s *Store) DeleteByRoom(roomPin string) {
	s.mu.Lock()
	for id, d := range s.sessions {
		if d.RoomPin == roomPin {
			delete(s.sessions, id)
		}
	}
	all := s.snapshotLocked()
	s.mu.Unlock()

	s.saveAsync(all)
}

func (s *Store) snapshotLocked() []Data {
	if s.persist == nil {
		return nil
	}
	out := make([]Data, 0, len(s.sessions))
	for _, d := range s.sessions {
		out = append(out, d)
	}
	return out
}

func (s *Store) saveAsync(all []Data) {
	if s.persist != nil && all != nil {
		s.persist.Save(all)
	}
}

// Restore repopulates the store from a persisted snapshot. Intended for
// startup use only, before any concurrent access begins.
func (s *Store) Restore(sessions []Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range sessions {
		s.sessions[d.SessionID] = d
	}
}
