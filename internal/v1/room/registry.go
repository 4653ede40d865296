package room

import (
	"crypto/rand"
	"log/slog"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/metrics"
)

const (
	pinAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	pinLength      = 6
	maxPinAttempts = 200
)

// Broadcaster delivers engine-emitted events to bound sockets. All
// broadcasts happen after the registry lock is released (see §5 of the
// design: mutation and I/O are strictly separated phases).
type Broadcaster interface {
	// Emit sends an event to every socket bound to pin, except skipParticipantID
	// when non-empty.
	Emit(pin string, event events.Name, data any, skipParticipantID string)
	// EmitTo sends an event to a single bound participant.
	EmitTo(pin, participantID string, event events.Name, data any)
}

// TimerController starts/stops the per-room countdown task (C4).
type TimerController interface {
	Restart(pin string)
	Cancel(pin string)
}

// Persister receives a full snapshot of the registry after every mutation
// and is responsible for the atomic tmp+rename write (C6). Implementations
// must not block the caller for long; a nil Persister disables persistence.
type Persister interface {
	Save(rooms []*Room)
}

// Registry is the single authoritative owner of every Room. One mutex
// covers both the PIN map and every contained Room: no call into external
// I/O (broadcast, persistence, question generation) is ever made while it
// is held.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	broadcast Broadcaster
	timers    TimerController
	persist   Persister
}

// NewRegistry constructs an empty Registry. broadcast, timers, and persist
// may be nil (tests frequently pass nil for all three).
func NewRegistry(broadcast Broadcaster, timers TimerController, persist Persister) *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		broadcast: broadcast,
		timers:    timers,
		persist:   persist,
	}
}

func (reg *Registry) emit(pin string, event events.Name, data any, skip string) {
	if reg.broadcast != nil {
		reg.broadcast.Emit(pin, event, data, skip)
	}
}

func (reg *Registry) emitTo(pin, participantID string, event events.Name, data any) {
	if reg.broadcast != nil {
		reg.broadcast.EmitTo(pin, participantID, event, data)
	}
}

func (reg *Registry) restartTimer(pin string) {
	if reg.timers != nil {
		reg.timers.Restart(pin)
	}
}

func (reg *Registry) cancelTimer(pin string) {
	if reg.timers != nil {
		reg.timers.Cancel(pin)
	}
}

// snapshotAllLocked must be called with reg.mu held; it copies the current set
// of rooms out so the actual write happens after the caller unlocks.
func (reg *Registry) snapshotAllLocked() []*Room {
	if reg.persist == nil {
		return nil
	}
	all := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		all = append(all, r.deepCopy())
	}
	return all
}

func (reg *Registry) saveAsync(all []*Room) {
	if reg.persist != nil && all != nil {
		reg.persist.Save(all)
	}
}

func generatePin() (string, error) {
	b := make([]byte, pinLength)
	max := big.NewInt(int64(len(pinAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = pinAlphabet[n.Int64()]
	}
	return string(b), nil
}

func normalizePin(pin string) string {
	out := make([]byte, len(pin))
	for i := 0; i < len(pin); i++ {
		c := pin[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// CreateRoom allocates a fresh PIN, creates a Room in WAITING status, and
// adds hostName as its HOST participant in the same step.
func (reg *Registry) CreateRoom(hostName, topic string, questionsPerTeam, maxParticipants, timerSeconds int) (*Room, Participant, error) {
	reg.mu.Lock()

	var pin string
	ok := false
	for attempt := 0; attempt < maxPinAttempts; attempt++ {
		candidate, err := generatePin()
		if err != nil {
			reg.mu.Unlock()
			return nil, Participant{}, ErrPinExhausted
		}
		if _, exists := reg.rooms[candidate]; !exists {
			pin = candidate
			ok = true
			break
		}
	}
	if !ok {
		reg.mu.Unlock()
		return nil, Participant{}, ErrPinExhausted
	}

	host := Participant{
		ParticipantID: uuid.NewString(),
		Name:          hostName,
		Role:          RoleHost,
		Team:          TeamNone,
		JoinedAt:      now(),
	}

	r := &Room{
		Pin:              pin,
		Topic:            topic,
		QuestionsPerTeam: questionsPerTeam,
		MaxParticipants:  maxParticipants,
		TimerSeconds:     timerSeconds,
		Status:           StatusWaiting,
		CreatedAt:        now(),
		Participants:     []Participant{host},
	}
	reg.rooms[pin] = r
	metrics.ActiveRooms.Inc()
	slog.Debug("room created", "pin", pin, "host", host.ParticipantID)

	snap := r.deepCopy()
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	reg.saveAsync(all)
	return snap, host, nil
}

// GetRoom returns a deep-copy snapshot of the room addressed by pin.
func (reg *Registry) GetRoom(pin string) (*Room, error) {
	pin = normalizePin(pin)
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[pin]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.deepCopy(), nil
}

// CheckPin reports whether pin currently addresses a live room.
func (reg *Registry) CheckPin(pin string) bool {
	pin = normalizePin(pin)
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.rooms[pin]
	return ok
}

// ListRooms returns a deep-copy snapshot of every live room.
func (reg *Registry) ListRooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r.deepCopy())
	}
	return out
}

// DeleteRoom removes pin from the registry unconditionally (host dissolve).
func (reg *Registry) DeleteRoom(pin string) {
	pin = normalizePin(pin)
	reg.mu.Lock()
	if _, ok := reg.rooms[pin]; ok {
		delete(reg.rooms, pin)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(pin)
	}
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	reg.cancelTimer(pin)
	reg.saveAsync(all)
}

// Restore repopulates the registry from a persisted snapshot. Socket
// bindings are never persisted, so every restored Participant's SocketID is
// already zero-valued by the JSON decoder. Intended for startup use only,
// before any concurrent access begins.
func (reg *Registry) Restore(rooms []*Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range rooms {
		r.Pin = normalizePin(r.Pin)
		for i := range r.Participants {
			r.Participants[i].SocketID = ""
		}
		reg.rooms[r.Pin] = r
	}
	metrics.ActiveRooms.Set(float64(len(reg.rooms)))
}

// BindSocket records sid on participantID's Participant record. It is the
// registry half of the socket binder (C3): the binder itself owns the
// sid -> (pin, participantId) index.
func (reg *Registry) BindSocket(pin, participantID, sid string) error {
	pin = normalizePin(pin)
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[pin]
	if !ok {
		return ErrRoomNotFound
	}
	idx := r.participantIndex(participantID)
	if idx == -1 {
		return ErrNotFound
	}
	r.Participants[idx].SocketID = sid
	return nil
}
