package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeEngine struct {
	mu       sync.Mutex
	counter  int
	active   bool
	ticks    int
	endCalls int
	endAfter int // ended becomes true once counter reaches 0; stop being active after endAfter HandleTimerEnd calls
}

func (f *fakeEngine) GetRoom(pin string) (*room.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return &room.Room{Status: room.StatusFinished}, nil
	}
	return &room.Room{
		Status:   room.StatusActive,
		GameInfo: &room.GameInfo{Status: room.StatusActive, Counter: f.counter},
	}, nil
}

func (f *fakeEngine) Tick(pin string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks++
	if !f.active {
		return 0, false, room.ErrStateClosed
	}
	if f.counter > 0 {
		f.counter--
	}
	return f.counter, f.counter == 0, nil
}

func (f *fakeEngine) HandleTimerEnd(pin string) (*room.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	if f.endCalls >= f.endAfter {
		f.active = false
	} else {
		f.counter = 2
	}
	return &room.Room{Status: room.StatusActive}, nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []events.Name
}

func (f *fakeBroadcaster) Emit(pin string, event events.Name, data any, skip string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBroadcaster) count(name events.Name) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == name {
			n++
		}
	}
	return n
}

func TestSupervisor_TicksUntilExpiry(t *testing.T) {
	eng := &fakeEngine{counter: 2, active: true, endAfter: 1}
	bc := &fakeBroadcaster{}
	sup := NewSupervisor(eng, bc)

	sup.Restart("ABC123")

	require.Eventually(t, func() bool {
		return bc.count(events.OutTimerEnd) >= 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		eng.mu.Lock()
		defer eng.mu.Unlock()
		return !eng.active
	}, time.Second, 10*time.Millisecond)

	err := sup.Shutdown(context.Background())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, bc.count(events.OutTimerTick), 1)
}

func TestSupervisor_RestartCancelsPriorTask(t *testing.T) {
	eng := &fakeEngine{counter: 100, active: true, endAfter: 1000}
	bc := &fakeBroadcaster{}
	sup := NewSupervisor(eng, bc)

	sup.Restart("PIN001")
	time.Sleep(20 * time.Millisecond)
	sup.Restart("PIN001") // must fully stop the first task before starting the second

	sup.mu.Lock()
	n := len(sup.tasks)
	sup.mu.Unlock()
	assert.Equal(t, 1, n)

	err := sup.Shutdown(context.Background())
	assert.NoError(t, err)
}

func TestSupervisor_CancelStopsTask(t *testing.T) {
	eng := &fakeEngine{counter: 100, active: true, endAfter: 1000}
	bc := &fakeBroadcaster{}
	sup := NewSupervisor(eng, bc)

	sup.Restart("PIN002")
	time.Sleep(20 * time.Millisecond)
	sup.Cancel("PIN002")

	sup.mu.Lock()
	_, exists := sup.tasks["PIN002"]
	sup.mu.Unlock()
	assert.False(t, exists)
}
