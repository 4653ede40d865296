// Package timer runs the per-room countdown that drives question
// advancement. At most one countdown task exists per room PIN at any
// instant; restarting or cancelling a PIN's task always awaits the prior
// task's termination before returning, so two tasks for the same PIN are
// never live concurrently.
package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/metrics"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
)

// Engine is the subset of the room registry the supervisor needs to drive a
// tick: a way to read the current countdown state and a way to resolve an
// expired question. Satisfied by *room.Registry.
type Engine interface {
	GetRoom(pin string) (*room.Room, error)
	Tick(pin string) (counter int, ended bool, err error)
	HandleTimerEnd(pin string) (*room.Room, error)
}

// Broadcaster delivers timer_tick/timer_end events. A narrower view of
// room.Broadcaster so this package does not need the skip-participant
// concept.
type Broadcaster interface {
	Emit(pin string, event events.Name, data any, skipParticipantID string)
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns the set of live per-room countdown goroutines. It
// implements room.TimerController.
type Supervisor struct {
	mu        sync.Mutex
	tasks     map[string]*task
	engine    Engine
	broadcast Broadcaster
	wg        sync.WaitGroup
}

// NewSupervisor constructs a Supervisor bound to engine/broadcast.
func NewSupervisor(engine Engine, broadcast Broadcaster) *Supervisor {
	return &Supervisor{
		tasks:     make(map[string]*task),
		engine:    engine,
		broadcast: broadcast,
	}
}

// Restart cancels any running task for pin (waiting for it to fully stop)
// and starts a fresh one. Called at startGame, and after a submitted answer
// that produced a next question; a timer-driven advance keeps running in
// the same task.
func (s *Supervisor) Restart(pin string) {
	s.stop(pin)

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks[pin] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, pin, t)
}

// Cancel stops pin's task, if any, and removes it. Called when a submitted
// answer finishes the game, the room empties, or the room is deleted; a
// game finished by the timer ends its own task.
func (s *Supervisor) Cancel(pin string) {
	s.stop(pin)
}

func (s *Supervisor) stop(pin string) {
	s.mu.Lock()
	t, ok := s.tasks[pin]
	if ok {
		delete(s.tasks, pin)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// forget removes pin's task-table entry if it still points at t. A task
// that exits on its own (game finished, GetRoom no longer active) must not
// leave a stale entry for a later Restart/Cancel to find; guarded against a
// concurrent Restart that has already replaced t with a newer task.
func (s *Supervisor) forget(pin string, t *task) {
	s.mu.Lock()
	if s.tasks[pin] == t {
		delete(s.tasks, pin)
	}
	s.mu.Unlock()
}

// Shutdown cancels every outstanding task and waits for all of them to
// drain, so a process-wide shutdown leaves no timer goroutine behind.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	pins := make([]string, 0, len(s.tasks))
	for pin := range s.tasks {
		pins = append(pins, pin)
	}
	s.mu.Unlock()

	for _, pin := range pins {
		s.stop(pin)
	}

	c := make(chan struct{})
	go func() {
		defer close(c)
		s.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the task body. The 1-second sleep and the broadcast that follows
// each tick are the only suspension points, so cancellation is cooperative
// and observed promptly at either boundary.
func (s *Supervisor) run(ctx context.Context, pin string, t *task) {
	defer s.wg.Done()
	defer close(t.done)
	defer s.forget(pin, t)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		r, err := s.engine.GetRoom(pin)
		if err != nil || r.GameInfo == nil || r.GameInfo.Status != room.StatusActive {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		counter, ended, err := s.engine.Tick(pin)
		if err != nil {
			return
		}
		metrics.TimerTicks.WithLabelValues(pin).Inc()

		select {
		case <-ctx.Done():
			return
		default:
		}

		if ended {
			s.emit(pin, events.OutTimerEnd, events.TimerTickPayload{Counter: 0})
			// HandleTimerEnd only resolves the question and broadcasts the
			// advance; it must never call back into Restart/Cancel here,
			// since this goroutine is still running and has not closed
			// t.done. The next loop iteration's GetRoom check above is what
			// ends the task once the room finishes or disappears.
			if _, err := s.engine.HandleTimerEnd(pin); err != nil {
				slog.Debug("timer end resolution stopped", "pin", pin, "error", err)
				return
			}
			continue
		}
		s.emit(pin, events.OutTimerTick, events.TimerTickPayload{Counter: counter})
	}
}

func (s *Supervisor) emit(pin string, event events.Name, data any) {
	if s.broadcast != nil {
		s.broadcast.Emit(pin, event, data, "")
	}
}
