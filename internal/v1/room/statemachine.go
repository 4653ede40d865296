package room

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/metrics"
)

// JoinRoom adds a new PARTICIPANT to pin. Only legal while the room is
// still WAITING.
func (reg *Registry) JoinRoom(pin, name string) (*Room, Participant, error) {
	pin = normalizePin(pin)
	reg.mu.Lock()

	r, ok := reg.rooms[pin]
	if !ok {
		reg.mu.Unlock()
		return nil, Participant{}, ErrRoomNotFound
	}
	if r.Status != StatusWaiting {
		reg.mu.Unlock()
		return nil, Participant{}, ErrStateClosed
	}
	if len(r.Participants) >= r.MaxParticipants {
		reg.mu.Unlock()
		return nil, Participant{}, ErrCapacityExceeded
	}
	if r.findByNameCI(name) != nil {
		reg.mu.Unlock()
		return nil, Participant{}, ErrNameTaken
	}

	p := Participant{
		ParticipantID: uuid.NewString(),
		Name:          name,
		Role:          RoleParticipant,
		Team:          TeamNone,
		JoinedAt:      now(),
	}
	r.Participants = append(r.Participants, p)
	metrics.RoomParticipants.WithLabelValues(pin).Set(float64(len(r.Participants)))

	snap := r.deepCopy()
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	reg.emit(pin, events.OutPlayerJoined, p, p.ParticipantID)
	reg.saveAsync(all)
	return snap, p, nil
}

// LeaveRoom removes participantID from pin, promoting a new HOST if needed
// and deleting the room if it becomes empty. A socket disconnect is treated
// as a leave (see internal/v1/socket).
func (reg *Registry) LeaveRoom(pin, participantID string) (snapshot *Room, removed Participant, promoted *Participant, err error) {
	pin = normalizePin(pin)
	reg.mu.Lock()

	r, ok := reg.rooms[pin]
	if !ok {
		reg.mu.Unlock()
		return nil, Participant{}, nil, ErrRoomNotFound
	}
	idx := r.participantIndex(participantID)
	if idx == -1 {
		reg.mu.Unlock()
		return nil, Participant{}, nil, ErrNotFound
	}

	removed = r.Participants[idx]
	wasHost := removed.Role == RoleHost
	r.Participants = append(r.Participants[:idx], r.Participants[idx+1:]...)

	if wasHost && len(r.Participants) > 0 {
		r.Participants[0].Role = RoleHost
		p := r.Participants[0]
		promoted = &p
	}

	emptied := len(r.Participants) == 0
	if emptied {
		delete(reg.rooms, pin)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(pin)
	} else {
		metrics.RoomParticipants.WithLabelValues(pin).Set(float64(len(r.Participants)))
	}

	if !emptied {
		snapshot = r.deepCopy()
	}
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	if emptied {
		reg.cancelTimer(pin)
	} else {
		reg.emit(pin, events.OutUserLeft, removed, "")
		if promoted != nil {
			reg.emit(pin, events.OutHostChanged, *promoted, "")
		}
	}
	reg.saveAsync(all)
	return snapshot, removed, promoted, nil
}

// StartGame transitions pin from WAITING to ACTIVE. requestedBy must be the
// room's current HOST. questions must contain at least 2*questionsPerTeam
// entries; only the first 2*questionsPerTeam are used.
func (reg *Registry) StartGame(pin, requestedBy string, questions []Question) (*Room, error) {
	pin = normalizePin(pin)
	reg.mu.Lock()

	r, ok := reg.rooms[pin]
	if !ok {
		reg.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	idx := r.participantIndex(requestedBy)
	if idx == -1 {
		reg.mu.Unlock()
		return nil, ErrNotFound
	}
	if r.Participants[idx].Role != RoleHost {
		reg.mu.Unlock()
		return nil, ErrAccessDenied
	}
	if r.Status != StatusWaiting {
		reg.mu.Unlock()
		return nil, ErrStateClosed
	}
	if len(r.Participants) < 2 {
		reg.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	need := 2 * r.QuestionsPerTeam
	if len(questions) < need {
		reg.mu.Unlock()
		return nil, ErrInvalidQuestions
	}

	startTeam := TeamRed
	if rand.Intn(2) == 1 {
		startTeam = TeamBlue
	}
	order := rand.Perm(len(r.Participants))
	cur := startTeam
	for _, pidx := range order {
		r.Participants[pidx].Team = cur
		cur = cur.Other()
	}

	selected := make([]Question, need)
	for i := 0; i < need; i++ {
		q := questions[i]
		if i%2 == 0 {
			q.Team = TeamRed
		} else {
			q.Team = TeamBlue
		}
		selected[i] = q
	}

	r.Status = StatusActive
	r.GameInfo = &GameInfo{
		Status:              StatusActive,
		ActiveTeam:          selected[0].Team,
		ActiveQuestionIndex: 0,
		Counter:             r.TimerSeconds,
		Scores:              Scores{},
		Questions:           selected,
	}

	snap := r.deepCopy()
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	reg.emit(pin, events.OutGameStarted, snap.GameInfo, "")
	reg.emit(pin, events.OutNewQuestion, snap.GameInfo.Questions[0], "")
	reg.emit(pin, events.OutNextQuestion, snap.GameInfo.Questions[0], "")
	reg.restartTimer(pin)
	reg.saveAsync(all)
	return snap, nil
}

// SubmitAnswer resolves the active question on behalf of participantID,
// then advances the game.
func (reg *Registry) SubmitAnswer(pin, participantID string, optionIndex int) (*Room, error) {
	pin = normalizePin(pin)
	reg.mu.Lock()

	r, ok := reg.rooms[pin]
	if !ok {
		reg.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if r.Status != StatusActive || r.GameInfo == nil {
		reg.mu.Unlock()
		return nil, ErrGameNotActive
	}
	idx := r.participantIndex(participantID)
	if idx == -1 {
		reg.mu.Unlock()
		return nil, ErrNotFound
	}
	participant := r.Participants[idx]
	gi := r.GameInfo
	q := &gi.Questions[gi.ActiveQuestionIndex]
	if participant.Team != gi.ActiveTeam {
		reg.mu.Unlock()
		return nil, ErrWrongTurn
	}
	if q.Answered {
		reg.mu.Unlock()
		return nil, ErrAlreadyAnswered
	}

	q.Answered = true
	sel := optionIndex
	q.SelectedOption = &sel
	correct := optionIndex == q.CorrectOption
	result := events.AnswerIncorrect
	if correct {
		q.AnswerStatus = AnswerCorrect
		gi.Scores.add(gi.ActiveTeam, 1)
		result = events.AnswerCorrect
	} else {
		q.AnswerStatus = AnswerIncorrect
	}

	post := reg.advanceLocked(r)

	snap := r.deepCopy()
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	reg.emit(pin, events.OutCheckAnswer, result, "")
	reg.dispatchAdvance(pin, post)
	reg.saveAsync(all)
	return snap, nil
}

// HandleTimerEnd is invoked by the timer supervisor's own task goroutine
// when a question's clock expires without an answer. RoomNotFound/
// StateClosed are expected when the room finished or emptied concurrently
// with the tick and are swallowed by the caller, not here.
//
// Unlike SubmitAnswer, this must not drive the supervisor's Restart/Cancel:
// the calling task is still running (it has not reached its own done
// channel), so a restart/cancel here would block forever waiting on that
// channel to close, exactly as t0m0m0-shiritori/srv/timer.go's run loop
// returns before invoking onExpired rather than calling back into its own
// manager. The supervisor's run loop continues or exits on its own once
// this call returns.
func (reg *Registry) HandleTimerEnd(pin string) (*Room, error) {
	pin = normalizePin(pin)
	reg.mu.Lock()

	r, ok := reg.rooms[pin]
	if !ok {
		reg.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if r.Status != StatusActive || r.GameInfo == nil {
		reg.mu.Unlock()
		return nil, ErrStateClosed
	}

	gi := r.GameInfo
	q := &gi.Questions[gi.ActiveQuestionIndex]
	if !q.Answered {
		q.Answered = true
		q.AnswerStatus = AnswerIncorrect
	}

	post := reg.advanceLocked(r)

	snap := r.deepCopy()
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	reg.emitAdvance(pin, post)
	reg.saveAsync(all)
	return snap, nil
}

// advanceResult carries the post-advance broadcast decision out of the
// locked region so emission happens after the lock is released.
type advanceResult struct {
	finished     bool
	nextQuestion *Question
}

// advanceLocked moves the game to its next question or finishes it. Caller
// must hold reg.mu and r must be ACTIVE with a non-nil GameInfo.
func (reg *Registry) advanceLocked(r *Room) advanceResult {
	gi := r.GameInfo
	if gi.ActiveQuestionIndex+1 == len(gi.Questions) {
		gi.Status = StatusFinished
		r.Status = StatusFinished
		return advanceResult{finished: true}
	}
	gi.ActiveQuestionIndex++
	next := &gi.Questions[gi.ActiveQuestionIndex]
	gi.ActiveTeam = next.Team
	gi.Counter = r.TimerSeconds
	q := *next
	return advanceResult{nextQuestion: &q}
}

// dispatchAdvance is used by externally-originated operations (SubmitAnswer)
// that run on a caller goroutine distinct from the timer supervisor's task,
// so it is safe for it to drive the supervisor's lifecycle directly.
func (reg *Registry) dispatchAdvance(pin string, post advanceResult) {
	reg.emitAdvance(pin, post)
	if post.finished {
		reg.cancelTimer(pin)
		return
	}
	reg.restartTimer(pin)
}

// emitAdvance broadcasts the outcome of advanceLocked without touching the
// timer supervisor. Used by HandleTimerEnd (see its doc comment).
func (reg *Registry) emitAdvance(pin string, post advanceResult) {
	if post.finished {
		reg.emit(pin, events.OutGameFinished, events.GameFinished, "")
		return
	}
	reg.emit(pin, events.OutNewQuestion, *post.nextQuestion, "")
	reg.emit(pin, events.OutNextQuestion, *post.nextQuestion, "")
}

// AddMessage appends a chat message authored by participantID, tagged with
// their current team (TeamNone before a game starts).
func (reg *Registry) AddMessage(pin, participantID, text string) (*Room, ChatMessage, error) {
	pin = normalizePin(pin)
	reg.mu.Lock()

	r, ok := reg.rooms[pin]
	if !ok {
		reg.mu.Unlock()
		return nil, ChatMessage{}, ErrRoomNotFound
	}
	idx := r.participantIndex(participantID)
	if idx == -1 {
		reg.mu.Unlock()
		return nil, ChatMessage{}, ErrNotFound
	}

	msg := ChatMessage{
		MessageID:  uuid.NewString(),
		Text:       text,
		CreatedAt:  now(),
		AuthorName: r.Participants[idx].Name,
		Command:    r.Participants[idx].Team,
	}
	r.Messages = append(r.Messages, msg)

	snap := r.deepCopy()
	all := reg.snapshotAllLocked()
	reg.mu.Unlock()

	reg.emit(pin, events.OutMessage, msg, "")
	reg.saveAsync(all)
	return snap, msg, nil
}
