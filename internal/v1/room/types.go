package room

import "time"

// Status is the lifecycle stage of a Room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Role is a Participant's privilege level within a Room.
type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

// Team is one of the two sides a Participant plays for once a game starts.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
	TeamNone Team = ""
)

// Other returns the opposing team, or TeamNone if t is not RED/BLUE.
func (t Team) Other() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	default:
		return TeamNone
	}
}

// AnswerStatus records the outcome of a resolved Question.
type AnswerStatus string

const (
	AnswerNone      AnswerStatus = ""
	AnswerCorrect   AnswerStatus = "correct"
	AnswerIncorrect AnswerStatus = "incorrect"
)

// Participant is a single connected (or formerly connected, pre-departure)
// member of a Room.
type Participant struct {
	ParticipantID string    `json:"participantId"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Team          Team      `json:"team"`
	JoinedAt      time.Time `json:"joinedAt"`
	SocketID      string    `json:"-"`
}

// Question is one entry of an active game's question list.
type Question struct {
	QuestionID     string       `json:"questionId"`
	Text           string       `json:"text"`
	Options        [4]string    `json:"options"`
	CorrectOption  int          `json:"correctOption"`
	Team           Team         `json:"team"`
	Answered       bool         `json:"answered"`
	SelectedOption *int         `json:"selectedOption,omitempty"`
	AnswerStatus   AnswerStatus `json:"answerStatus,omitempty"`
}

// Scores maps a Team to its accumulated point total.
type Scores struct {
	Red  int `json:"red"`
	Blue int `json:"blue"`
}

func (s *Scores) add(t Team, n int) {
	switch t {
	case TeamRed:
		s.Red += n
	case TeamBlue:
		s.Blue += n
	}
}

// GameInfo describes the in-progress or concluded question game for a Room.
type GameInfo struct {
	Status              Status     `json:"status"`
	ActiveTeam           Team       `json:"activeTeam"`
	ActiveQuestionIndex int        `json:"activeQuestionIndex"`
	Counter              int        `json:"counter"`
	Scores               Scores     `json:"scores"`
	Questions            []Question `json:"questions"`
}

// ChatMessage is one entry of a Room's chat log.
type ChatMessage struct {
	MessageID  string    `json:"messageId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	AuthorName string    `json:"authorName"`
	Command    Team      `json:"command"`
}

// Room is the full persisted/snapshot shape of a trivia room. Live Rooms
// are held by the registry and guarded by its mutex; snapshots handed out
// are deep copies of the same type.
type Room struct {
	Pin              string        `json:"pin"`
	Topic            string        `json:"topic"`
	QuestionsPerTeam int           `json:"questionsPerTeam"`
	MaxParticipants  int           `json:"maxParticipants"`
	TimerSeconds     int           `json:"timerSeconds"`
	Status           Status        `json:"status"`
	CreatedAt        time.Time     `json:"createdAt"`
	Participants     []Participant `json:"participants"`
	Messages         []ChatMessage `json:"messages"`
	GameInfo         *GameInfo     `json:"gameInfo,omitempty"`
}

func (r *Room) participantIndex(participantID string) int {
	for i := range r.Participants {
		if r.Participants[i].ParticipantID == participantID {
			return i
		}
	}
	return -1
}

func (r *Room) findByNameCI(name string) *Participant {
	for i := range r.Participants {
		if equalFoldASCII(r.Participants[i].Name, name) {
			return &r.Participants[i]
		}
	}
	return nil
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// deepCopy returns a Room with no shared backing arrays/pointers with r, so
// callers can freely read or (in tests) mutate the result.
func (r *Room) deepCopy() *Room {
	cp := *r
	if r.Participants != nil {
		cp.Participants = make([]Participant, len(r.Participants))
		copy(cp.Participants, r.Participants)
	}
	if r.Messages != nil {
		cp.Messages = make([]ChatMessage, len(r.Messages))
		copy(cp.Messages, r.Messages)
	}
	if r.GameInfo != nil {
		gi := *r.GameInfo
		gi.Questions = make([]Question, len(r.GameInfo.Questions))
		for i, q := range r.GameInfo.Questions {
			qc := q
			if q.SelectedOption != nil {
				v := *q.SelectedOption
				qc.SelectedOption = &v
			}
			gi.Questions[i] = qc
		}
		cp.GameInfo = &gi
	}
	return &cp
}
