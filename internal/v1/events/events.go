// Package events defines the wire vocabulary broadcast by the room engine.
// Event names and payload shapes are shared between the WebSocket transport
// and the engine; nothing here performs I/O.
package events

// Name identifies a socket event. Inbound names are consumed by the
// transport's dispatcher; outbound names are emitted by the engine.
type Name string

const (
	// Inbound (client -> server).
	InCreateRoom Name = "create_room"
	InJoinRoom   Name = "join_room"
	InMessage    Name = "message"
	InStartGame  Name = "start_game"
	InAnswer     Name = "answer"
	InLeaveRoom  Name = "leave_room"

	// Outbound (server -> client).
	OutRoomCreated   Name = "room_created"
	OutRoomJoined    Name = "room_joined"
	OutPlayerJoined  Name = "player_joined"
	OutUserLeft      Name = "user_left"
	OutHostChanged   Name = "host_changed"
	OutMessage       Name = "message"
	OutGamePreparing Name = "game_preparing"
	OutGameStarted   Name = "game_started"
	OutNewQuestion   Name = "new_question"
	OutNextQuestion  Name = "next_question"
	OutCheckAnswer   Name = "check_answer"
	OutTimerTick     Name = "timer_tick"
	OutTimerEnd      Name = "timer_end"
	OutGameFinished  Name = "game_finished"
	OutError         Name = "error"
)

// Envelope is the single JSON frame shape exchanged over the socket in both
// directions: {event, data}. Replaces the teacher's protobuf
// WebSocketMessage oneof — this pack carries no generated stubs, so every
// message here is a tagged JSON object instead.
type Envelope struct {
	Event Name `json:"event"`
	Data  any  `json:"data"`
}

// New builds an outbound Envelope for the given event/payload pair.
func New(event Name, data any) Envelope {
	return Envelope{Event: event, Data: data}
}

// TimerTickPayload is the payload of OutTimerTick and OutTimerEnd.
type TimerTickPayload struct {
	Counter int `json:"counter"`
}

// GamePreparingPayload is the payload of OutGamePreparing.
type GamePreparingPayload struct {
	Preparing        bool   `json:"preparing"`
	Topic            string `json:"topic,omitempty"`
	QuestionsPerTeam int    `json:"questionsPerTeam,omitempty"`
	Source           string `json:"source,omitempty"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ErrorPayload is the payload of OutError.
type ErrorPayload struct {
	Detail string `json:"detail"`
}

// AnswerResult is the payload of OutCheckAnswer.
type AnswerResult string

const (
	AnswerCorrect   AnswerResult = "correct"
	AnswerIncorrect AnswerResult = "incorrect"
)

// GameFinished is the fixed payload of OutGameFinished.
const GameFinished = "finished"

// InboundCreateRoom is the payload carried by InCreateRoom: bind this socket
// to a room the caller already created over REST.
type InboundCreateRoom struct {
	Pin           string `json:"pin"`
	ParticipantID string `json:"participantId"`
}

// InboundJoinRoom is the payload carried by InJoinRoom: bind this socket to
// a room/participant pair the caller already joined over REST.
type InboundJoinRoom struct {
	Pin           string `json:"pin"`
	ParticipantID string `json:"participantId"`
}

// InboundMessage is the payload carried by InMessage.
type InboundMessage struct {
	Pin  string `json:"pin"`
	Text string `json:"text"`
}

// InboundStartGame is the payload carried by InStartGame.
type InboundStartGame struct {
	Pin string `json:"pin"`
}

// InboundAnswer is the payload carried by InAnswer.
type InboundAnswer struct {
	Pin         string `json:"pin"`
	OptionIndex int    `json:"optionIndex"`
}

// InboundLeaveRoom is the payload carried by InLeaveRoom.
type InboundLeaveRoom struct {
	Pin string `json:"pin"`
}
