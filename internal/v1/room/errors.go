package room

import "errors"

// Engine-internal error kinds. HTTP/WS edges translate these to status
// codes/payloads; never expose the underlying message verbatim to clients
// beyond what the kind conveys.
var (
	ErrRoomNotFound     = errors.New("room: not found")
	ErrCapacityExceeded = errors.New("room: at capacity")
	ErrStateClosed      = errors.New("room: no longer accepting joins")
	ErrNameTaken        = errors.New("room: name already in use")
	ErrAccessDenied     = errors.New("room: access denied")
	ErrWrongTurn        = errors.New("room: not your team's turn")
	ErrAlreadyAnswered  = errors.New("room: question already answered")
	ErrGameNotActive    = errors.New("room: game is not active")
	ErrPinExhausted     = errors.New("room: no pin available")
	ErrNotFound         = errors.New("room: participant not found")
	ErrInvalidQuestions = errors.New("room: not enough questions supplied")
)
