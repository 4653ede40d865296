package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ovidtrivia/quizroom/internal/v1/room"
)

// statusFor maps an engine-internal error kind to the HTTP status this edge
// reports it as (SPEC_FULL.md §7). Errors not recognized here are reported
// as 500 without leaking their text to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, room.ErrStateClosed),
		errors.Is(err, room.ErrCapacityExceeded),
		errors.Is(err, room.ErrNameTaken),
		errors.Is(err, room.ErrWrongTurn),
		errors.Is(err, room.ErrAlreadyAnswered),
		errors.Is(err, room.ErrGameNotActive):
		return http.StatusConflict
	case errors.Is(err, room.ErrPinExhausted):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError writes err using statusFor's mapping, with a generic
// detail for unrecognized errors so internals never leak to the client.
func writeEngineError(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, room.ErrPinExhausted) {
		detail = "internal error"
	}
	c.JSON(status, gin.H{"error": detail})
}

func validationError(c *gin.Context, detail string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": detail})
}
