package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance/internal/importer"
	"attendance/internal/remote"
	"attendance/internal/session"
	"attendance/internal/state"
	"attendance/internal/syncer"
	"attendance/internal/templates"
)

func statusFor(err error) int {
	var unauthorized *session.UnauthorizedError
	var transport *remote.TransportError
	switch {
	case errors.Is(err, state.ErrNotFound), errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrDuplicateGuest), errors.Is(err, syncer.ErrSyncUnavailable):
		return http.StatusConflict
	case errors.Is(err, state.ErrInvalidStatus),
		errors.Is(err, state.ErrDuplicateColumn),
		errors.Is(err, state.ErrUnknownColumn),
		errors.Is(err, state.ErrEmptyName),
		errors.Is(err, templates.ErrEmptyColumns),
		errors.Is(err, importer.ErrEmpty),
		errors.Is(err, session.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, remote.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &transport), remote.IsRejected(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error body. Unexpected errors are logged and
// their text is not exposed.
func (h *httpHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.App.Logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
