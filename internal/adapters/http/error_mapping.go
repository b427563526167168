package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

// errorResponses is searched in order. Connection loss precedes ErrTemporary
// so a dead event database is reported as such even when retries wrapped it.
var errorResponses = []struct {
	kind    error
	status  int
	message string
}{
	{domain.ErrValidation, http.StatusBadRequest, "invalid request"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrEventNotFound, http.StatusNotFound, "not found"},
	{domain.ErrConnectionUnavailable, http.StatusServiceUnavailable, "event database is unavailable, retry later"},
	{domain.ErrTemporary, http.StatusServiceUnavailable, "service temporarily unavailable"},
}

// errorResponse returns the status and the client-safe message for err.
func errorResponse(err error) (int, string) {
	for _, r := range errorResponses {
		if domain.IsKind(err, r.kind) {
			return r.status, r.message
		}
	}
	return http.StatusInternalServerError, "internal error"
}

func mapErrorToHTTPStatus(err error) int {
	status, _ := errorResponse(err)
	return status
}

// writeDomainError logs the raw error and returns only the mapped message.
func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := errorResponse(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "http_handler_failed",
		"request_id", requestIDFromContext(r.Context()),
		"operation", op,
		"status", status,
		"error", err.Error(),
	)
	writeError(w, status, message)
}
