package timeline

import (
	"context"
	"errors"
	"log"
	"net/http"

	"Tootline/internal/api/handlers"
	"Tootline/internal/core/feed"
)

// APIError represents a JSON error response
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	writeError = handlers.WriteError
	writeJSON  = handlers.WriteJSON
)

// handleServiceError maps timeline errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feed.ErrNotGap):
		writeError(w, http.StatusConflict, "NotAGap", "The slot at that index is not a gap")
	case errors.Is(err, feed.ErrUnknownEntry):
		writeError(w, http.StatusNotFound, "EntryNotFound", "No entry with that key is loaded")
	case errors.Is(err, feed.ErrLoopStopped):
		writeError(w, http.StatusServiceUnavailable, "TimelineStopped", "The timeline is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Timeout", "The timeline did not respond in time")
	default:
		log.Printf("ERROR: Timeline error: %v", err)
		writeError(w, http.StatusInternalServerError, "InternalServerError", "An error occurred while driving the timeline")
	}
}
