package mastodon

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Typed errors for Mastodon API calls.
// Callers use errors.Is() instead of matching on status codes.
var (
	// ErrUnauthorized indicates a missing, invalid or revoked access token (HTTP 401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the timeline, list or resource does not exist (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the instance throttled the client (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates a server side failure (HTTP 5xx).
	ErrUnavailable = errors.New("instance unavailable")

	// ErrUnknownTimeline indicates an unsupported timeline selector.
	ErrUnknownTimeline = errors.New("unknown timeline")
)

// apiErrorBody is the error document Mastodon returns
type apiErrorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// statusError maps an HTTP failure to a typed error carrying the server message
func statusError(status int, message string) error {
	message = strings.TrimSpace(message)
	var base error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		base = ErrUnauthorized
	case status == http.StatusNotFound:
		base = ErrNotFound
	case status == http.StatusTooManyRequests:
		base = ErrRateLimited
	case status >= 500:
		base = ErrUnavailable
	default:
		return fmt.Errorf("unexpected status code %d: %s", status, message)
	}
	if message == "" {
		return fmt.Errorf("%w (status %d)", base, status)
	}
	return fmt.Errorf("%w (status %d): %s", base, status, message)
}

// IsTemporary reports whether retrying the same request later may succeed
func IsTemporary(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}
