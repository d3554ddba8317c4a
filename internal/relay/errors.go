package relay

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidRequest is returned when a required input is empty.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoActiveConnection is returned when no session row carries the identity.
	ErrNoActiveConnection = errors.New("no active connection")
	// ErrChannelGone is returned when a direct reply cannot be pushed because the channel closed.
	ErrChannelGone = errors.New("channel gone")
	// ErrStore wraps session store failures.
	ErrStore = errors.New("store error")
	// ErrTransport wraps push failures that are not ErrChannelGone.
	ErrTransport = errors.New("transport error")
)

// StatusCode maps a relay error to the HTTP status returned to clients.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoActiveConnection):
		return http.StatusNotFound
	case errors.Is(err, ErrChannelGone):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
