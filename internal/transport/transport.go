// Package transport pushes payloads to open client connections.
package transport

import (
	"context"
	"errors"
)

// ErrGone is returned when a connection token no longer refers to an open channel.
var ErrGone = errors.New("connection gone")

// Pusher delivers a JSON-encodable payload to the connection identified by token.
type Pusher interface {
	Push(ctx context.Context, token string, payload any) error
}
