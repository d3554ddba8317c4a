// Package checkers provides health checks for the relay's backing services.
package checkers

import (
	"context"
	"fmt"
)

// Pinger is implemented by session stores that can verify their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a backend healthy when its Ping succeeds.
type PingChecker struct {
	target Pinger
	name   string
}

// NewPingChecker wraps target. If name is empty, defaults to "store".
func NewPingChecker(target Pinger, name string) *PingChecker {
	if name == "" {
		name = "store"
	}
	return &PingChecker{target: target, name: name}
}

// Name returns the name of this health check.
func (p *PingChecker) Name() string {
	return p.name
}

// Check pings the backend.
func (p *PingChecker) Check(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}
