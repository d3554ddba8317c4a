// Package completion turns a user message into a model reply. Provider
// failures never escape: Complete substitutes a fixed fallback message.
package completion

import (
	"context"
	"strings"
	"time"

	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// DefaultFallbackMessage is returned whenever a provider cannot produce a reply.
const DefaultFallbackMessage = "I'm sorry, but I'm unable to process your request at the moment."

// Provider is a single completion backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client wraps a Provider with a per-call timeout and the fallback policy.
type Client struct {
	provider   Provider
	fallback   string
	timeout    time.Duration
	logger     logger.Logger
	onFallback func(provider string)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithFallbackMessage replaces DefaultFallbackMessage.
func WithFallbackMessage(msg string) Option {
	return func(c *Client) {
		if msg != "" {
			c.fallback = msg
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithFallbackHook registers a callback run every time the fallback is used.
func WithFallbackHook(fn func(provider string)) Option {
	return func(c *Client) { c.onFallback = fn }
}

// NewClient creates a Client around provider.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		fallback: DefaultFallbackMessage,
		logger:   logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the name of the wrapped provider.
func (c *Client) Provider() string {
	return c.provider.Name()
}

// Complete returns the provider's reply to prompt, or the fallback message.
func (c *Client) Complete(ctx context.Context, prompt string) string {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logger.GetLoggerFromContext(ctx, c.logger).WithFields(logger.StringField("provider", c.provider.Name()))
	start := time.Now()

	reply, err := c.provider.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(reply) != "" {
		log.Debug("completion succeeded", logger.DurationField("duration", time.Since(start)))
		return reply
	}

	if err != nil {
		log.Error("completion failed, using fallback", logger.ErrorField(err), logger.DurationField("duration", time.Since(start)))
	} else {
		log.Warn("completion returned empty reply, using fallback")
	}
	if c.onFallback != nil {
		c.onFallback(c.provider.Name())
	}
	return c.fallback
}
