// Package relay implements connection lifecycle, message relay, direct reply
// and history operations over a session store, a completion client and a
// transport.
//
// Routing policy: replies for an identity go to the connection whose session
// row for that identity has the greatest timestamp. A newer connection wins
// silently; rows left behind by dropped connections are never selected once a
// newer row exists. Concurrent relays for one identity are not serialized.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/internal/transport"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// DefaultSentinel is the message that initialises a session without a pushed reply.
const DefaultSentinel = "Initial Message"

// Push routes carried in relay payloads.
const (
	RouteChat     = "mercurio_data"
	RouteAnalyzer = "mercurio_anali"
)

// Completer produces a reply for a message. It never fails.
type Completer interface {
	Complete(ctx context.Context, prompt string) string
}

// Recorder receives relay outcome events.
type Recorder interface {
	RelayCompleted(route, outcome string)
	DeliveryAttempted(outcome string)
	LifecycleEvent(event string)
}

type nopRecorder struct{}

func (nopRecorder) RelayCompleted(string, string) {}
func (nopRecorder) DeliveryAttempted(string)      {}
func (nopRecorder) LifecycleEvent(string)         {}

// Config holds the collaborators of a Service.
type Config struct {
	Store     session.Store
	Completer Completer
	Pusher    transport.Pusher
	Logger    logger.Logger
	Recorder  Recorder
	Sentinel  string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the relay operations. It holds no per-request state.
type Service struct {
	store     session.Store
	completer Completer
	pusher    transport.Pusher
	logger    logger.Logger
	recorder  Recorder
	sentinel  string
	now       func() time.Time
}

// NewService creates a Service. Store, Completer and Pusher are required.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Completer == nil || cfg.Pusher == nil {
		return nil, fmt.Errorf("relay: store, completer and pusher are required")
	}
	s := &Service{
		store:     cfg.Store,
		completer: cfg.Completer,
		pusher:    cfg.Pusher,
		logger:    cfg.Logger,
		recorder:  cfg.Recorder,
		sentinel:  cfg.Sentinel,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = logger.NewNopLogger()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.sentinel == "" {
		s.sentinel = DefaultSentinel
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Service) log(ctx context.Context) logger.Logger {
	return logger.GetLoggerFromContext(ctx, s.logger)
}

// Open records a new connection. An existing row for token is overwritten.
func (s *Service) Open(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: connection token is empty", ErrInvalidRequest)
	}
	log := s.log(ctx).WithFields(logger.ConnectionTokenField(token))

	rec := session.Record{ConnectionToken: token, Timestamp: s.now().Unix()}
	if err := s.store.Put(ctx, rec); err != nil {
		log.Error("failed to record connection", logger.ErrorField(err))
		s.recorder.LifecycleEvent("open_failed")
		return fmt.Errorf("%w: open %s: %w", ErrStore, token, err)
	}

	log.Info("connection opened")
	s.recorder.LifecycleEvent("open")
	return nil
}

// Close removes the row for token. Closing an unknown token succeeds.
func (s *Service) Close(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: connection token is empty", ErrInvalidRequest)
	}
	log := s.log(ctx).WithFields(logger.ConnectionTokenField(token))

	if err := s.store.Delete(ctx, token); err != nil {
		log.Error("failed to remove connection", logger.ErrorField(err))
		s.recorder.LifecycleEvent("close_failed")
		return fmt.Errorf("%w: close %s: %w", ErrStore, token, err)
	}

	log.Info("connection closed")
	s.recorder.LifecycleEvent("close")
	return nil
}

// IsSentinel reports whether message is the session-initialising sentinel.
func (s *Service) IsSentinel(message string) bool {
	return strings.TrimSpace(message) == s.sentinel
}
