package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/internal/transport"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// Delivery is the outcome of pushing a relay reply.
type Delivery string

const (
	DeliveryDelivered Delivery = "delivered"
	DeliverySkipped   Delivery = "skipped"
	DeliveryFailed    Delivery = "failed"
	DeliveryGone      Delivery = "gone"
)

// RelayRequest is a message addressed to a user identity.
type RelayRequest struct {
	UserIdentity string
	Message      string
	// Route is echoed in the pushed payload. Empty defaults to RouteChat.
	Route string
}

// RelayResult describes a persisted relay.
type RelayResult struct {
	ResolvedToken string
	Reply         string
	Timestamp     int64
	Delivery      Delivery
}

// ResponseFrame is the payload pushed to the resolved connection.
type ResponseFrame struct {
	Action     string `json:"action"`
	Route      string `json:"route,omitempty"`
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// Relay resolves the identity's current connection, obtains a reply, persists
// the exchange and pushes the reply. Persisting is authoritative: once the row
// is written the call succeeds whatever happens to delivery.
func (s *Service) Relay(ctx context.Context, req RelayRequest) (RelayResult, error) {
	identity := strings.TrimSpace(req.UserIdentity)
	message := strings.TrimSpace(req.Message)
	route := req.Route
	if route == "" {
		route = RouteChat
	}

	log := s.log(ctx).WithFields(logger.UserIdentityField(identity), logger.RouteField(route))

	if identity == "" || message == "" {
		s.recorder.RelayCompleted(route, "invalid")
		return RelayResult{}, fmt.Errorf("%w: missing identifier or message", ErrInvalidRequest)
	}

	latest, found, err := session.Latest(ctx, s.store, identity)
	if err != nil {
		log.Error("failed to resolve connection", logger.ErrorField(err))
		s.recorder.RelayCompleted(route, "store_error")
		return RelayResult{}, fmt.Errorf("%w: resolve connection: %w", ErrStore, err)
	}
	if !found {
		log.Info("no active connection for user")
		s.recorder.RelayCompleted(route, "no_connection")
		return RelayResult{}, ErrNoActiveConnection
	}

	token := latest.ConnectionToken
	log = log.WithFields(logger.ConnectionTokenField(token))

	reply := s.completer.Complete(ctx, message)

	result, err := s.persist(ctx, token, identity, message, reply)
	if err != nil {
		log.Error("failed to save exchange", logger.ErrorField(err))
		s.recorder.RelayCompleted(route, "store_error")
		return RelayResult{}, err
	}

	result.Delivery = s.deliver(ctx, log, token, message, ResponseFrame{
		Action:     "response",
		Route:      route,
		Identifier: identity,
		Message:    reply,
	})

	log.Info("message relayed", logger.StringField("delivery", string(result.Delivery)))
	s.recorder.RelayCompleted(route, "ok")
	return result, nil
}

// persist writes the full row for token.
func (s *Service) persist(ctx context.Context, token, identity, message, reply string) (RelayResult, error) {
	rec := session.Record{
		ConnectionToken: token,
		UserIdentity:    identity,
		LastMessage:     message,
		LastReply:       reply,
		Timestamp:       s.now().Unix(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return RelayResult{}, fmt.Errorf("%w: save exchange: %w", ErrStore, err)
	}
	return RelayResult{ResolvedToken: token, Reply: reply, Timestamp: rec.Timestamp}, nil
}

// deliver pushes frame unless message is the sentinel. Failures are logged, never returned.
func (s *Service) deliver(ctx context.Context, log logger.Logger, token, message string, frame ResponseFrame) Delivery {
	var outcome Delivery
	if s.IsSentinel(message) {
		log.Debug("sentinel message, reply not pushed")
		outcome = DeliverySkipped
	} else {
		err := s.pusher.Push(ctx, token, frame)
		switch {
		case err == nil:
			outcome = DeliveryDelivered
		case errors.Is(err, transport.ErrGone):
			log.Warn("connection gone before reply could be delivered", logger.ErrorField(err))
			outcome = DeliveryGone
		default:
			log.Error("failed to deliver reply", logger.ErrorField(err))
			outcome = DeliveryFailed
		}
	}
	s.recorder.DeliveryAttempted(string(outcome))
	return outcome
}

// ReplyRequest is a message answered on the channel it arrived on.
type ReplyRequest struct {
	UserIdentity string
	Message      string
}

// ReplyResult describes a direct reply.
type ReplyResult struct {
	Reply     string
	Timestamp int64
}

// DirectReplyFrame is the payload pushed back to the originating connection.
type DirectReplyFrame struct {
	Response string `json:"response"`
}

// Reply answers message on token itself and records the exchange under token.
// Unlike Relay, a failed push is reported to the caller.
func (s *Service) Reply(ctx context.Context, token string, req ReplyRequest) (ReplyResult, error) {
	identity := strings.TrimSpace(req.UserIdentity)
	message := strings.TrimSpace(req.Message)

	log := s.log(ctx).WithFields(logger.ConnectionTokenField(token), logger.UserIdentityField(identity))

	if token == "" || identity == "" || message == "" {
		return ReplyResult{}, fmt.Errorf("%w: invalid user id or message", ErrInvalidRequest)
	}

	reply := s.completer.Complete(ctx, message)

	result, err := s.persist(ctx, token, identity, message, reply)
	if err != nil {
		log.Error("failed to save exchange", logger.ErrorField(err))
		return ReplyResult{}, err
	}

	if err := s.pusher.Push(ctx, token, DirectReplyFrame{Response: reply}); err != nil {
		if errors.Is(err, transport.ErrGone) {
			log.Warn("connection gone", logger.ErrorField(err))
			s.recorder.DeliveryAttempted(string(DeliveryGone))
			return ReplyResult{}, fmt.Errorf("%w: %w", ErrChannelGone, err)
		}
		log.Error("failed to send reply", logger.ErrorField(err))
		s.recorder.DeliveryAttempted(string(DeliveryFailed))
		return ReplyResult{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	s.recorder.DeliveryAttempted(string(DeliveryDelivered))
	log.Info("reply sent")
	return ReplyResult{Reply: result.Reply, Timestamp: result.Timestamp}, nil
}

// History returns every row recorded for identity in ascending timestamp order.
func (s *Service) History(ctx context.Context, identity string) ([]session.HistoryEntry, error) {
	entries, err := QueryHistory(ctx, s.store, identity)
	if err != nil && errors.Is(err, ErrStore) {
		s.log(ctx).Error("failed to query chat history", logger.UserIdentityField(identity), logger.ErrorField(err))
	}
	return entries, err
}

// QueryHistory reads identity's rows from store as history entries, oldest first.
func QueryHistory(ctx context.Context, store session.Store, identity string) ([]session.HistoryEntry, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("%w: missing userId parameter", ErrInvalidRequest)
	}

	recs, err := store.QueryByUser(ctx, identity, session.Ascending, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %w", ErrStore, err)
	}

	entries := make([]session.HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, rec.ToHistoryEntry())
	}
	return entries, nil
}
