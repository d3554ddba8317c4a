package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// RelayService is the set of relay operations the entry points drive.
// *relay.Service implements it.
type RelayService interface {
	Open(ctx context.Context, token string) error
	Close(ctx context.Context, token string) error
	Relay(ctx context.Context, req relay.RelayRequest) (relay.RelayResult, error)
	Reply(ctx context.Context, token string, req relay.ReplyRequest) (relay.ReplyResult, error)
	History(ctx context.Context, identity string) ([]session.HistoryEntry, error)
}

// Handler serves the relay's HTTP endpoints.
type Handler struct {
	svc    RelayService
	logger logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc RelayService, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Handler{svc: svc, logger: log}
}

// DecodeRelayInput parses a relay request body. A missing body is treated as
// an empty object; malformed JSON is an invalid request.
func DecodeRelayInput(body []byte) (RelayInput, error) {
	var in RelayInput
	if len(body) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return RelayInput{}, fmt.Errorf("%w: malformed body: %w", relay.ErrInvalidRequest, err)
	}
	return in, nil
}

// RelayEndpoint returns the handler for a relay route such as relay.RouteChat.
func (h *Handler) RelayEndpoint(route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.GetLoggerFromContext(r.Context(), h.logger).WithFields(logger.RouteField(route))

		var in RelayInput
		body, err := io.ReadAll(r.Body)
		if err != nil {
			err = fmt.Errorf("%w: reading body: %w", relay.ErrInvalidRequest, err)
		} else {
			in, err = DecodeRelayInput(body)
		}

		var res relay.RelayResult
		if err == nil {
			res, err = h.svc.Relay(r.Context(), relay.RelayRequest{
				UserIdentity: in.Identifier,
				Message:      in.Message,
				Route:        route,
			})
		}
		if err != nil {
			log.Warn("relay request rejected", logger.ErrorField(err), logger.HTTPStatusField(relay.StatusCode(err)))
		}
		RelayOutcome(res, err).Write(w)
	}
}

// History serves GET /chat_history?userId=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.History(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		logger.GetLoggerFromContext(r.Context(), h.logger).Warn("history request failed",
			logger.ErrorField(err), logger.HTTPStatusField(relay.StatusCode(err)))
	}
	HistoryOutcome(entries, err).Write(w)
}

// Options answers a plain OPTIONS request for an endpoint family.
func Options(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		Preflight(methods).Write(w)
	}
}
