package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/transport"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// Frame actions answered on the connection they arrive on. An empty action is
// treated as a direct reply as well.
var replyActions = map[string]bool{
	"":              true,
	"sendMessage":   true,
	"send_message":  true,
	relay.RouteChat: true,
}

// InboundFrame is a client frame received on a websocket connection.
type InboundFrame struct {
	Action  string `json:"action"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// ErrorFrame reports a failed frame back to the connection.
type ErrorFrame struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// FrameHandler adapts hub connection events to the relay service.
type FrameHandler struct {
	svc    RelayService
	pusher transport.Pusher
	logger logger.Logger
}

var _ transport.FrameHandler = (*FrameHandler)(nil)

// NewFrameHandler creates a FrameHandler. pusher is used for error frames and
// is normally the hub itself.
func NewFrameHandler(svc RelayService, pusher transport.Pusher, log logger.Logger) *FrameHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FrameHandler{svc: svc, pusher: pusher, logger: log}
}

// OnOpen records the new connection.
func (f *FrameHandler) OnOpen(ctx context.Context, token string) error {
	ctx, _ = logger.EnsureCorrelationID(ctx, "")
	return f.svc.Open(ctx, token)
}

// OnClose removes the connection's session row.
func (f *FrameHandler) OnClose(ctx context.Context, token string) error {
	ctx, _ = logger.EnsureCorrelationID(ctx, "")
	return f.svc.Close(ctx, token)
}

// OnMessage handles one inbound frame. Failures are answered with an ErrorFrame
// unless the connection is already gone.
func (f *FrameHandler) OnMessage(ctx context.Context, token string, data []byte) {
	ctx, _ = logger.EnsureCorrelationID(ctx, "")
	log := logger.GetLoggerFromContext(ctx, f.logger).WithFields(logger.ConnectionTokenField(token))

	resp := f.handle(ctx, token, data)
	if resp.Status < http.StatusMultipleChoices || resp.Status == http.StatusGone {
		return
	}

	log.Warn("websocket frame rejected", logger.HTTPStatusField(resp.Status), logger.StringField("reason", resp.Body))
	if err := f.pusher.Push(ctx, token, ErrorFrame{Status: resp.Status, Error: resp.Body}); err != nil && !errors.Is(err, transport.ErrGone) {
		log.Error("failed to send error frame", logger.ErrorField(err))
	}
}

// DecodeInboundFrame parses a client frame. Malformed JSON is an invalid request.
func DecodeInboundFrame(data []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: malformed frame: %w", relay.ErrInvalidRequest, err)
	}
	return frame, nil
}

func (f *FrameHandler) handle(ctx context.Context, token string, data []byte) Response {
	frame, err := DecodeInboundFrame(data)
	if err != nil {
		return ReplyOutcome(err)
	}

	action := strings.TrimSpace(frame.Action)
	if !replyActions[action] {
		return text(http.StatusBadRequest, fmt.Sprintf("Unknown action %q", action), nil)
	}

	_, err = f.svc.Reply(ctx, token, relay.ReplyRequest{UserIdentity: frame.UserID, Message: frame.Message})
	return ReplyOutcome(err)
}
