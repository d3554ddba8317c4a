// Package api exposes the relay over HTTP and WebSocket frames. The response
// shapes in this file are shared with the Lambda adapters so both entry points
// answer byte-for-byte alike.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/session"
)

// Allowed methods advertised by each endpoint family.
const (
	MethodsRelay   = "POST,OPTIONS"
	MethodsHistory = "GET,OPTIONS"
)

// Response bodies returned to callers.
const (
	BodyMissingRelayFields = "Missing identifier or message"
	BodyNoConnection       = "No active WebSocket connection found for the user."
	BodyRelayFailed        = "Failed to save chat"
	BodyMissingUserID      = "Missing userId parameter"
	BodyHistoryFailed      = "Failed to query chat history"
	BodyInvalidReply       = "Invalid UserId or message"
	BodyConnectionGone     = "Connection gone"
	BodyReplyFailed        = "Failed to send message"
	BodyConnectFailed      = "Failed to connect"
	BodyDisconnectFailed   = "Failed to disconnect"
)

// Response is a transport-neutral HTTP answer.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// RelayBody is the success body of the relay endpoints.
type RelayBody struct {
	Answer       string `json:"answer"`
	ConnectionID string `json:"connectionId"`
	Timestamp    int64  `json:"timestamp"`
}

// RelayInput is the JSON body accepted by the relay endpoints.
type RelayInput struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// CORSHeaders returns the fixed CORS headers for the given allowed methods.
func CORSHeaders(methods string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type",
		"Access-Control-Allow-Methods": methods,
	}
}

func withContentType(headers map[string]string, ct string) map[string]string {
	if headers == nil {
		headers = make(map[string]string, 1)
	}
	headers["Content-Type"] = ct
	return headers
}

func text(status int, body string, headers map[string]string) Response {
	return Response{Status: status, Body: body, Headers: withContentType(headers, "text/plain; charset=utf-8")}
}

func jsonBody(status int, v any, headers map[string]string) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), nil)
	}
	return Response{Status: status, Body: string(data), Headers: withContentType(headers, "application/json")}
}

// Preflight answers an OPTIONS request.
func Preflight(methods string) Response {
	return Response{Status: http.StatusOK, Headers: CORSHeaders(methods)}
}

// RelayOutcome shapes the result of relay.Service.Relay.
func RelayOutcome(res relay.RelayResult, err error) Response {
	h := CORSHeaders(MethodsRelay)
	switch {
	case err == nil:
		return jsonBody(http.StatusOK, RelayBody{Answer: "Done", ConnectionID: res.ResolvedToken, Timestamp: res.Timestamp}, h)
	case errors.Is(err, relay.ErrInvalidRequest):
		return text(http.StatusBadRequest, BodyMissingRelayFields, h)
	case errors.Is(err, relay.ErrNoActiveConnection):
		return text(http.StatusNotFound, BodyNoConnection, h)
	default:
		return text(http.StatusInternalServerError, BodyRelayFailed, h)
	}
}

// HistoryOutcome shapes the result of relay.Service.History. Server errors
// carry no CORS headers.
func HistoryOutcome(entries []session.HistoryEntry, err error) Response {
	switch {
	case err == nil:
		if entries == nil {
			entries = []session.HistoryEntry{}
		}
		return jsonBody(http.StatusOK, entries, CORSHeaders(MethodsHistory))
	case errors.Is(err, relay.ErrInvalidRequest):
		return text(http.StatusBadRequest, BodyMissingUserID, CORSHeaders(MethodsHistory))
	default:
		return text(http.StatusInternalServerError, BodyHistoryFailed, nil)
	}
}

// ReplyOutcome shapes the result of relay.Service.Reply.
func ReplyOutcome(err error) Response {
	switch {
	case err == nil:
		return Response{Status: http.StatusOK}
	case errors.Is(err, relay.ErrInvalidRequest):
		return text(http.StatusBadRequest, BodyInvalidReply, nil)
	case errors.Is(err, relay.ErrChannelGone):
		return text(http.StatusGone, BodyConnectionGone, nil)
	default:
		return text(http.StatusInternalServerError, BodyReplyFailed, nil)
	}
}

// LifecycleOutcome shapes the result of Open or Close; failBody is used on error.
func LifecycleOutcome(err error, failBody string) Response {
	if err != nil {
		return text(http.StatusInternalServerError, failBody, nil)
	}
	return Response{Status: http.StatusOK}
}

// Write sends resp on w.
func (resp Response) Write(w http.ResponseWriter) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.Status)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}
