package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/internal/transport"
)

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Open(ctx, "tok1"))
	first, found, err := h.store.Get(ctx, "tok1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, first.UserIdentity)
	assert.Equal(t, h.clock.last().Unix(), first.Timestamp)

	// Idempotent: one row carrying the second call's time.
	require.NoError(t, h.svc.Open(ctx, "tok1"))
	openedAt := h.clock.last().Unix()
	second, _, err := h.store.Get(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.Len())
	assert.Equal(t, openedAt, second.Timestamp)
	assert.Greater(t, second.Timestamp, first.Timestamp)
	assert.Equal(t, 2, h.recorder.lifecycle["open"])
}

func TestOpenStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.putErr = errBoom

	err := h.svc.Open(context.Background(), "tok1")
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestClose(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"existing row", func(h *harness) { require.NoError(t, h.svc.Open(context.Background(), "tok1")) }},
		{"row with identity", func(h *harness) {
			require.NoError(t, h.store.Put(context.Background(), session.Record{ConnectionToken: "tok1", UserIdentity: "alice", Timestamp: 1}))
		}},
		{"no row", func(h *harness) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			require.NoError(t, h.svc.Close(context.Background(), "tok1"))
			_, found, err := h.store.Get(context.Background(), "tok1")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestCloseStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.delErr = errBoom
	assert.ErrorIs(t, h.svc.Close(context.Background(), "tok1"), ErrStore)
}

func TestEmptyTokenRejected(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.svc.Open(context.Background(), ""), ErrInvalidRequest)
	assert.ErrorIs(t, h.svc.Close(context.Background(), ""), ErrInvalidRequest)
}

func TestRelayResolvesMostRecentRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "old", UserIdentity: "alice", Timestamp: 100}))
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "new", UserIdentity: "alice", Timestamp: 200}))
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "other", UserIdentity: "bob", Timestamp: 300}))

	res, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "new", res.ResolvedToken)
	assert.Equal(t, "reply to: hello", res.Reply)
	assert.Equal(t, DeliveryDelivered, res.Delivery)

	require.Equal(t, 1, h.pusher.count())
	assert.Equal(t, "new", h.pusher.pushes[0].token)
	assert.Equal(t, ResponseFrame{
		Action:     "response",
		Route:      RouteChat,
		Identifier: "alice",
		Message:    "reply to: hello",
	}, h.pusher.pushes[0].payload)

	row, _, err := h.store.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, session.Record{
		ConnectionToken: "new",
		UserIdentity:    "alice",
		LastMessage:     "hello",
		LastReply:       "reply to: hello",
		Timestamp:       res.Timestamp,
	}, row)
}

func TestRelayTrimsInputs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "tok", UserIdentity: "alice", Timestamp: 1}))

	res, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "  alice ", Message: "\thello \n"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.ResolvedToken)
	assert.Equal(t, []string{"hello"}, h.completer.prompts)
}

func TestRelayInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  RelayRequest
	}{
		{"empty identity", RelayRequest{Message: "hi"}},
		{"empty message", RelayRequest{UserIdentity: "alice"}},
		{"whitespace only", RelayRequest{UserIdentity: "  ", Message: " \t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.Relay(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, http.StatusBadRequest, StatusCode(err))
			assert.Empty(t, h.completer.prompts)
			assert.Zero(t, h.store.puts)
		})
	}
}

func TestRelayNoActiveConnection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "tok", UserIdentity: "alice", Timestamp: 1}))
	h.store.puts = 0

	_, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "bob", Message: "hi"})
	assert.ErrorIs(t, err, ErrNoActiveConnection)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Zero(t, h.store.puts, "no store write")
	assert.Zero(t, h.pusher.count(), "no push")
	assert.Empty(t, h.completer.prompts, "no completion call")
}

func TestRelayOpenRowWithoutIdentityIsNotRoutable(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.Open(context.Background(), "tok1"))

	_, err := h.svc.Relay(context.Background(), RelayRequest{UserIdentity: "alice", Message: "hi"})
	assert.ErrorIs(t, err, ErrNoActiveConnection)
}

func TestRelaySentinel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "tok", UserIdentity: "alice", Timestamp: 1}))

	res, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: " Initial Message "})
	require.NoError(t, err)
	assert.Equal(t, DeliverySkipped, res.Delivery)
	assert.Zero(t, h.pusher.count())

	row, _, err := h.store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "Initial Message", row.LastMessage)
	assert.Equal(t, "reply to: Initial Message", row.LastReply)
	assert.Equal(t, 1, h.recorder.deliveries["skipped"])
}

func TestRelaySentinelWithoutRow(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Relay(context.Background(), RelayRequest{UserIdentity: "bob", Message: "Initial Message"})
	assert.ErrorIs(t, err, ErrNoActiveConnection)
}

func TestRelayCustomSentinel(t *testing.T) {
	h := newHarness(t)
	svc, err := NewService(Config{Store: h.store, Completer: h.completer, Pusher: h.pusher, Sentinel: "__init__"})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "tok", UserIdentity: "alice", Timestamp: 1}))

	res, err := svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "Initial Message"})
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, res.Delivery)

	res, err = svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "__init__"})
	require.NoError(t, err)
	assert.Equal(t, DeliverySkipped, res.Delivery)
}

func TestRelayPushFailureDoesNotFail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Delivery
	}{
		{"gone", transport.ErrGone, DeliveryGone},
		{"other", errBoom, DeliveryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "tok", UserIdentity: "alice", Timestamp: 1}))
			h.pusher.err = tt.err

			res, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "hello"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Delivery)

			row, _, err := h.store.Get(ctx, "tok")
			require.NoError(t, err)
			assert.Equal(t, "hello", row.LastMessage, "persist is authoritative")
		})
	}
}

func TestRelayStoreFailures(t *testing.T) {
	t.Run("resolve", func(t *testing.T) {
		h := newHarness(t)
		h.store.queryErr = errBoom

		_, err := h.svc.Relay(context.Background(), RelayRequest{UserIdentity: "alice", Message: "hi"})
		assert.ErrorIs(t, err, ErrStore)
		assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
		assert.Empty(t, h.completer.prompts)
	})

	t.Run("persist", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "tok", UserIdentity: "alice", Timestamp: 1}))
		h.store.putErr = errBoom

		_, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "hi"})
		assert.ErrorIs(t, err, ErrStore)
		assert.Zero(t, h.pusher.count(), "no push after failed persist")
	})
}

func TestRelayAnalyzerRoute(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "tok", UserIdentity: "alice", Timestamp: 1}))

	_, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "analyse", Route: RouteAnalyzer})
	require.NoError(t, err)

	frame := h.pusher.pushes[0].payload.(ResponseFrame)
	assert.Equal(t, "mercurio_anali", frame.Route)
	assert.Equal(t, 1, h.recorder.relays["mercurio_anali/ok"])
}

func TestReconnectScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Open(ctx, "tok1"))
	// A client announces itself on its new connection with a direct reply.
	_, err := h.svc.Reply(ctx, "tok1", ReplyRequest{UserIdentity: "alice", Message: "hello"})
	require.NoError(t, err)

	res, err := h.svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "tok1", res.ResolvedToken)

	row1, _, err := h.store.Get(ctx, "tok1")
	require.NoError(t, err)
	assert.Equal(t, "alice", row1.UserIdentity)

	require.NoError(t, h.svc.Open(ctx, "tok2"))
	_, err = h.svc.Reply(ctx, "tok2", ReplyRequest{UserIdentity: "alice", Message: "back"})
	require.NoError(t, err)

	res, err = h.svc.Relay(ctx, RelayRequest{UserIdentity: "alice", Message: "hi again"})
	require.NoError(t, err)
	assert.Equal(t, "tok2", res.ResolvedToken, "newer row wins")

	stale, found, err := h.store.Get(ctx, "tok1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", stale.UserIdentity, "stale row keeps identity")
	assert.Equal(t, "hello", stale.LastMessage)
}

func TestReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Reply(ctx, "tok", ReplyRequest{UserIdentity: "alice", Message: " hi "})
	require.NoError(t, err)
	assert.Equal(t, "reply to: hi", res.Reply)

	require.Equal(t, 1, h.pusher.count())
	assert.Equal(t, "tok", h.pusher.pushes[0].token)
	encoded, err := json.Marshal(h.pusher.pushes[0].payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"reply to: hi"}`, string(encoded))

	row, found, err := h.store.Get(ctx, "tok")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", row.UserIdentity)
	assert.Equal(t, res.Timestamp, row.Timestamp)
}

func TestReplyErrors(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		req        ReplyRequest
		putErr     error
		pushErr    error
		wantErr    error
		wantStatus int
	}{
		{"missing message", "tok", ReplyRequest{UserIdentity: "alice"}, nil, nil, ErrInvalidRequest, http.StatusBadRequest},
		{"missing identity", "tok", ReplyRequest{Message: "hi"}, nil, nil, ErrInvalidRequest, http.StatusBadRequest},
		{"missing token", "", ReplyRequest{UserIdentity: "alice", Message: "hi"}, nil, nil, ErrInvalidRequest, http.StatusBadRequest},
		{"store failure", "tok", ReplyRequest{UserIdentity: "alice", Message: "hi"}, errBoom, nil, ErrStore, http.StatusInternalServerError},
		{"gone", "tok", ReplyRequest{UserIdentity: "alice", Message: "hi"}, nil, transport.ErrGone, ErrChannelGone, http.StatusGone},
		{"push failure", "tok", ReplyRequest{UserIdentity: "alice", Message: "hi"}, nil, errBoom, ErrTransport, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.putErr = tt.putErr
			h.pusher.err = tt.pushErr

			_, err := h.svc.Reply(context.Background(), tt.token, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStatus, StatusCode(err))
		})
	}
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "b", UserIdentity: "alice", LastMessage: "two", Timestamp: 200}))
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "a", UserIdentity: "alice", LastMessage: "one", Timestamp: 100}))
	require.NoError(t, h.store.Put(ctx, session.Record{ConnectionToken: "c", UserIdentity: "bob", Timestamp: 300}))

	entries, err := h.svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].UserMessage)
	assert.Equal(t, "two", entries[1].UserMessage)

	encoded, err := json.Marshal(entries)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.IsType(t, float64(0), decoded[0]["Timestamp"])
	assert.Equal(t, float64(100), decoded[0]["Timestamp"])
}

func TestHistoryEmpty(t *testing.T) {
	h := newHarness(t)
	entries, err := h.svc.History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestHistoryErrors(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.History(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	h.store.queryErr = errBoom
	_, err = h.svc.History(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrStore)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(nil))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errBoom))
	assert.Equal(t, http.StatusGone, StatusCode(ErrChannelGone))
}
