package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_relay/internal/completion"
	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/internal/transport"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

var errBoom = errors.New("boom")

const fixedNow = int64(1700000000)

type pushed struct {
	token   string
	payload any
}

type capturePusher struct {
	mu     sync.Mutex
	pushes []pushed
	err    error
}

func (c *capturePusher) Push(_ context.Context, token string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.pushes = append(c.pushes, pushed{token: token, payload: payload})
	return nil
}

func (c *capturePusher) all() []pushed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pushed(nil), c.pushes...)
}

func (c *capturePusher) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = nil
}

// brokenStore fails every query while keeping writes working.
type brokenStore struct {
	*session.MemoryStore
}

func (brokenStore) QueryByUser(context.Context, string, session.Order, int) ([]session.Record, error) {
	return nil, errBoom
}

func newService(t *testing.T, store session.Store, pusher transport.Pusher) *relay.Service {
	t.Helper()
	svc, err := relay.NewService(relay.Config{
		Store:     store,
		Completer: completion.NewClient(completion.EchoProvider{}),
		Pusher:    pusher,
		Logger:    logger.NewNopLogger(),
		Now:       func() time.Time { return time.Unix(fixedNow, 0) },
	})
	require.NoError(t, err)
	return svc
}

// bind opens token and attaches identity to it through a direct reply.
func bind(t *testing.T, svc *relay.Service, token, identity string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Open(ctx, token))
	_, err := svc.Reply(ctx, token, relay.ReplyRequest{UserIdentity: identity, Message: "hello"})
	require.NoError(t, err)
}
