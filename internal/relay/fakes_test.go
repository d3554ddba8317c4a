package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/chat_relay/internal/session"
)

type push struct {
	token   string
	payload any
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
	err    error
}

func (f *fakePusher) Push(_ context.Context, token string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushes = append(f.pushes, push{token: token, payload: payload})
	return nil
}

func (f *fakePusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return "reply to: " + prompt
}

// faultyStore wraps a MemoryStore and fails selected operations.
type faultyStore struct {
	*session.MemoryStore
	putErr   error
	queryErr error
	delErr   error
	puts     int
}

func (f *faultyStore) Put(ctx context.Context, rec session.Record) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	return f.MemoryStore.Put(ctx, rec)
}

func (f *faultyStore) Delete(ctx context.Context, token string) error {
	if f.delErr != nil {
		return f.delErr
	}
	return f.MemoryStore.Delete(ctx, token)
}

func (f *faultyStore) QueryByUser(ctx context.Context, identity string, order session.Order, limit int) ([]session.Record, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.MemoryStore.QueryByUser(ctx, identity, order, limit)
}

type countingRecorder struct {
	mu         sync.Mutex
	relays     map[string]int
	deliveries map[string]int
	lifecycle  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{relays: map[string]int{}, deliveries: map[string]int{}, lifecycle: map[string]int{}}
}

func (c *countingRecorder) RelayCompleted(route, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relays[route+"/"+outcome]++
}

func (c *countingRecorder) DeliveryAttempted(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries[outcome]++
}

func (c *countingRecorder) LifecycleEvent(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifecycle[event]++
}

// clock returns increasing times one second apart starting at base.
type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func newClock() *clock {
	return &clock{cur: time.Unix(1700000000, 0)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

// last returns the time most recently handed out.
func (c *clock) last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

type harness struct {
	svc       *Service
	store     *faultyStore
	pusher    *fakePusher
	completer *fakeCompleter
	recorder  *countingRecorder
	clock     *clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     &faultyStore{MemoryStore: session.NewMemoryStore()},
		pusher:    &fakePusher{},
		completer: &fakeCompleter{},
		recorder:  newCountingRecorder(),
		clock:     newClock(),
	}
	svc, err := NewService(Config{
		Store:     h.store,
		Completer: h.completer,
		Pusher:    h.pusher,
		Recorder:  h.recorder,
		Now:       h.clock.Now,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

var errBoom = errors.New("boom")
