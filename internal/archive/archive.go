// Package archive snapshots an identity's chat history to object storage, so
// the exchanges outlive the session rows deleted on disconnect.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lewisedginton/chat_relay/internal/relay"
	"github.com/lewisedginton/chat_relay/internal/session"
	"github.com/lewisedginton/chat_relay/pkg/logger"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "chat-history"

// stampLayout has fixed-width nanoseconds so keys sort chronologically.
const stampLayout = "20060102T150405.000000000Z"

// HistorySource returns an identity's recorded exchanges. *relay.Service implements it.
type HistorySource interface {
	History(ctx context.Context, identity string) ([]session.HistoryEntry, error)
}

// HistoryFunc adapts a function to HistorySource.
type HistoryFunc func(ctx context.Context, identity string) ([]session.HistoryEntry, error)

func (f HistoryFunc) History(ctx context.Context, identity string) ([]session.HistoryEntry, error) {
	return f(ctx, identity)
}

// Config wires an Archiver.
type Config struct {
	History HistorySource
	Objects ObjectStore
	Prefix  string
	Logger  logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Archiver exports and reads history archives.
type Archiver struct {
	history HistorySource
	objects ObjectStore
	prefix  string
	logger  logger.Logger
	now     func() time.Time

	mu        sync.Mutex
	lastStamp time.Time
}

// New creates an Archiver.
func New(cfg Config) (*Archiver, error) {
	if cfg.History == nil || cfg.Objects == nil {
		return nil, fmt.Errorf("archive: history source and object store are required")
	}
	a := &Archiver{
		history: cfg.History,
		objects: cfg.Objects,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	if a.prefix == "" {
		a.prefix = DefaultPrefix
	}
	if a.logger == nil {
		a.logger = logger.NewNopLogger()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// stamp returns a strictly increasing UTC time so two exports never share a key.
func (a *Archiver) stamp() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.now().UTC()
	if !t.After(a.lastStamp) {
		t = a.lastStamp.Add(time.Nanosecond)
	}
	a.lastStamp = t
	return t
}

func (a *Archiver) identityPrefix(identity string) string {
	return a.prefix + "/" + url.PathEscape(identity) + "/"
}

// Export writes the identity's current history as one JSON object and
// returns its key and the number of entries written.
func (a *Archiver) Export(ctx context.Context, identity string) (string, int, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", 0, fmt.Errorf("%w: missing identity", relay.ErrInvalidRequest)
	}

	entries, err := a.history.History(ctx, identity)
	if err != nil {
		return "", 0, fmt.Errorf("reading history: %w", err)
	}
	if entries == nil {
		entries = []session.HistoryEntry{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return "", 0, fmt.Errorf("encoding history: %w", err)
	}

	key := a.identityPrefix(identity) + a.stamp().Format(stampLayout) + ".json"
	if err := a.objects.Put(ctx, key, data); err != nil {
		return "", 0, fmt.Errorf("%w: writing archive: %w", relay.ErrStore, err)
	}

	a.logger.Info("history archived",
		logger.UserIdentityField(identity),
		logger.StringField("key", key),
		logger.IntField("entries", len(entries)))
	return key, len(entries), nil
}

// List returns the identity's archive keys, oldest first.
func (a *Archiver) List(ctx context.Context, identity string) ([]string, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("%w: missing identity", relay.ErrInvalidRequest)
	}

	keys, err := a.objects.List(ctx, a.identityPrefix(identity))
	if err != nil {
		return nil, fmt.Errorf("%w: listing archives: %w", relay.ErrStore, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Fetch decodes the archive stored under key.
func (a *Archiver) Fetch(ctx context.Context, key string) ([]session.HistoryEntry, error) {
	data, err := a.objects.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: reading archive: %w", relay.ErrStore, err)
	}

	var entries []session.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding archive %s: %w", key, err)
	}
	return entries, nil
}
