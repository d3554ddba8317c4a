// Package session persists the mapping between transport connection tokens and
// the user identities they were last used by.
//
// A Record is keyed by its connection token. Records are written without an
// identity when a connection opens, populated on every relay and removed when
// the connection closes. The record with the greatest Timestamp for an identity
// is the connection replies for that identity are routed to.
package session

import (
	"context"
	"errors"
)

// ErrEmptyToken is returned when a record or lookup has no connection token.
var ErrEmptyToken = errors.New("connection token is empty")

// Record is one row of the session table.
type Record struct {
	ConnectionToken string `json:"ConnectionId" dynamodbav:"ConnectionId"`
	UserIdentity    string `json:"UserId,omitempty" dynamodbav:"UserId,omitempty"`
	LastMessage     string `json:"UserMessage,omitempty" dynamodbav:"UserMessage,omitempty"`
	LastReply       string `json:"AIResponse,omitempty" dynamodbav:"AIResponse,omitempty"`
	// Timestamp is the unix time in seconds of the last write.
	Timestamp int64 `json:"Timestamp" dynamodbav:"Timestamp"`
}

// Order is the timestamp order of QueryByUser results.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) String() string {
	if o == Descending {
		return "descending"
	}
	return "ascending"
}

// Store is implemented by every session backend. Each method is atomic for a
// single row; nothing spans rows.
type Store interface {
	// Put inserts or fully overwrites the record keyed by rec.ConnectionToken.
	Put(ctx context.Context, rec Record) error
	// Delete removes the record for token. A missing record is not an error.
	Delete(ctx context.Context, token string) error
	// Get returns the record for token and whether it exists.
	Get(ctx context.Context, token string) (Record, bool, error)
	// QueryByUser returns records carrying identity ordered by Timestamp.
	// A limit of zero or less returns every match.
	QueryByUser(ctx context.Context, identity string, order Order, limit int) ([]Record, error)
}

// Pinger is implemented by stores that can check backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Latest returns the most recent record for identity.
func Latest(ctx context.Context, store Store, identity string) (Record, bool, error) {
	recs, err := store.QueryByUser(ctx, identity, Descending, 1)
	if err != nil {
		return Record{}, false, err
	}
	if len(recs) == 0 {
		return Record{}, false, nil
	}
	return recs[0], true, nil
}

// HistoryEntry is the client-facing view of a Record. Numbers are plain floats.
type HistoryEntry struct {
	ConnectionID string  `json:"ConnectionId"`
	UserID       string  `json:"UserId,omitempty"`
	UserMessage  string  `json:"UserMessage,omitempty"`
	AIResponse   string  `json:"AIResponse,omitempty"`
	Timestamp    float64 `json:"Timestamp"`
}

// ToHistoryEntry converts a record for a history response.
func (r Record) ToHistoryEntry() HistoryEntry {
	return HistoryEntry{
		ConnectionID: r.ConnectionToken,
		UserID:       r.UserIdentity,
		UserMessage:  r.LastMessage,
		AIResponse:   r.LastReply,
		Timestamp:    float64(r.Timestamp),
	}
}
