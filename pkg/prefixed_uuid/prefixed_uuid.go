// Package prefixed_uuid generates opaque identifiers of the form "prefix-uuid",
// used for connection tokens handed out by the websocket hub.
package prefixed_uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PrefixedUUID is a random UUID tagged with a short kind prefix.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New returns a PrefixedUUID with a freshly generated UUID.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: uuid.New()}
}

// Parse reads "prefix-uuid". The prefix ends at the first hyphen and must not be empty.
func Parse(s string) (PrefixedUUID, error) {
	prefix, raw, ok := strings.Cut(s, "-")
	if !ok || prefix == "" {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %q", s)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID in %q: %w", s, err)
	}
	return PrefixedUUID{Prefix: prefix, UUID: id}, nil
}

// HasPrefix reports whether s parses as a PrefixedUUID with the given prefix.
func HasPrefix(s, prefix string) bool {
	p, err := Parse(s)
	return err == nil && p.Prefix == prefix
}

func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p PrefixedUUID) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PrefixedUUID) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
