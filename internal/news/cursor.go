package news

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// EncodeCursor returns an opaque keyset cursor positioned after rec.
func EncodeCursor(rec Record) string {
	raw := rec.CollectedAt.UTC().Format(time.RFC3339Nano) + "|" + rec.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor splits a cursor produced by EncodeCursor.
func DecodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("%w: malformed payload", ErrInvalidCursor)
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return at, id, nil
}

// Before reports whether rec sorts strictly before the (at, id) position in
// ascending (collected_at, id) order.
func (r Record) Before(at time.Time, id string) bool {
	if !r.CollectedAt.Equal(at) {
		return r.CollectedAt.Before(at)
	}
	return r.ID < id
}
