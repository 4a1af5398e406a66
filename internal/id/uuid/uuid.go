// Package uuid provides record ID generation helpers.
package uuid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idLayout prefixes every ID so lexical order follows creation time.
const idLayout = "20060102_150405_"

// Generator creates time-sortable record IDs of the form
// YYYYMMDD_HHMMSS_xxxxxxxx, where the suffix is drawn from a random UUID.
type Generator struct {
	now func() time.Time
}

// New creates a Generator stamped with the wall clock.
func New() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// NewWithClock creates a Generator stamped with now.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// NewID returns a fresh record ID.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid4: %w", err)
	}
	suffix := strings.ReplaceAll(id.String(), "-", "")[:8]
	return g.now().UTC().Format(idLayout) + suffix, nil
}

// NewEventID returns a UUIDv7 string for correlating run events.
func (g *Generator) NewEventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
