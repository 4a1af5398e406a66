// Package pubdate parses and orders the textual publication timestamps
// returned by the news search API ("Mon, 09 Sep 2024 14:30:00 +0900").
package pubdate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrUnparsable is returned when a value matches none of the known layouts.
var ErrUnparsable = errors.New("unparsable publication timestamp")

// layouts are tried in order before falling back to dateparse.
var layouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"02 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC3339,
}

// Parse converts a source timestamp into an absolute instant.
func Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrUnparsable)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	// Anything without a digit cannot carry a date.
	if !strings.ContainsAny(value, "0123456789") {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, value)
	}
	t, err := dateparse.ParseStrict(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrUnparsable, value, err)
	}
	return t, nil
}

// IsNewer reports whether candidate is strictly later than reference.
//
// When either side fails to parse the values are compared byte-wise. That
// fallback is only meaningful for identically formatted strings; it never
// panics and never errors.
func IsNewer(candidate, reference string) bool {
	return compare(candidate, reference) > 0
}

// compare orders two timestamps, returning -1, 0 or +1. It uses the same
// byte-wise fallback as IsNewer.
func compare(a, b string) int {
	ta, errA := Parse(a)
	tb, errB := Parse(b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}
