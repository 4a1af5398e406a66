package pubdate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceFormats(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 9, 9, 5, 30, 0, 0, time.UTC)
	inputs := []string{
		"Mon, 09 Sep 2024 14:30:00 +0900",
		"Mon, 9 Sep 2024 14:30:00 +0900",
		"  Mon, 09 Sep 2024 14:30:00 +0900 ",
		"09 Sep 2024 14:30:00 +0900",
		"Mon, 09 Sep 2024 14:30 +0900",
		"2024-09-09T14:30:00+09:00",
	}
	for _, in := range inputs {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%q parsed to %v", in, got)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "yesterday", "not a timestamp"} {
		_, err := Parse(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrUnparsable))
	}
}

func TestIsNewerAcrossTimezones(t *testing.T) {
	t.Parallel()

	// 14:30 KST is 05:30 UTC, so the UTC value one hour later wins.
	assert.True(t, IsNewer("Mon, 09 Sep 2024 06:30:00 +0000", "Mon, 09 Sep 2024 14:30:00 +0900"))
	assert.False(t, IsNewer("Mon, 09 Sep 2024 14:30:00 +0900", "Mon, 09 Sep 2024 06:30:00 +0000"))
}

func TestIsNewerStrict(t *testing.T) {
	t.Parallel()

	same := "Mon, 09 Sep 2024 14:30:00 +0900"
	assert.False(t, IsNewer(same, same))
	assert.False(t, IsNewer(same, "Mon, 09 Sep 2024 05:30:00 +0000"))
}

func TestIsNewerFallsBackToByteOrder(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNewer("zzz", "Mon, 09 Sep 2024 14:30:00 +0900"))
	assert.False(t, IsNewer("Mon, 09 Sep 2024 14:30:00 +0900", "zzz"))
	assert.True(t, IsNewer("b", "a"))
	assert.False(t, IsNewer("", ""))
}

func TestCompare(t *testing.T) {
	t.Parallel()

	early := "Mon, 09 Sep 2024 14:30:00 +0900"
	late := "Tue, 10 Sep 2024 08:00:00 +0900"
	assert.Equal(t, -1, compare(early, late))
	assert.Equal(t, 1, compare(late, early))
	assert.Equal(t, 0, compare(early, "Mon, 09 Sep 2024 05:30:00 +0000"))
}
