package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitPacesSameHost(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1: the second call waits for the next token (~100ms).
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://press.example.com/a/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://press.example.com/a/2"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterIsolatesHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "host b blocked by host a")
}

func TestLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.example.com/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.example.com/"))
}

func TestLimiterUnlimitedWhenRateUnset(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(context.Background(), "not a url"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterKeysByLowercaseHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://Press.Example.com/1"))
	require.NoError(t, l.Wait(ctx, "press.example.com/2"))
	require.NoError(t, l.Wait(ctx, ""))

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.limiters, 2)
	require.Contains(t, l.limiters, "press.example.com")
	require.Contains(t, l.limiters, "unknown")
}
