package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/campus-kg-crawler/internal/metrics"
)

func TestLimiter_Wait(t *testing.T) {
	metrics.Init()
	l := New(Config{
		DefaultRPS:   10, // 100ms interval
		DefaultBurst: 1,
	})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "openai/gpt-4o-mini"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "openai/gpt-4o-mini"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_DifferentKeys(t *testing.T) {
	metrics.Init()
	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "key-a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "key-b"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "key-b must not share key-a's bucket")
	require.Equal(t, 2, l.Keys())
}

func TestLimiter_EmptyKeySharesDefaultBucket(t *testing.T) {
	l := New(Config{})
	require.NoError(t, l.Wait(context.Background(), ""))
	require.NoError(t, l.Wait(context.Background(), ""))
	require.Equal(t, 1, l.Keys())
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Wait(ctx, "k"))
	cancel()
	err := l.Wait(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
