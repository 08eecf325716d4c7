package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryOnce(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) error { calls++; return nil }

	ran, err := c.Once(ctx, "k", time.Hour, fn)
	require.NoError(t, err)
	require.True(t, ran)
	ran, err = c.Once(ctx, "k", time.Hour, fn)
	require.NoError(t, err)
	require.False(t, ran)
	require.Equal(t, 1, calls)
}

func TestMemoryOnceReleasesOnError(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	ran, err := c.Once(ctx, "k", time.Hour, func(context.Context) error { return boom })
	require.True(t, ran)
	require.ErrorIs(t, err, boom)

	ran, err = c.Once(ctx, "k", time.Hour, func(context.Context) error { return nil })
	require.NoError(t, err)
	require.True(t, ran)
}

func TestMemoryOnceExpires(t *testing.T) {
	c := NewMemory()
	now := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	noop := func(context.Context) error { return nil }

	ran, _ := c.Once(context.Background(), "k", time.Minute, noop)
	require.True(t, ran)
	now = now.Add(2 * time.Minute)
	ran, _ = c.Once(context.Background(), "k", time.Minute, noop)
	require.True(t, ran)
}

func TestMemoryTimes(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	got, err := c.GetTime(ctx, "cursor")
	require.NoError(t, err)
	require.True(t, got.IsZero())

	at := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, c.SetTime(ctx, "cursor", at))
	got, err = c.GetTime(ctx, "cursor")
	require.NoError(t, err)
	require.Equal(t, at, got)
}
