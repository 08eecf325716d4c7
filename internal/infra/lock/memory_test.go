package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trend-launch/internal/domain"
)

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	locker := NewMemoryLocker(0)
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "launch:1")
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
}

func TestMemoryLockerTimesOutWithConflict(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(context.Background(), "k")
	require.True(t, errors.Is(err, domain.ErrConcurrencyConflict), "ожидали конфликт, получили %v", err)

	other, err := locker.Acquire(context.Background(), "other")
	require.NoError(t, err)
	other()
}

func TestMemoryLockerReleaseIsIdempotent(t *testing.T) {
	locker := NewMemoryLocker(20 * time.Millisecond)
	release, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	release()

	again, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
}
