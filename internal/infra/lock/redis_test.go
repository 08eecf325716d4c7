package lock

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeepAliveExtendsUntilStopped(t *testing.T) {
	var calls int32
	stop := make(chan struct{})
	done := keepAlive(stop, 5*time.Millisecond, func() (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, time.Second, time.Millisecond)

	close(stop)
	<-done
	after := atomic.LoadInt32(&calls)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, after, atomic.LoadInt32(&calls))
}

func TestKeepAliveSurvivesErrorsAndStopsWhenOwnershipLost(t *testing.T) {
	var calls int32
	done := keepAlive(make(chan struct{}), time.Millisecond, func() (bool, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return true, errors.New("redis: connection reset")
		}
		return false, nil
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("renewal did not stop after the key was lost")
	}
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNewRedisLockerDefaults(t *testing.T) {
	l := NewRedisLocker(nil, "launch:lock:", 0, 0)
	require.Equal(t, DefaultTTL, l.ttl)
	require.Equal(t, DefaultTTL, l.wait)
	require.Greater(t, l.ttl/3, 10*time.Second)
}
