package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trend-launch/internal/domain"
)

// MemoryLocker — блокировка по ключу внутри одного процесса.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

var _ domain.Locker = (*MemoryLocker)(nil)

// NewMemoryLocker создаёт блокировку. wait ограничивает ожидание занятого ключа; 0 — ждать до отмены ctx.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]chan struct{}), wait: wait}
}

// Acquire реализует domain.Locker.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.locks[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.locks[key] = slot
	}
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}
	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: lock %s: %v", domain.ErrConcurrencyConflict, key, ctx.Err())
	}
}
