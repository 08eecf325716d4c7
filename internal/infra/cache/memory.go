package cache

import (
	"context"
	"sync"
	"time"
)

// Memory — вариант для одного процесса.
type Memory struct {
	mu     sync.Mutex
	claims map[string]time.Time
	times  map[string]time.Time
	now    func() time.Time
}

// NewMemory создаёт кэш в памяти.
func NewMemory() *Memory {
	return &Memory{claims: make(map[string]time.Time), times: make(map[string]time.Time), now: time.Now}
}

// Once реализует ту же семантику, что и Redis.Once.
func (m *Memory) Once(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	m.mu.Lock()
	if until, ok := m.claims[key]; ok && m.now().Before(until) {
		m.mu.Unlock()
		return false, nil
	}
	m.claims[key] = m.now().Add(ttl)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		delete(m.claims, key)
		m.mu.Unlock()
		return true, err
	}
	return true, nil
}

// SetTime сохраняет отметку времени.
func (m *Memory) SetTime(_ context.Context, key string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.times[key] = t
	return nil
}

// GetTime возвращает отметку времени или нулевое время.
func (m *Memory) GetTime(_ context.Context, key string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.times[key], nil
}
