package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trend-launch/internal/domain"
	"trend-launch/internal/infra/metrics"
)

const retryDelay = 50 * time.Millisecond

// DefaultTTL — время жизни ключа, если владелец перестал его продлевать.
const DefaultTTL = time.Minute

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// extendScript продлевает ключ, только если он всё ещё принадлежит владельцу.
var extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker — распределённая блокировка на SET NX PX.
// Пока блокировка удерживается, ключ продлевается каждые ttl/3.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

var _ domain.Locker = (*RedisLocker)(nil)

// NewRedisLocker создаёт блокировку. ttl страхует от упавших владельцев, wait ограничивает ожидание.
func NewRedisLocker(client *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if wait <= 0 {
		wait = ttl
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, wait: wait}
}

// Acquire реализует domain.Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		start := time.Now()
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		metrics.ObserveNetworkRequest("redis", "lock_acquire", l.prefix, start, err)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			stop := make(chan struct{})
			done := keepAlive(stop, l.ttl/3, func() (bool, error) {
				return l.extend(fullKey, token)
			})
			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: lock %s is held", domain.ErrConcurrencyConflict, key)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: lock %s: %v", domain.ErrConcurrencyConflict, key, ctx.Err())
		case <-time.After(retryDelay):
		}
	}
}

func (l *RedisLocker) extend(fullKey, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
	defer cancel()
	start := time.Now()
	n, err := extendScript.Run(ctx, l.client, []string{fullKey}, token, l.ttl.Milliseconds()).Int()
	metrics.ObserveNetworkRequest("redis", "lock_extend", l.prefix, start, err)
	if err != nil {
		return true, err
	}
	return n == 1, nil
}

// keepAlive вызывает extend каждые interval, пока не закрыт stop.
// Цикл завершается сам, если extend сообщил, что ключ больше не наш.
// Ошибки сети не прерывают продление: следующая попытка может успеть до истечения ttl.
func keepAlive(stop <-chan struct{}, interval time.Duration, extend func() (bool, error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if owned, _ := extend(); !owned {
					return
				}
			}
		}
	}()
	return done
}
