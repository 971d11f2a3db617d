package tryon

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"server/internal/domain"
)

// Locker enforces the one-in-flight-job-per-user rule.
type Locker interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// RedisLocker coordinates across instances with a SETNX lease. The TTL is a
// crash backstop; the normal path releases explicitly.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
}

func (l *RedisLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	key := "tryon:inflight:" + userID
	ok, err := l.Client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrJobInFlight
	}
	return func() {
		// Release runs after the request context may be gone.
		_ = l.Client.Del(context.Background(), key).Err()
	}, nil
}

// MemoryLocker is the process-local fallback used when redis is not
// configured.
type MemoryLocker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{inFlight: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[userID]; busy {
		return nil, domain.ErrJobInFlight
	}
	l.inFlight[userID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.inFlight, userID)
			l.mu.Unlock()
		})
	}, nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*MemoryLocker)(nil)
)
