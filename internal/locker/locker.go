// Package locker serializes attendance attempts for the same employee,
// kind and day.
package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"attendance-guard/internal/models"
)

// Locker acquires a named lock. The returned release func must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Key builds the lock key of one attempt slot
func Key(employeeID string, kind models.AttendanceKind, date string) string {
	return fmt.Sprintf("attendance:%s:%s:%s", employeeID, kind, date)
}

// ------------------------------------------------------------------------------

// MemoryLocker is a process-local keyed mutex
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("%w: %s", models.ErrAttemptInProgress, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *MemoryLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// ------------------------------------------------------------------------------

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds locks as expiring redis keys so that every instance
// of the service shares them
type RedisLocker struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	retry     time.Duration
}

func NewRedisLocker(client *redis.Client, namespace string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, namespace: namespace, ttl: ttl, retry: 50 * time.Millisecond}
}

// Lock polls until the key is free or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := fmt.Sprintf("%s:lock:%s", l.namespace, key)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", models.ErrAttemptInProgress, key)
		case <-time.After(l.retry):
		}
	}

	return func() {
		// released with a fresh context so a cancelled request still frees the key
		releaseScript.Run(context.Background(), l.client, []string{k}, token)
	}, nil
}
