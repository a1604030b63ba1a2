package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"PageWatcher/internal/ports"
)

const (
	defaultLeaseTTL   = 30 * time.Second
	defaultRetryDelay = 100 * time.Millisecond
	releaseTimeout    = 5 * time.Second
	keyPrefix         = "pagewatcher:lock:"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var refreshScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// RedisLease holds a per-key lease in Redis so that several processes
// sharing one registry never check the same resource at once.
type RedisLease struct {
	client       redis.UniversalClient
	ttl          time.Duration
	refreshEvery time.Duration
	retryDelay   time.Duration
	log          *slog.Logger
}

var _ ports.Locker = (*RedisLease)(nil)

// NewRedisLease builds a lease locker. ttl bounds how long a crashed holder
// can block the key; a live holder extends the lease every ttl/3.
func NewRedisLease(client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *RedisLease {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisLease{
		client:       client,
		ttl:          ttl,
		refreshEvery: ttl / 3,
		retryDelay:   defaultRetryDelay,
		log:          log,
	}
}

// Acquire retries SET NX until it succeeds or ctx is done.
func (r *RedisLease) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lease %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go r.keepAlive(redisKey, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped

			relCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			n, err := releaseScript.Run(relCtx, r.client, []string{redisKey}, token).Int()
			if err != nil {
				r.log.Warn("Failed to release lease", "key", key, "error", err)
				return
			}
			if n == 0 {
				r.log.Warn("Lease expired before release", "key", key)
			}
		})
	}, nil
}

// keepAlive extends the lease while the holder works, until stop is closed.
func (r *RedisLease) keepAlive(redisKey, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(r.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		n, err := refreshScript.Run(ctx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			r.log.Warn("Failed to refresh lease", "key", redisKey, "error", err)
		case n == 0:
			r.log.Warn("Lease lost before refresh", "key", redisKey)
			return
		}
	}
}
