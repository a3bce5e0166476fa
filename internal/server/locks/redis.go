package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix    = "trainingpay:lock:"
	defaultTTL          = 10 * time.Second
	defaultRetryBackoff = 25 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the lock only if it is still held by the caller's
// token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every server instance using the same
// Redis. Locks expire after the TTL so a crashed holder cannot block others
// forever.
type RedisLocker struct {
	client  *redis.Client
	logger  logging.Logger
	prefix  string
	ttl     time.Duration
	backoff time.Duration
}

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

func WithRetryBackoff(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.backoff = d }
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

func NewRedisLocker(client *redis.Client, logger logging.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:  client,
		logger:  logger,
		prefix:  defaultKeyPrefix,
		ttl:     defaultTTL,
		backoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			err := releaseScript.Run(ctx, l.client, []string{name}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn(ctx, "redis unlock failed", "key", key, "error", err)
			}
		})
	}, nil
}
