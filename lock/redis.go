/*
Package lock provides generic.Locker implementations beyond the in-process
mutex.

PURPOSE:
  Projections are recomputed from the full log, so two processes appending
  to the same ledger file must not interleave a read-check-write sequence.
  RedisLocker backs Ledger.WithLock with a single Redis key, so a quote and
  its fulfillment, or a cash check and its stock order, run as one unit
  across processes. The TTL must outlast the longest such sequence.

PROTOCOL:
  Lock:   SET key token NX PX ttl, retried every RetryInterval until
          WaitTimeout or ctx is done
  Unlock: Lua compare-and-delete, so a holder whose lease expired cannot
          release somebody else's lock

SEE ALSO:
  - generic/ledger.go: Locker interface, MutexLocker
*/
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/warp/paper-supply/generic"
	"go.uber.org/zap"
)

const (
	DefaultKey           = "paper-supply:ledger:append"
	DefaultTTL           = 10 * time.Second
	DefaultRetryInterval = 25 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client        *redis.Client
	key           string
	ttl           time.Duration
	waitTimeout   time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

type Option func(*RedisLocker)

func WithKey(key string) Option { return func(l *RedisLocker) { l.key = key } }

func WithTTL(ttl time.Duration) Option { return func(l *RedisLocker) { l.ttl = ttl } }

// WithWaitTimeout bounds how long Lock keeps retrying. Defaults to the TTL.
func WithWaitTimeout(d time.Duration) Option { return func(l *RedisLocker) { l.waitTimeout = d } }

func WithLogger(logger *zap.Logger) Option { return func(l *RedisLocker) { l.logger = logger } }

func NewRedisLocker(client *redis.Client, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		key:           DefaultKey,
		ttl:           DefaultTTL,
		retryInterval: DefaultRetryInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.waitTimeout <= 0 {
		l.waitTimeout = l.ttl
	}
	return l
}

// Lock implements generic.Locker.
func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.waitTimeout)

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		if ok {
			return l.unlockFunc(token), nil
		}
		if time.Now().After(deadline) {
			return nil, generic.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *RedisLocker) unlockFunc(token string) func() {
	return func() {
		// The caller's ctx may already be cancelled; the key must still go.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("redis unlock failed", zap.String("key", l.key), zap.Error(err))
		}
	}
}
