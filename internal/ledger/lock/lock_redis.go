package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"las/pkg/platform/sentinel"
)

const (
	defaultKeyPrefix     = "las:lock:"
	defaultExpire        = 10 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
	defaultWaitTimeout   = 30 * time.Second
)

// Only the token holder may extend or delete a lock.
var (
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLocker is a lease lock shared by every process using the same Redis.
// A lease expires unless renewed, so a crashed holder never blocks a
// subject for longer than the expire interval.
type RedisLocker struct {
	client        *redis.Client
	prefix        string
	expire        time.Duration
	retryInterval time.Duration
	waitTimeout   time.Duration
	autoRenewal   bool
	logger        *slog.Logger
}

type RedisOption func(*RedisLocker)

func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

func WithExpire(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.expire = d
		}
	}
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// WithWaitTimeout bounds Acquire. Zero waits until ctx ends.
func WithWaitTimeout(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.waitTimeout = d
	}
}

func WithAutoRenewal(enabled bool) RedisOption {
	return func(l *RedisLocker) {
		l.autoRenewal = enabled
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		prefix:        defaultKeyPrefix,
		expire:        defaultExpire,
		retryInterval: defaultRetryInterval,
		waitTimeout:   defaultWaitTimeout,
		autoRenewal:   true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Acquire polls SET NX PX until the key is free.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, l.waitTimeout, ErrWaitTimeout)
		defer cancel()
	}

	redisKey := l.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.expire).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire lock %q: %w: %w", key, sentinel.ErrUnavailable, err)
		}
		if ok {
			return l.newLease(key, redisKey, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %q: %w", key, context.Cause(ctx))
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) newLease(key, redisKey, token string) *redisLease {
	lease := &redisLease{
		locker:   l,
		key:      key,
		redisKey: redisKey,
		token:    token,
		lost:     make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if l.autoRenewal {
		go lease.renew()
	} else {
		timer := time.AfterFunc(l.expire, lease.markLost)
		go func() {
			defer close(lease.done)
			<-lease.stop
			timer.Stop()
		}()
	}
	return lease
}

type redisLease struct {
	locker   *RedisLocker
	key      string
	redisKey string
	token    string

	lost     chan struct{}
	lostOnce sync.Once
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

func (r *redisLease) Key() string {
	return r.key
}

func (r *redisLease) Lost() <-chan struct{} {
	return r.lost
}

func (r *redisLease) markLost() {
	r.lostOnce.Do(func() { close(r.lost) })
}

// renew extends the lease every third of the expire interval. A refused
// extension, or no successful one for a whole interval, loses the lease.
func (r *redisLease) renew() {
	defer close(r.done)
	interval := r.locker.expire / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastRenewed := time.Now()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		extended, err := extendScript.Run(ctx, r.locker.client, []string{r.redisKey}, r.token, r.locker.expire.Milliseconds()).Int64()
		cancel()

		switch {
		case err == nil && extended == 1:
			lastRenewed = time.Now()
		case err == nil:
			r.locker.logger.Warn("lock lease taken over", "key", r.key)
			r.markLost()
			return
		default:
			r.locker.logger.Warn("lock renewal failed", "key", r.key, "error", err)
			if time.Since(lastRenewed) >= r.locker.expire {
				r.markLost()
				return
			}
		}
	}
}

// Release stops renewal and deletes the key if this lease still owns it.
func (r *redisLease) Release(ctx context.Context) error {
	r.releaseOnce.Do(func() {
		r.stopOnce.Do(func() { close(r.stop) })
		<-r.done

		deleted, err := releaseScript.Run(ctx, r.locker.client, []string{r.redisKey}, r.token).Int64()
		switch {
		case err != nil:
			r.releaseErr = fmt.Errorf("release lock %q: %w: %w", r.key, sentinel.ErrUnavailable, err)
		case deleted == 0:
			r.releaseErr = fmt.Errorf("release lock %q: %w", r.key, sentinel.ErrLockNotHeld)
		}
		if r.releaseErr != nil && !errors.Is(r.releaseErr, sentinel.ErrUnavailable) {
			r.markLost()
		}
	})
	return r.releaseErr
}
