// Package lock serialises runs per business area across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when another run holds the business area.
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when the lock expired or was taken over.
	ErrLockNotHeld = errors.New("lock not held")
)

// Locker hands out exclusive leases on business areas.
type Locker interface {
	Acquire(ctx context.Context, businessAreaID string) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	// KeyPrefix is prepended to the business area id.
	KeyPrefix string
	TTL       time.Duration
}

var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// RedisLocker takes leases with SET NX and releases them only when still owned.
type RedisLocker struct {
	rdb       redis.UniversalClient
	logger    ectologger.Logger
	keyPrefix string
	ttl       time.Duration
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, cfg Config, logger ectologger.Logger) (*RedisLocker, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logger.Infof("Connected to Redis at %s", addr)
	return NewRedisLocker(rdb, cfg, logger), nil
}

func NewRedisLocker(rdb redis.UniversalClient, cfg Config, logger ectologger.Logger) *RedisLocker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lock:hope-sync:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	return &RedisLocker{rdb: rdb, logger: logger, keyPrefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

func (l *RedisLocker) Acquire(ctx context.Context, businessAreaID string) (Lease, error) {
	key := l.keyPrefix + businessAreaID
	owner := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	l.logger.WithContext(ctx).Debugf("Acquired lock: %s", key)
	return &redisLease{locker: l, key: key, owner: owner}, nil
}

func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}

type redisLease struct {
	locker *RedisLocker
	key    string
	owner  string
}

func (lease *redisLease) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lease.locker.rdb, []string{lease.key}, lease.owner).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	lease.locker.logger.WithContext(ctx).Debugf("Released lock: %s", lease.key)
	return nil
}

func (lease *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, lease.locker.rdb, []string{lease.key}, lease.owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Noop grants every lease. Used when Redis is disabled and runs are
// serialised by deployment.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Lease, error) {
	return noopLease{}, nil
}

type noopLease struct{}

func (noopLease) Release(context.Context) error              { return nil }
func (noopLease) Extend(context.Context, time.Duration) error { return nil }
