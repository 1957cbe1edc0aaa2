package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
// Keep it config-driven; defaults should be safe and conservative.
type RedisConfig struct {
	Addr string

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 4
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var lineAcquireScript = redis.NewScript(`
-- KEYS[1] = line key
-- ARGV[1] = holder (instance|call id)
-- ARGV[2] = ttl_ms (int)
-- ARGV[3] = instance prefix (instance|)
--
-- Returns:
--  1 if acquired, already held by holder, or held by an earlier call of this instance
--  0 if held by another instance
local holder = redis.call('GET', KEYS[1])
if (not holder) or string.sub(holder, 1, string.len(ARGV[3])) == ARGV[3] then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
if holder == ARGV[1] then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

var lineRefreshScript = redis.NewScript(`
-- KEYS[1] = line key
-- ARGV[1] = holder
-- ARGV[2] = ttl_ms (int)
-- Extends the TTL only while holder still owns the line.
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

var lineReleaseScript = redis.NewScript(`
-- KEYS[1] = line key
-- ARGV[1] = holder
-- Deletes only when held by holder.
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

var lineReclaimScript = redis.NewScript(`
-- KEYS[1] = line key
-- ARGV[1] = instance prefix (instance|)
-- Deletes a hold left behind by an earlier run of this instance.
local holder = redis.call('GET', KEYS[1])
if holder and string.sub(holder, 1, string.len(ARGV[1])) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// LineLock marks an agent line as busy across console instances, so two consoles
// logged into the same line never both take a call.
//
// Safety properties:
// - Atomic check-and-set using Lua.
// - The stored holder is "<instance>|<call id>"; an instance may always replace its own
//   earlier hold, and Reclaim drops one left by a crashed run.
// - The TTL is short and must be kept alive with Refresh while the call lasts.
type LineLock struct {
	rdb      *redis.Client
	key      string
	instance string
	ttl      time.Duration
}

const DefaultLineTTL = 30 * time.Second

func LineKey(agentNumber string) string { return "console:line:" + agentNumber }

func NewLineLock(rdb *redis.Client, agentNumber, instance string, ttl time.Duration) *LineLock {
	if ttl <= 0 {
		ttl = DefaultLineTTL
	}
	return &LineLock{rdb: rdb, key: LineKey(agentNumber), instance: instance, ttl: ttl}
}

// TTL is how long a hold survives without Refresh.
func (l *LineLock) TTL() time.Duration { return l.ttl }

func (l *LineLock) prefix() string { return l.instance + "|" }

func (l *LineLock) holder(owner string) string { return l.prefix() + owner }

func (l *LineLock) check(owner string) error {
	if l == nil || l.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if owner == "" {
		return fmt.Errorf("owner is required")
	}
	return nil
}

// Acquire takes the line for owner. Re-acquiring an owned line refreshes its TTL.
func (l *LineLock) Acquire(ctx context.Context, owner string) (bool, error) {
	if err := l.check(owner); err != nil {
		return false, err
	}
	res, err := lineAcquireScript.Run(ctx, l.rdb, []string{l.key}, l.holder(owner), l.ttl.Milliseconds(), l.prefix()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Refresh extends owner's hold. It reports false when the hold was lost.
func (l *LineLock) Refresh(ctx context.Context, owner string) (bool, error) {
	if err := l.check(owner); err != nil {
		return false, err
	}
	res, err := lineRefreshScript.Run(ctx, l.rdb, []string{l.key}, l.holder(owner), l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (l *LineLock) Release(ctx context.Context, owner string) error {
	if err := l.check(owner); err != nil {
		return err
	}
	_, err := lineReleaseScript.Run(ctx, l.rdb, []string{l.key}, l.holder(owner)).Result()
	return err
}

// Reclaim frees a hold this instance left behind before a restart.
func (l *LineLock) Reclaim(ctx context.Context) (bool, error) {
	if l == nil || l.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	res, err := lineReclaimScript.Run(ctx, l.rdb, []string{l.key}, l.prefix()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
