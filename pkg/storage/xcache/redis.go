package xcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis 接口定义
// =============================================================================

// Redis 定义 Redis 缓存存储。
// 在 Store 之外暴露底层客户端，供限流、分布式锁等组件复用同一连接池。
type Redis interface {
	Store

	// Client 返回底层的 redis.UniversalClient。
	Client() redis.UniversalClient
}

// =============================================================================
// Redis 实现
// =============================================================================

// 编译期接口检查
var _ Redis = (*redisStore)(nil)

type redisStore struct {
	client redis.UniversalClient
	closed atomic.Bool
}

func (c *redisStore) Client() redis.UniversalClient {
	return c.client
}

func (c *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("xcache: redis get %q: %w", key, err)
	}
	return val, nil
}

// GetWithTTL 通过 pipeline 在一次往返中执行 GET 与 PTTL。
// 两条命令之间条目可能恰好过期，此时以 GET 结果为准。
func (c *redisStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if c.closed.Load() {
		return nil, 0, ErrClosed
	}
	if key == "" {
		return nil, 0, ErrEmptyKey
	}

	pipe := c.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	// Exec 在任一命令返回 redis.Nil 时也会返回 redis.Nil，逐条判断
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("xcache: redis get with ttl %q: %w", key, err)
	}

	val, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrCacheMiss
	}
	if err != nil {
		return nil, 0, fmt.Errorf("xcache: redis get %q: %w", key, err)
	}

	ttl, err := ttlCmd.Result()
	if err != nil {
		return nil, 0, fmt.Errorf("xcache: redis pttl %q: %w", key, err)
	}
	ttl, ok := normalizeRedisTTL(ttl)
	if !ok {
		return nil, 0, ErrCacheMiss
	}
	return val, ttl, nil
}

func (c *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("xcache: redis set %q: %w", key, err)
	}
	return nil
}

func (c *redisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if key == "" {
		return 0, ErrEmptyKey
	}
	ttl, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("xcache: redis pttl %q: %w", key, err)
	}
	ttl, ok := normalizeRedisTTL(ttl)
	if !ok {
		return 0, ErrCacheMiss
	}
	return ttl, nil
}

func (c *redisStore) Health(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisStore) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return c.client.Close()
}

// normalizeRedisTTL 将 PTTL 的特殊返回值转换为 xcache 语义。
// go-redis 对 -2（不存在）和 -1（无过期）保留原始数值而非毫秒换算。
func normalizeRedisTTL(ttl time.Duration) (time.Duration, bool) {
	switch {
	case ttl == -2 || ttl == -2*time.Millisecond:
		return 0, false
	case ttl == -1 || ttl == -1*time.Millisecond:
		return NoExpiration, true
	case ttl <= 0:
		// PTTL 在过期瞬间可能返回 0
		return 0, false
	default:
		return ttl, true
	}
}
