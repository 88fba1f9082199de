package xcache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
)

// NoExpiration 表示条目存在但没有过期时间。
const NoExpiration time.Duration = -1

// Store 定义带逐条过期时间的缓存存储。
// 所有实现都是并发安全的。
type Store interface {
	// Get 读取条目。条目不存在或已过期时返回 ErrCacheMiss。
	Get(ctx context.Context, key string) ([]byte, error)

	// GetWithTTL 读取条目及其剩余有效期。
	// 条目没有过期时间时 ttl 为 NoExpiration。
	GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, err error)

	// Set 写入条目，ttl 到期后条目被后端清除。
	// ttl 必须为正，否则返回 ErrInvalidTTL。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// TTL 返回条目的剩余有效期。条目不存在时返回 ErrCacheMiss。
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Health 检查后端是否可用。
	Health(ctx context.Context) error

	// Close 关闭存储。重复关闭返回 ErrClosed。
	Close() error
}

// =============================================================================
// 工厂函数
// =============================================================================

// NewRedis 创建 Redis 缓存存储。
// client 必须是已初始化的 redis.UniversalClient，Close 时会一并关闭。
func NewRedis(client redis.UniversalClient) (Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &redisStore{client: client}, nil
}

// NewMemory 创建内存缓存存储。
func NewMemory(opts ...MemoryOption) (Memory, error) {
	options := defaultMemoryOptions()
	for _, opt := range opts {
		opt(options)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: options.NumCounters,
		MaxCost:     options.MaxCost,
		BufferItems: options.BufferItems,
		Metrics:     true, // 启用 Metrics 以支持 Stats() 方法
	})
	if err != nil {
		return nil, fmt.Errorf("xcache: create memory cache: %w", err)
	}

	return &memoryStore{
		cache: cache,
		owned: true,
	}, nil
}

// NewMemoryFromClient 从已有的 ristretto.Cache 创建内存缓存存储。
// 用于复用已有的 ristretto 实例，Close 时不会关闭该实例。
func NewMemoryFromClient(client *ristretto.Cache[string, []byte]) (Memory, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if client.Metrics == nil {
		return nil, ErrMetricsDisabled
	}
	return &memoryStore{
		cache: client,
		owned: false,
	}, nil
}

func validateSet(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
