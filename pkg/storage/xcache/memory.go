package xcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// =============================================================================
// Memory 接口定义
// =============================================================================

// Memory 定义内存缓存存储。
//
// ristretto 使用异步写入机制，memoryStore.Set 在写入后调用 Wait()，
// 保证 Set 返回时条目已可见。通过 Client() 直接写入的数据仍需调用 Wait()。
type Memory interface {
	Store

	// Stats 返回缓存统计信息。
	Stats() MemoryStats

	// Client 返回底层的 ristretto.Cache。
	Client() *ristretto.Cache[string, []byte]

	// Wait 等待所有缓冲的写入完成。
	Wait()
}

// =============================================================================
// 统计信息
// =============================================================================

// MemoryStats 定义内存缓存的统计信息。
type MemoryStats struct {
	// Hits 缓存命中次数。
	Hits uint64

	// Misses 缓存未命中次数。
	Misses uint64

	// HitRatio 缓存命中率 (0.0 - 1.0)。
	HitRatio float64

	// KeysAdded 已添加的 key 数量。
	KeysAdded uint64

	// KeysEvicted 已淘汰的 key 数量。
	KeysEvicted uint64

	// CostAdded 已添加的总 cost。
	CostAdded uint64

	// CostEvicted 已淘汰的总 cost。
	CostEvicted uint64
}

// =============================================================================
// Memory 配置选项
// =============================================================================

// MemoryOptions 定义内存缓存的配置选项。
type MemoryOptions struct {
	// NumCounters 用于跟踪频率的计数器数量。
	// 建议设置为预期 key 数量的 10 倍。
	// 默认为 1e7 (10M)，约占用 80MB 内存用于频率统计。
	NumCounters int64

	// MaxCost 缓存的最大容量（字节）。
	// 最小值为 1MB (MinMemoryMaxCost)，过小的值会导致频繁淘汰。
	// 默认为 100MB。
	MaxCost int64

	// BufferItems 写入缓冲区的大小。
	// 默认为 64。
	BufferItems int64
}

const (
	// MinMemoryMaxCost 内存缓存最小容量（1MB）。
	// 过小的容量会导致频繁淘汰，影响缓存命中率。
	MinMemoryMaxCost = 1 * 1024 * 1024
)

// MemoryOption 定义配置内存缓存的函数类型。
type MemoryOption func(*MemoryOptions)

// defaultMemoryOptions 返回默认的内存缓存配置。
func defaultMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		NumCounters: 1e7,               // 10M counters
		MaxCost:     100 * 1024 * 1024, // 100MB
		BufferItems: 64,
	}
}

// WithMemoryNumCounters 设置计数器数量。
// 如果 n <= 0，将忽略此设置并使用默认值。
func WithMemoryNumCounters(n int64) MemoryOption {
	return func(o *MemoryOptions) {
		if n > 0 {
			o.NumCounters = n
		}
	}
}

// WithMemoryMaxCost 设置最大容量（字节）。
// 如果 cost <= 0，将忽略此设置并使用默认值。
// 如果 cost 小于 MinMemoryMaxCost (1MB)，将使用 MinMemoryMaxCost。
func WithMemoryMaxCost(cost int64) MemoryOption {
	return func(o *MemoryOptions) {
		if cost > 0 {
			if cost < MinMemoryMaxCost {
				cost = MinMemoryMaxCost
			}
			o.MaxCost = cost
		}
	}
}

// WithMemoryBufferItems 设置写入缓冲区大小。
// 如果 n <= 0，将忽略此设置并使用默认值。
func WithMemoryBufferItems(n int64) MemoryOption {
	return func(o *MemoryOptions) {
		if n > 0 {
			o.BufferItems = n
		}
	}
}

// =============================================================================
// Memory 实现
// =============================================================================

// 编译期接口检查
var _ Memory = (*memoryStore)(nil)

type memoryStore struct {
	cache  *ristretto.Cache[string, []byte]
	owned  bool // 是否由本实例创建，决定 Close 时是否关闭底层缓存
	closed atomic.Bool
}

func (m *memoryStore) Client() *ristretto.Cache[string, []byte] {
	return m.cache
}

func (m *memoryStore) Wait() {
	m.cache.Wait()
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	val, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return val, nil
}

func (m *memoryStore) GetWithTTL(_ context.Context, key string) ([]byte, time.Duration, error) {
	if m.closed.Load() {
		return nil, 0, ErrClosed
	}
	if key == "" {
		return nil, 0, ErrEmptyKey
	}
	val, ok := m.cache.Get(key)
	if !ok {
		return nil, 0, ErrCacheMiss
	}
	ttl, ok := m.remaining(key)
	if !ok {
		return nil, 0, ErrCacheMiss
	}
	return val, ttl, nil
}

// Set 写入条目，cost 按值长度计算。
// 写入被准入策略拒绝时返回 ErrSetRejected。
func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := validateSet(key, ttl); err != nil {
		return err
	}
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	if !m.cache.SetWithTTL(key, value, cost, ttl) {
		return ErrSetRejected
	}
	m.cache.Wait()
	return nil
}

func (m *memoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if key == "" {
		return 0, ErrEmptyKey
	}
	ttl, ok := m.remaining(key)
	if !ok {
		return 0, ErrCacheMiss
	}
	return ttl, nil
}

// remaining 返回剩余有效期。ristretto 对无过期条目返回 (0, true)。
func (m *memoryStore) remaining(key string) (time.Duration, bool) {
	ttl, ok := m.cache.GetTTL(key)
	if !ok {
		return 0, false
	}
	if ttl == 0 {
		return NoExpiration, true
	}
	if ttl < 0 {
		return 0, false
	}
	return ttl, true
}

func (m *memoryStore) Health(context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (m *memoryStore) Stats() MemoryStats {
	metrics := m.cache.Metrics
	if metrics == nil {
		return MemoryStats{}
	}
	return MemoryStats{
		Hits:        metrics.Hits(),
		Misses:      metrics.Misses(),
		HitRatio:    metrics.Ratio(),
		KeysAdded:   metrics.KeysAdded(),
		KeysEvicted: metrics.KeysEvicted(),
		CostAdded:   metrics.CostAdded(),
		CostEvicted: metrics.CostEvicted(),
	}
}

func (m *memoryStore) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if m.owned {
		m.cache.Close()
	}
	return nil
}
