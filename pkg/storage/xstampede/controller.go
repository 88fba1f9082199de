package xstampede

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/omeyang/itemcache/pkg/distributed/xdlock"
	"github.com/omeyang/itemcache/pkg/observability/xlog"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
	"github.com/omeyang/itemcache/pkg/storage/xcache"
)

// Loader 回源函数，按 key 同步加载值。
//
// 必须并发安全且幂等。key 不存在时返回包装了 ErrNotFound 的错误。
// ctx 携带 LoadTimeout 截止时间。
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Controller 抗击穿回源缓存控制器。
// 除 Store 与 Locker 客户端外不持有进程内共享的可变状态（计数器除外），
// 可被任意数量的 goroutine 并发使用。
type Controller[K comparable, V any] struct {
	store  xcache.Store
	locker xdlock.Locker
	load   Loader[K, V]
	policy Policy
	opts   *options
	logger xlog.Logger
	stats  counters
}

// New 创建 Controller。
// ModeCacheAside 与 ModeProbabilistic 不加锁，locker 可为 nil。
func New[K comparable, V any](store xcache.Store, locker xdlock.Locker, load Loader[K, V], policy Policy, opts ...Option) (*Controller[K, V], error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if load == nil {
		return nil, ErrNilLoader
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.usesLock() && locker == nil {
		return nil, ErrNilLocker
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	logger := o.Logger
	if logger == nil {
		logger = xlog.Default()
	}

	return &Controller[K, V]{
		store:  store,
		locker: locker,
		load:   load,
		policy: policy,
		opts:   o,
		logger: logger.With(xlog.Component("xstampede"), xlog.Policy(policy.Mode.String())),
	}, nil
}

// Policy 返回 Controller 的策略。
func (c *Controller[K, V]) Policy() Policy {
	return c.policy
}

// Stats 返回计数器快照。
func (c *Controller[K, V]) Stats() Stats {
	return c.stats.snapshot()
}

// Get 返回 key 对应的值。
//
// 错误满足 errors.Is 匹配 ErrNotFound、ErrUnavailable 或 ErrInterrupted 之一。
func (c *Controller[K, V]) Get(ctx context.Context, key K) (value V, err error) {
	ctx, span := xmetrics.Start(ctx, c.opts.Observer, xmetrics.SpanOptions{
		Component: "xstampede",
		Operation: "get",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("policy", c.policy.Mode.String())},
	})
	defer func() {
		result := xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.String("outcome", outcome(err))}}
		if errors.Is(err, ErrNotFound) {
			result.Status = xmetrics.StatusOK
		}
		span.End(result)
	}()

	if ctx.Err() != nil {
		return value, interrupted(ctx)
	}

	cacheKey := c.cacheKey(key)
	switch c.policy.Mode {
	case ModeCacheAside:
		return c.getCacheAside(ctx, cacheKey, key)
	case ModeLockWait:
		return c.getLocked(ctx, cacheKey, key, false)
	case ModeLockSpin:
		return c.getLocked(ctx, cacheKey, key, true)
	case ModeLogicalTTL:
		return c.getLogical(ctx, cacheKey, key)
	default:
		return c.getProbabilistic(ctx, cacheKey, key)
	}
}

func (c *Controller[K, V]) cacheKey(key K) string {
	return c.opts.KeyPrefix + ":" + fmt.Sprint(key)
}

// =============================================================================
// 策略
// =============================================================================

func (c *Controller[K, V]) getCacheAside(ctx context.Context, cacheKey string, key K) (V, error) {
	e, found, err := c.read(ctx, cacheKey)
	if err != nil {
		return c.degrade(ctx, cacheKey, key, err)
	}
	if found {
		c.hit(ctx, cacheKey)
		return e.Value, nil
	}
	c.miss(ctx, cacheKey)
	return c.loadAndStore(ctx, cacheKey, key)
}

func (c *Controller[K, V]) getLocked(ctx context.Context, cacheKey string, key K, spin bool) (V, error) {
	e, found, err := c.read(ctx, cacheKey)
	if err != nil {
		return c.degrade(ctx, cacheKey, key, err)
	}
	if found {
		c.hit(ctx, cacheKey)
		return e.Value, nil
	}
	c.miss(ctx, cacheKey)
	return c.coordinate(ctx, cacheKey, key, spin)
}

// getLogical 逻辑过期后只有抢到锁的调用方刷新，其余调用方立即返回旧值。
func (c *Controller[K, V]) getLogical(ctx context.Context, cacheKey string, key K) (V, error) {
	e, found, err := c.read(ctx, cacheKey)
	if err != nil {
		return c.degrade(ctx, cacheKey, key, err)
	}
	if !found {
		c.miss(ctx, cacheKey)
		return c.coordinate(ctx, cacheKey, key, false)
	}
	if e.fresh(c.opts.Now()) {
		c.hit(ctx, cacheKey)
		return e.Value, nil
	}

	c.stats.staleHits.Add(1)
	handle, res, err := c.acquire(ctx, cacheKey, 0)
	if err != nil {
		var zero V
		return zero, err
	}
	if res != lockAcquired {
		c.logger.Debug(ctx, "serve stale entry", xlog.CacheKey(cacheKey))
		return e.Value, nil
	}
	// 刷新失败不影响旧条目，它在物理过期前仍可被其他调用方读取
	return c.loadHolding(ctx, cacheKey, key, handle)
}

// getProbabilistic 不加锁，按条目年龄以概率提前同步刷新。
func (c *Controller[K, V]) getProbabilistic(ctx context.Context, cacheKey string, key K) (V, error) {
	data, remaining, err := c.store.GetWithTTL(ctx, cacheKey)
	switch {
	case errors.Is(err, xcache.ErrCacheMiss):
		c.miss(ctx, cacheKey)
		return c.loadAndStore(ctx, cacheKey, key)
	case err != nil:
		return c.degrade(ctx, cacheKey, key, err)
	}

	e, err := decodeEntry[V](data)
	if err != nil {
		c.logger.Warn(ctx, "discard corrupt cache entry", xlog.CacheKey(cacheKey), xlog.Err(err))
		c.miss(ctx, cacheKey)
		return c.loadAndStore(ctx, cacheKey, key)
	}

	age := entryAge(c.policy.PhysicalTTL, remaining)
	p := RefreshProbability(age, c.policy.SoftTTL, c.policy.PhysicalTTL, c.policy.Alpha)
	if p > 0 && c.opts.Rand() < p {
		c.stats.earlyRefreshes.Add(1)
		c.logger.Debug(ctx, "early refresh",
			xlog.CacheKey(cacheKey), xlog.Duration(age), slog.Float64("probability", p))
		return c.loadAndStore(ctx, cacheKey, key)
	}

	c.hit(ctx, cacheKey)
	return e.Value, nil
}

// =============================================================================
// 缓存读写与回源
// =============================================================================

// read 读取并解码条目。条目损坏时视为未命中。
func (c *Controller[K, V]) read(ctx context.Context, cacheKey string) (entry[V], bool, error) {
	data, err := c.store.Get(ctx, cacheKey)
	if errors.Is(err, xcache.ErrCacheMiss) {
		return entry[V]{}, false, nil
	}
	if err != nil {
		return entry[V]{}, false, err
	}
	e, err := decodeEntry[V](data)
	if err != nil {
		c.logger.Warn(ctx, "discard corrupt cache entry", xlog.CacheKey(cacheKey), xlog.Err(err))
		return entry[V]{}, false, nil
	}
	return e, true, nil
}

// write 整体替换条目。写入失败只记录日志，不影响本次读取结果。
func (c *Controller[K, V]) write(ctx context.Context, cacheKey string, v V) {
	e := entry[V]{Value: v}
	if c.policy.Mode == ModeLogicalTTL {
		e.LogicalExpireAt = c.opts.Now().Add(c.policy.LogicalTTL).UnixMilli()
	}
	data, err := encodeEntry(e)
	if err != nil {
		c.logger.Warn(ctx, "encode cache entry failed", xlog.CacheKey(cacheKey), xlog.Err(err))
		return
	}
	if err := c.store.Set(ctx, cacheKey, data, c.policy.PhysicalTTL); err != nil {
		c.logger.Warn(ctx, "cache write failed", xlog.CacheKey(cacheKey), xlog.Err(err))
	}
}

// invoke 调用 Loader，不写缓存。
func (c *Controller[K, V]) invoke(ctx context.Context, key K) (V, error) {
	loadCtx := ctx
	if c.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, c.opts.LoadTimeout)
		defer cancel()
	}

	c.stats.loads.Add(1)
	v, err := c.load(loadCtx, key)
	if err != nil {
		err = classifyLoadError(ctx, err)
		if !errors.Is(err, ErrNotFound) {
			c.stats.loadErrors.Add(1)
		}
		var zero V
		return zero, err
	}
	return v, nil
}

// loadAndStore 回源并写缓存。NotFound 与失败结果都不写入。
func (c *Controller[K, V]) loadAndStore(ctx context.Context, cacheKey string, key K) (V, error) {
	v, err := c.invoke(ctx, key)
	if err != nil {
		return v, err
	}
	c.write(ctx, cacheKey, v)
	return v, nil
}

// degrade 缓存读取失败时直接回源，不写缓存。
func (c *Controller[K, V]) degrade(ctx context.Context, cacheKey string, key K, err error) (V, error) {
	if ctx.Err() != nil {
		var zero V
		return zero, interrupted(ctx)
	}
	c.stats.fallbacks.Add(1)
	c.logger.Warn(ctx, "cache read failed, loading directly", xlog.CacheKey(cacheKey), xlog.Err(err))
	return c.invoke(ctx, key)
}

func (c *Controller[K, V]) hit(ctx context.Context, cacheKey string) {
	c.stats.hits.Add(1)
	c.logger.Debug(ctx, "cache hit", xlog.CacheKey(cacheKey))
}

func (c *Controller[K, V]) miss(ctx context.Context, cacheKey string) {
	c.stats.misses.Add(1)
	c.logger.Debug(ctx, "cache miss", xlog.CacheKey(cacheKey))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInterrupted):
		return "interrupted"
	default:
		return "unavailable"
	}
}
