package xstampede

import (
	"context"
	"errors"
	"time"

	"github.com/omeyang/itemcache/pkg/distributed/xdlock"
	"github.com/omeyang/itemcache/pkg/observability/xlog"
)

// acquireResult 争锁结果。锁服务异常不是错误，而是一种降级结果。
type acquireResult int

const (
	lockAcquired acquireResult = iota
	lockContended
	lockUnavailable
)

// coordState 未命中时锁协调的状态。
//
//	stateAcquire ──获取成功──▶ stateHolding（二次检查 → 回源 → 写缓存 → 释放）
//	     │
//	     ├──被占用且允许轮询──▶ stateSpinning ──缓存被填充──▶ 返回
//	     │                          │
//	     │                          └──截止时间到──▶ stateFallback
//	     └──被占用或锁服务异常──▶ stateFallback（直接回源，不写缓存）
//
// 每次状态迁移前检查 ctx，取消时返回 ErrInterrupted。
type coordState int

const (
	stateAcquire coordState = iota
	stateHolding
	stateSpinning
	stateFallback
)

func (c *Controller[K, V]) coordinate(ctx context.Context, cacheKey string, key K, spin bool) (V, error) {
	var (
		zero     V
		state    = stateAcquire
		handle   xdlock.LockHandle
		deadline time.Time
	)

	for {
		if ctx.Err() != nil {
			return zero, interrupted(ctx)
		}

		switch state {
		case stateAcquire:
			h, res, err := c.acquire(ctx, cacheKey, c.policy.LockWait)
			if err != nil {
				return zero, err
			}
			switch {
			case res == lockAcquired:
				handle, state = h, stateHolding
			case res == lockContended && spin:
				// 截止时间从开始轮询算起，持锁者在租约内应完成回源
				deadline = c.opts.Now().Add(c.policy.LockLease)
				state = stateSpinning
			default:
				state = stateFallback
			}

		case stateHolding:
			return c.loadHolding(ctx, cacheKey, key, handle)

		case stateSpinning:
			if e, found, err := c.read(ctx, cacheKey); err == nil && found {
				c.hit(ctx, cacheKey)
				return e.Value, nil
			}
			now := c.opts.Now()
			if !now.Before(deadline) {
				state = stateFallback
				continue
			}
			c.stats.spinWaits.Add(1)
			if err := sleepContext(ctx, min(c.policy.SpinInterval, deadline.Sub(now))); err != nil {
				return zero, err
			}

		case stateFallback:
			c.stats.fallbacks.Add(1)
			c.logger.Warn(ctx, "lock not acquired, loading directly without caching", xlog.CacheKey(cacheKey))
			return c.invoke(ctx, key)
		}
	}
}

// acquire 争锁。只有 ctx 取消时返回错误，锁服务异常降级为 lockUnavailable。
func (c *Controller[K, V]) acquire(ctx context.Context, cacheKey string, wait time.Duration) (xdlock.LockHandle, acquireResult, error) {
	h, err := c.locker.TryAcquire(ctx, cacheKey, wait, c.policy.LockLease)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, lockUnavailable, interrupted(ctx)
	case err != nil:
		c.logger.Warn(ctx, "lock unavailable", xlog.CacheKey(cacheKey), xlog.Err(err))
		return nil, lockUnavailable, nil
	case h == nil:
		c.stats.lockContended.Add(1)
		c.logger.Debug(ctx, "lock contended", xlog.CacheKey(cacheKey))
		return nil, lockContended, nil
	default:
		c.stats.lockAcquired.Add(1)
		return h, lockAcquired, nil
	}
}

// loadHolding 持锁回源。返回前总是释放锁。
func (c *Controller[K, V]) loadHolding(ctx context.Context, cacheKey string, key K, h xdlock.LockHandle) (V, error) {
	defer c.release(ctx, h)

	// 等锁期间上一个持有者可能已完成刷新
	if e, found, err := c.read(ctx, cacheKey); err == nil && found && e.fresh(c.opts.Now()) {
		c.hit(ctx, cacheKey)
		return e.Value, nil
	}
	return c.loadAndStore(ctx, cacheKey, key)
}

// release 使用脱离调用方取消的 context 释放锁，失败只记录日志。
func (c *Controller[K, V]) release(ctx context.Context, h xdlock.LockHandle) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ReleaseTimeout)
	defer cancel()

	err := h.Release(releaseCtx)
	switch {
	case err == nil:
	case errors.Is(err, xdlock.ErrNotLocked):
		c.logger.Info(ctx, "lock expired before release", xlog.Lock(h.Key()))
	default:
		c.logger.Warn(ctx, "release lock failed", xlog.Lock(h.Key()), xlog.Err(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return interrupted(ctx)
	case <-timer.C:
		return nil
	}
}
