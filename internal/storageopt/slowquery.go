package storageopt

import (
	"context"
	"sync/atomic"
	"time"
)

// SlowQueryHook 慢查询回调，在请求路径上同步执行，应保持轻量。
type SlowQueryHook[T any] func(ctx context.Context, info T)

// SlowQueryDetector 慢查询检测器。Threshold 为 0 时禁用。
type SlowQueryDetector[T any] struct {
	threshold time.Duration
	hook      SlowQueryHook[T]
	count     atomic.Int64
}

// NewSlowQueryDetector 创建慢查询检测器，hook 可为 nil（只计数）。
func NewSlowQueryDetector[T any](threshold time.Duration, hook SlowQueryHook[T]) *SlowQueryDetector[T] {
	return &SlowQueryDetector[T]{threshold: threshold, hook: hook}
}

// MaybeSlowQuery duration >= threshold 时计数并触发钩子，返回是否为慢查询。
func (d *SlowQueryDetector[T]) MaybeSlowQuery(ctx context.Context, info T, duration time.Duration) bool {
	if d == nil || d.threshold <= 0 || duration < d.threshold {
		return false
	}
	d.count.Add(1)
	if d.hook != nil {
		d.hook(ctx, info)
	}
	return true
}

// Count 返回慢查询次数
func (d *SlowQueryDetector[T]) Count() int64 {
	if d == nil {
		return 0
	}
	return d.count.Load()
}
