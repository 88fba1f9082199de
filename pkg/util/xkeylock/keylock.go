package xkeylock

import (
	"context"
	"io"
)

// Handle 表示一次成功的锁获取。
type Handle interface {
	// Unlock 释放锁。
	// 幂等：第一次调用返回 nil，后续调用返回 [ErrLockNotHeld]。
	// 可以从任意 goroutine 调用，用于租约到期的自动释放。
	Unlock() error

	// Key 返回锁的 key。Unlock 之后仍返回原始 key。
	Key() string
}

// Locker 提供基于 key 的进程内互斥锁。
// 所有方法都是并发安全的。
type Locker interface {
	io.Closer

	// Acquire 阻塞式获取锁，直到成功、ctx 结束或 Locker 关闭。
	// ctx 结束时返回 ctx.Err()，Locker 关闭时返回 [ErrClosed]。
	// 两者同时发生时返回哪一个不确定，调用方应同时处理。
	//
	// 锁不可重入，与 sync.Mutex 一致。
	Acquire(ctx context.Context, key string) (Handle, error)

	// TryAcquire 非阻塞获取锁。
	// 锁被占用时返回 (nil, nil)。
	TryAcquire(key string) (Handle, error)

	// Len 返回当前活跃的 key 数量（持有者与等待者），瞬时快照。
	Len() int
}

// New 创建一个新的 Locker 实例。
// 分片数无效时返回 [ErrInvalidShardCount]。
func New(opts ...Option) (Locker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return newKeyLockImpl(&o), nil
}
