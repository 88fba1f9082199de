package xdlock

import (
	"context"
	"strings"
	"time"
)

// LockHandle 表示一次成功的锁获取。
//
// 每次获取生成唯一标识，只有持有该 handle 才能释放对应的锁，
// 不同获取之间不会互相干扰。
type LockHandle interface {
	// Release 释放锁。
	// 锁已因租约到期失效时返回 [ErrNotLocked]，重复释放同样返回 [ErrNotLocked]。
	// 调用方通常应传入脱离请求取消的 ctx，避免请求结束后锁残留到租约到期。
	Release(ctx context.Context) error

	// Key 返回完整的锁 key（含前缀）。
	Key() string
}

// Locker 定义带等待窗口与租约的互斥锁。
type Locker interface {
	// TryAcquire 在 wait 时间内尝试获取 name 对应的锁。
	//
	// 返回：
	//   - (handle, nil)：获取成功，锁在 lease 后自动失效
	//   - (nil, nil)：等待窗口内未获取到
	//   - (nil, err)：锁服务异常；ctx 被取消时 err 满足 errors.Is(err, ctx.Err())
	TryAcquire(ctx context.Context, name string, wait, lease time.Duration) (LockHandle, error)

	// Health 检查锁服务是否可用。
	Health(ctx context.Context) error

	// Close 关闭 Locker，之后的 TryAcquire 返回 [ErrFactoryClosed]。
	// 已持有的锁仍可 Release。
	Close(ctx context.Context) error
}

// =============================================================================
// 选项
// =============================================================================

const (
	defaultKeyPrefix  = "lock:"
	defaultRetryDelay = 20 * time.Millisecond
	maxKeyLength      = 512
)

// Option 定义 Locker 的配置选项。
type Option func(*options)

type options struct {
	KeyPrefix  string
	RetryDelay time.Duration // 等待窗口内两次尝试之间的间隔
}

func defaultOptions() *options {
	return &options{
		KeyPrefix:  defaultKeyPrefix,
		RetryDelay: defaultRetryDelay,
	}
}

// WithKeyPrefix 设置锁 key 前缀。默认 "lock:"。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.KeyPrefix = prefix
	}
}

// WithRetryDelay 设置等待窗口内的重试间隔。默认 20ms。
// 仅 Redis 后端使用；etcd 与 Local 后端通过 watch/channel 唤醒，无需轮询。
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.RetryDelay = d
		}
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// validateRequest 校验 name 与 lease，并将负的 wait 归一化为 0。
func validateRequest(name string, wait, lease time.Duration) (time.Duration, error) {
	if strings.TrimSpace(name) == "" {
		return 0, ErrEmptyKey
	}
	if len(name) > maxKeyLength {
		return 0, ErrKeyTooLong
	}
	if lease <= 0 {
		return 0, ErrInvalidLease
	}
	return max(wait, 0), nil
}
