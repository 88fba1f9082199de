package xstampede

import (
	"context"
	"errors"
	"fmt"
)

// 结果错误，使用 errors.Is 匹配。
var (
	// ErrNotFound 表示回源确认 key 不存在。
	// Loader 应返回包装了 ErrNotFound 的错误。
	ErrNotFound = errors.New("xstampede: not found")

	// ErrUnavailable 表示回源失败（后端不可达、超时、熔断等）。
	ErrUnavailable = errors.New("xstampede: unavailable")

	// ErrInterrupted 表示等待或回源期间调用方 ctx 被取消。
	ErrInterrupted = errors.New("xstampede: interrupted")
)

// 构造错误。
var (
	// ErrInvalidPolicy 表示 Policy 参数不满足约束。
	ErrInvalidPolicy = errors.New("xstampede: invalid policy")

	// ErrNilStore 表示缓存存储为 nil。
	ErrNilStore = errors.New("xstampede: nil store")

	// ErrNilLocker 表示需要加锁的策略未提供 Locker。
	ErrNilLocker = errors.New("xstampede: nil locker")

	// ErrNilLoader 表示回源函数为 nil。
	ErrNilLoader = errors.New("xstampede: nil loader")
)

// classifyLoadError 将 Loader 错误归类。
// 判断中断使用调用方的 ctx，回源自身超时（LoadTimeout）归为 Unavailable。
func classifyLoadError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return err
	case ctx.Err() != nil:
		return interrupted(ctx)
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

// interrupted 返回同时匹配 ErrInterrupted 与 ctx.Err() 的错误。
func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
}
