package xretry

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// 镜像 retry-go 的常用选项，调用方无需直接依赖 retry-go。
type (
	// Option retry-go 配置选项
	Option = retry.Option
	// Error 每次尝试的错误列表
	Error = retry.Error
)

var (
	// Attempts 总尝试次数（含首次），0 表示无限
	Attempts = retry.Attempts
	// Delay 基础重试间隔，默认 100ms
	Delay = retry.Delay
	// MaxDelay 单次间隔上限
	MaxDelay = retry.MaxDelay
	// MaxJitter 最大抖动
	MaxJitter = retry.MaxJitter
	// DelayType 延迟算法
	DelayType = retry.DelayType
	// OnRetry 每次失败后的回调，n 从 0 开始
	OnRetry = retry.OnRetry
	// LastErrorOnly 只返回最后一次的错误
	LastErrorOnly = retry.LastErrorOnly

	// BackOffDelay 指数退避
	BackOffDelay = retry.BackOffDelay
	// FixedDelay 固定间隔
	FixedDelay = retry.FixedDelay

	// Unrecoverable 标记错误不再重试
	Unrecoverable = retry.Unrecoverable
	// IsRecoverable 检查错误是否可恢复
	IsRecoverable = retry.IsRecoverable
)

// Do 带重试执行 fn，ctx 结束时停止。
//
// PermanentError 与 Unrecoverable 包装的错误不会重试。
// 调用方传入的 RetryIf 会覆盖该判断。
//
//	err := xretry.Do(ctx, func() error {
//		return rdb.Ping(ctx).Err()
//	}, xretry.Attempts(5), xretry.Delay(200*time.Millisecond))
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	return retry.New(defaultOpts(ctx, opts)...).Do(fn)
}

// DoWithData 是 Do 的带返回值版本
func DoWithData[T any](ctx context.Context, fn func() (T, error), opts ...Option) (T, error) {
	return retry.NewWithData[T](defaultOpts(ctx, opts)...).Do(fn)
}

func defaultOpts(ctx context.Context, opts []Option) []Option {
	all := make([]Option, 0, len(opts)+2)
	all = append(all,
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return IsRecoverable(err) && !IsPermanent(err)
		}),
	)
	return append(all, opts...)
}

// Startup 是连接检查使用的默认选项：最多 5 次，指数退避，单次不超过 2s。
func Startup(onRetry func(n uint, err error)) []Option {
	opts := []Option{
		Attempts(5),
		Delay(200 * time.Millisecond),
		MaxDelay(2 * time.Second),
		DelayType(BackOffDelay),
		LastErrorOnly(true),
	}
	if onRetry != nil {
		opts = append(opts, OnRetry(onRetry))
	}
	return opts
}
