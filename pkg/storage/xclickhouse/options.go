package xclickhouse

import (
	"context"
	"time"

	"github.com/omeyang/itemcache/internal/storageopt"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
)

// Config 连接配置
type Config struct {
	Addrs        []string      `koanf:"addrs"`
	Database     string        `koanf:"database"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	DialTimeout  time.Duration `koanf:"dialTimeout"`
	MaxOpenConns int           `koanf:"maxOpenConns"`
	MaxIdleConns int           `koanf:"maxIdleConns"`
}

// SlowQueryInfo 慢查询信息
type SlowQueryInfo struct {
	Query    string
	Args     []any
	Duration time.Duration
}

// SlowQueryHook 慢查询回调，同步执行。
type SlowQueryHook func(ctx context.Context, info SlowQueryInfo)

// Options 包装器选项
type Options struct {
	// HealthTimeout 健康检查超时，0 表示使用 ctx 的超时
	HealthTimeout time.Duration

	// SlowQueryThreshold 慢查询阈值，0 表示禁用
	SlowQueryThreshold time.Duration

	SlowQueryHook SlowQueryHook
	Observer      xmetrics.Observer
}

// Option 配置函数
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		HealthTimeout: storageopt.DefaultHealthTimeout,
		Observer:      xmetrics.NoopObserver{},
	}
}

// WithHealthTimeout 设置健康检查超时
func WithHealthTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout >= 0 {
			o.HealthTimeout = timeout
		}
	}
}

// WithSlowQueryThreshold 设置慢查询阈值
func WithSlowQueryThreshold(threshold time.Duration) Option {
	return func(o *Options) {
		if threshold >= 0 {
			o.SlowQueryThreshold = threshold
		}
	}
}

// WithSlowQueryHook 设置慢查询回调
func WithSlowQueryHook(hook SlowQueryHook) Option {
	return func(o *Options) { o.SlowQueryHook = hook }
}

// WithObserver 设置观测器
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}
