package xmongo

import (
	"context"
	"time"

	"github.com/omeyang/itemcache/internal/storageopt"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
)

// Config 连接配置
type Config struct {
	URI            string        `koanf:"uri"`
	Database       string        `koanf:"database"`
	Collection     string        `koanf:"collection"`
	MaxPoolSize    uint64        `koanf:"maxPoolSize"`
	MinPoolSize    uint64        `koanf:"minPoolSize"`
	ConnectTimeout time.Duration `koanf:"connectTimeout"`
}

// SlowQueryInfo 慢查询信息。Filter 可能含敏感条件，写日志时注意脱敏。
type SlowQueryInfo struct {
	Database   string
	Collection string
	Operation  string
	Filter     any
	Duration   time.Duration
}

// SlowQueryHook 慢查询回调，同步执行。
type SlowQueryHook func(ctx context.Context, info SlowQueryInfo)

// Options 包装器选项
type Options struct {
	HealthTimeout      time.Duration
	SlowQueryThreshold time.Duration
	SlowQueryHook      SlowQueryHook
	Observer           xmetrics.Observer
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

// WithSlowQueryThreshold 设置慢查询阈值，0 禁用
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
