package xstampede

import (
	"math/rand/v2"
	"time"

	"github.com/omeyang/itemcache/pkg/observability/xlog"
	"github.com/omeyang/itemcache/pkg/observability/xmetrics"
)

const (
	defaultKeyPrefix      = "cache"
	defaultLoadTimeout    = 30 * time.Second
	defaultReleaseTimeout = 3 * time.Second
)

// Option 定义 Controller 的配置选项。
type Option func(*options)

type options struct {
	Logger         xlog.Logger
	Observer       xmetrics.Observer
	KeyPrefix      string
	LoadTimeout    time.Duration
	ReleaseTimeout time.Duration
	Now            func() time.Time
	Rand           func() float64
}

func defaultOptions() *options {
	return &options{
		KeyPrefix:      defaultKeyPrefix,
		LoadTimeout:    defaultLoadTimeout,
		ReleaseTimeout: defaultReleaseTimeout,
		Now:            time.Now,
		Rand:           rand.Float64,
	}
}

// WithLogger 设置日志记录器。默认使用 xlog.Default()。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithObserver 设置观测器，每次 Get 记录一个跨度。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		o.Observer = observer
	}
}

// WithKeyPrefix 设置缓存 key 前缀，缓存 key 为 "<prefix>:<key>"。默认 "cache"。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.KeyPrefix = prefix
		}
	}
}

// WithLoadTimeout 设置单次回源的超时时间。默认 30s，<= 0 表示不限制。
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.LoadTimeout = d
	}
}

// WithReleaseTimeout 设置释放锁的超时时间。默认 3s。
// 释放使用脱离调用方取消的 context，确保请求取消后锁仍被释放。
func WithReleaseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ReleaseTimeout = d
		}
	}
}

// WithClock 设置时钟，用于逻辑过期判断与轮询截止时间。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.Now = now
		}
	}
}

// WithRand 设置 [0, 1) 均匀分布的随机源，用于概率刷新。
// 函数会被并发调用，必须并发安全。
func WithRand(fn func() float64) Option {
	return func(o *options) {
		if fn != nil {
			o.Rand = fn
		}
	}
}
