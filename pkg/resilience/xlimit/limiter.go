package xlimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter 限流器，实现必须并发安全。
//
// err == nil 时 Result 必非 nil；后端故障时返回放行的 Result 和 ErrRedisUnavailable。
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Rule 每个 Period 允许 Rate 个请求，Burst 为突发上限（0 表示等于 Rate）。
type Rule struct {
	Rate   int           `koanf:"rate"`
	Burst  int           `koanf:"burst"`
	Period time.Duration `koanf:"period"`
}

// Validate 校验规则
func (r Rule) Validate() error {
	if r.Rate <= 0 || r.Period <= 0 || r.Burst < 0 {
		return fmt.Errorf("%w: rate=%d burst=%d period=%s", ErrInvalidRule, r.Rate, r.Burst, r.Period)
	}
	return nil
}

func (r Rule) burst() int {
	if r.Burst == 0 {
		return r.Rate
	}
	return r.Burst
}

// Option 限流器选项
type Option func(*options)

type options struct {
	keyPrefix string
	now       func() time.Time
	maxKeys   int
}

// DefaultMaxKeys 本地后端默认最多跟踪的限流键数量
const DefaultMaxKeys = 10000

// WithKeyPrefix 设置限流键前缀，默认 "ratelimit:"
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.keyPrefix = prefix }
}

// WithClock 注入时钟，仅本地后端使用
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxKeys 本地后端最多跟踪的键数量，超出时淘汰最久未访问的令牌桶。
// 被淘汰的键下次访问时从满配额重新开始。
func WithMaxKeys(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxKeys = n
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{keyPrefix: "ratelimit:", now: time.Now, maxKeys: DefaultMaxKeys}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
