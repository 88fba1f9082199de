package xbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

type (
	// Counts 统计计数，用于熔断判定
	Counts = gobreaker.Counts
	// State 熔断器状态
	State = gobreaker.State
)

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// TripPolicy 熔断判定策略，返回 true 时从 Closed 转为 Open。
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// SuccessPolicy 成功判定策略，默认 err == nil 即成功。
type SuccessPolicy interface {
	IsSuccessful(err error) bool
}

// Breaker 熔断器
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	successPolicy SuccessPolicy
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[any]
}

// BreakerOption 熔断器配置选项
type BreakerOption func(*Breaker)

// WithTripPolicy 设置熔断判定策略，默认连续失败 5 次。
func WithTripPolicy(p TripPolicy) BreakerOption {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithSuccessPolicy 设置成功判定策略
func WithSuccessPolicy(p SuccessPolicy) BreakerOption {
	return func(b *Breaker) { b.successPolicy = p }
}

// WithTimeout Open 状态持续多久后进入 HalfOpen，默认 60s。
func WithTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval Closed 状态下清零计数的周期，0 表示不清零。
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests HalfOpen 状态下放行的探测请求数，默认 1。
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调，用于日志与告警。
func WithOnStateChange(f func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) { b.onStateChange = f }
}

// NewBreaker 创建熔断器
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     60 * time.Second,
		maxRequests: 1,
	}
	for _, opt := range opts {
		opt(b)
	}

	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: b.tripPolicy.ReadyToTrip,
	}
	if b.successPolicy != nil {
		st.IsSuccessful = b.successPolicy.IsSuccessful
	}
	if b.onStateChange != nil {
		st.OnStateChange = b.onStateChange
	}
	b.cb = gobreaker.NewCircuitBreaker[any](st)
	return b
}

// Do 执行受保护的操作。ctx 只做入口检查，fn 需自行使用 ctx。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return wrapBreakerError(err, b.name)
}

// Execute 是 Do 的带返回值版本。
// fn 返回错误时仍透传其返回值，便于调用方区分部分结果。
func Execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	var out T
	_, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		out = v
		return nil, err
	})
	if err != nil {
		return zero, wrapBreakerError(err, b.name)
	}
	return out, nil
}

// State 返回当前状态
func (b *Breaker) State() State {
	return b.cb.State()
}

// Name 返回熔断器名称
func (b *Breaker) Name() string {
	return b.name
}

// Counts 返回当前统计计数
func (b *Breaker) Counts() Counts {
	return b.cb.Counts()
}
