package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// BreakerError 熔断器拒绝执行时返回的错误，Unwrap 为 gobreaker 的哨兵错误。
type BreakerError struct {
	Err   error
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	return fmt.Sprintf("xbreaker: %s (breaker=%s, state=%s)", e.Err, e.Name, e.State)
}

func (e *BreakerError) Unwrap() error {
	return e.Err
}

// wrapBreakerError 只包装当前熔断器直接返回的哨兵错误，状态由错误类型推导。
func wrapBreakerError(err error, name string) error {
	switch {
	case err == nil:
		return nil
	case err == gobreaker.ErrOpenState: //nolint:errorlint // 只认当前熔断器的直接返回
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case err == gobreaker.ErrTooManyRequests: //nolint:errorlint // 同上
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	default:
		return err
	}
}

// IsOpen 错误是否由打开的熔断器返回
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsTooManyRequests 错误是否由半开状态下超出探测配额返回
func IsTooManyRequests(err error) bool {
	return errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsBreakerError 错误是否来自熔断器拒绝
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
