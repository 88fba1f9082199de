package xlimit

import "errors"

var (
	// ErrNilClient Redis 客户端为 nil
	ErrNilClient = errors.New("xlimit: redis client is nil")

	// ErrInvalidRule 规则的 Rate、Period 必须为正，Burst 不能为负
	ErrInvalidRule = errors.New("xlimit: invalid rule")

	// ErrInvalidKey 限流键为空
	ErrInvalidKey = errors.New("xlimit: invalid key")

	// ErrRedisUnavailable Redis 调用失败，请求已按 fail-open 放行
	ErrRedisUnavailable = errors.New("xlimit: redis unavailable")
)
