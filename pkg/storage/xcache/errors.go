package xcache

import "errors"

// =============================================================================
// 通用错误
// =============================================================================

var (
	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xcache: nil client")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xcache: closed")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	// 空字符串 key 在 Redis 中合法但几乎总是使用错误，应在入口处 fail-fast。
	ErrEmptyKey = errors.New("xcache: empty key")

	// ErrCacheMiss 表示条目不存在或已过期。
	ErrCacheMiss = errors.New("xcache: cache miss")

	// ErrInvalidTTL 表示写入时的 ttl 不是正数。
	// 所有条目都必须带过期时间，永不过期的条目会让缓存失去兜底清理能力。
	ErrInvalidTTL = errors.New("xcache: ttl must be positive")
)

// =============================================================================
// Memory 相关错误
// =============================================================================

var (
	// ErrMetricsDisabled 表示未启用缓存统计信息。
	ErrMetricsDisabled = errors.New("xcache: metrics disabled")

	// ErrSetRejected 表示 ristretto 拒绝了写入（准入策略或写缓冲区已满）。
	ErrSetRejected = errors.New("xcache: set rejected by memory cache")
)
