package xdlock

import "errors"

// 预定义错误。使用 errors.Is 匹配。
var (
	// ErrNilClient 客户端为空。
	ErrNilClient = errors.New("xdlock: client is nil")

	// ErrFactoryClosed Locker 已关闭。
	ErrFactoryClosed = errors.New("xdlock: locker is closed")

	// ErrNotLocked 锁未被持有。
	// Release 时锁已过期、已释放或被其他获取覆盖。
	ErrNotLocked = errors.New("xdlock: not locked")

	// ErrEmptyKey 锁 key 为空或仅含空白。
	ErrEmptyKey = errors.New("xdlock: key must not be empty")

	// ErrKeyTooLong 锁 key 超过 512 字节。
	ErrKeyTooLong = errors.New("xdlock: key exceeds maximum length of 512 bytes")

	// ErrInvalidLease 租约不是正数。
	ErrInvalidLease = errors.New("xdlock: lease must be positive")

	// ErrLockFailed 锁服务异常导致获取失败（非竞争失败）。
	ErrLockFailed = errors.New("xdlock: failed to acquire lock")
)
