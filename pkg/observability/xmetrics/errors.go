package xmetrics

import "errors"

// NewOTelObserver 返回的错误。
var (
	// ErrCreateCounter 创建 OTel Counter 失败。
	ErrCreateCounter = errors.New("xmetrics: create counter failed")
	// ErrCreateHistogram 创建 OTel Histogram 失败。
	ErrCreateHistogram = errors.New("xmetrics: create histogram failed")
	// ErrInvalidBuckets Histogram 桶边界必须非空且严格递增。
	ErrInvalidBuckets = errors.New("xmetrics: invalid histogram buckets")
	// ErrNilOption 传入了 nil 的 Option。
	ErrNilOption = errors.New("xmetrics: nil option")
)
