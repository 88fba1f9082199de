package xlog

import (
	"log/slog"
	"time"
)

// =============================================================================
// 标准字段名
// =============================================================================

const (
	KeyError      = "error"
	KeyStack      = "stack"
	KeyDuration   = "duration"
	KeyCount      = "count"
	KeyRequestID  = "request_id"
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatusCode = "status_code"
	KeyComponent  = "component"
	KeyOperation  = "operation"

	// KeyCacheKey 带前缀的缓存键，如 "itemCache:42"
	KeyCacheKey = "cache_key"
	// KeyLock 分布式锁的键
	KeyLock = "lock"
	// KeyPolicy 防击穿策略名
	KeyPolicy = "policy"
)

// =============================================================================
// 便捷属性构造函数
// =============================================================================

// Err 创建错误属性，err 为 nil 时返回会被 slog 忽略的空属性。
//
//	if err != nil {
//	    logger.Error(ctx, "load failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建人类可读的耗时属性（"1.5s"）。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 标识日志来源组件
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 标识当前操作
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// StatusCode HTTP 状态码属性
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}

// Method HTTP 方法属性
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Path 请求路径属性
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// CacheKey 缓存键属性
func CacheKey(k string) slog.Attr {
	return slog.String(KeyCacheKey, k)
}

// Lock 锁键属性
func Lock(k string) slog.Attr {
	return slog.String(KeyLock, k)
}

// Policy 策略名属性
func Policy(name string) slog.Attr {
	return slog.String(KeyPolicy, name)
}
