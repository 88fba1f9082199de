package xetcd

import (
	"crypto/tls"
	"time"

	"github.com/omeyang/itemcache/internal/storageopt"
)

const defaultHealthCheckKey = "itemcache-health-check"

type options struct {
	healthCheck    bool
	healthTimeout  time.Duration
	healthCheckKey string
	tlsConfig      *tls.Config
}

func defaultOptions() *options {
	return &options{
		healthTimeout:  storageopt.DefaultHealthTimeout,
		healthCheckKey: defaultHealthCheckKey,
	}
}

// Option 客户端选项
type Option func(*options)

// WithHealthCheck 创建后立即执行一次健康检查，失败则关闭客户端并返回错误。
// timeout 同时作为 Health 的超时。
func WithHealthCheck(enabled bool, timeout time.Duration) Option {
	return func(o *options) {
		o.healthCheck = enabled
		if timeout > 0 {
			o.healthTimeout = timeout
		}
	}
}

// WithHealthCheckKey 设置健康检查读取的键
func WithHealthCheckKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.healthCheckKey = key
		}
	}
}

// WithTLS 启用 TLS
func WithTLS(config *tls.Config) Option {
	return func(o *options) { o.tlsConfig = config }
}
