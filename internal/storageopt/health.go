package storageopt

import (
	"context"
	"time"
)

// DefaultHealthTimeout 默认健康检查超时
const DefaultHealthTimeout = 5 * time.Second

// HealthContext 创建带健康检查超时的 context，timeout <= 0 时原样返回。
func HealthContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
