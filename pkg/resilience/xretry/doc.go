// Package xretry 是 [avast/retry-go/v5] 的薄包装，用于启动阶段的依赖连通性检查
// （Redis、etcd、ClickHouse、MongoDB 的 Ping）。
//
// 读路径不使用重试：后端失败直接归类为不可用，由熔断器和缓存策略处理。
//
//	err := xretry.Do(ctx, func() error {
//		return ping(ctx)
//	}, xretry.Startup(nil)...)
//
// [NewPermanentError] 或 [Unrecoverable] 包装的错误立即返回。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
