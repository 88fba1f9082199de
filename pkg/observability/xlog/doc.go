// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("info").
//		SetFormat("json").
//		SetRotation("/var/log/itemcache/app.log", xlog.WithMaxBackups(7)).
//		Build()
//	defer cleanup()
//
// Builder 是 first-error-wins 的：第一个配置错误由 Build 返回。
//
// # 上下文注入
//
// EnrichHandler 默认启用，从 ctx 中提取：
//   - request_id：由 [WithRequestID] 写入，HTTP 中间件为每个请求生成
//   - trace_id、span_id：来自 OpenTelemetry 的当前 span
//
// # 动态级别
//
// Build 返回 [LoggerWithLevel]，配置文件变更时调用 SetLevel 即可生效，
// 派生 logger 共享同一个 LevelVar。
//
// # 全局 Logger
//
// [Default] 与 [Debug]、[Info]、[Warn]、[Error] 供 CLI 使用，服务端显式持有 Logger。
package xlog
