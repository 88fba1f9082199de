// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别与文件轮转
//   - xmetrics: 统一观测接口，OTel 实现同时产生 span 与指标
//
// 日志自动从 context 中提取 request_id、trace_id 与 span_id。
package observability
