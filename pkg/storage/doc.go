// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xcache: 带逐条 TTL 的缓存存储，支持 Redis 和内存
//   - xstampede: 防缓存击穿的读穿透控制器
//   - xclickhouse: ClickHouse 客户端封装
//   - xmongo: MongoDB 客户端封装
//   - xetcd: etcd 客户端封装
//
// 客户端封装内置健康检查、慢查询检测与 xmetrics 观测。
package storage
