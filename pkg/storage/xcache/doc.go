// Package xcache 提供带逐条过期时间的键值缓存存储，支持 Redis 和内存两种后端。
//
// # 设计理念
//
// xcache 只暴露回源缓存所需的最小操作集：
//   - Get：读取条目
//   - GetWithTTL：读取条目并返回剩余有效期（Redis 后端一次往返完成）
//   - Set：写入条目并设置过期时间（ttl 必须为正）
//   - TTL：查询剩余有效期
//
// 条目过期完全由后端负责，xcache 不做显式删除。
//
// # 后端
//
//   - Redis：基于 go-redis UniversalClient，多进程共享，Client() 暴露底层客户端
//   - Memory：基于 ristretto，仅限进程内，适用于单实例部署与测试
//
// # 剩余有效期
//
// TTL/GetWithTTL 的返回值：
//   - 正数：剩余有效期
//   - NoExpiration：条目存在但没有过期时间（只可能由外部写入产生）
//   - ErrCacheMiss：条目不存在或已过期
package xcache
