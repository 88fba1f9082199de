// Package xkeylock 提供基于 key 的进程内互斥锁。
//
// 主要用作 xdlock 的本地后端：单实例部署或测试时，回源互斥不需要
// 跨进程协调，用进程内锁即可提供同样的"同一 key 同时只有一个回源"语义。
//
// # 特性
//
//   - Context 支持：Acquire 支持超时和取消（ctx 不得为 nil，否则 panic）
//   - TryAcquire：非阻塞获取，锁被占用时返回 (nil, nil)
//   - Handle 语义：Unlock 幂等（首次返回 nil，后续返回 ErrLockNotHeld）
//   - 分片 map：默认 32 分片，按 xxhash 选择分片，减少管理锁争用
//   - 条目回收：持有者与等待者均释放后条目从 map 删除，key 数量不会无限增长
//   - 关闭语义：Close() 拒绝新请求并唤醒所有等待者，已持有锁不受影响
package xkeylock
