// Package xdlock 提供带等待窗口与租约的互斥锁，用于回源互斥。
//
// # 语义
//
// 所有后端实现同一个 Locker 接口：
//
//	handle, err := locker.TryAcquire(ctx, "itemCache:42", 100*time.Millisecond, 5*time.Second)
//	switch {
//	case err != nil:
//	    // 锁服务异常，或 ctx 已取消（errors.Is(err, context.Canceled)）
//	case handle == nil:
//	    // 等待窗口内未获取到锁，属正常竞争结果
//	default:
//	    defer handle.Release(context.WithoutCancel(ctx))
//	}
//
//   - wait：最长等待时间，0 表示只尝试一次
//   - lease：租约，持有者崩溃或忘记释放时，锁在 lease 后自动失效
//   - 获取结果三态：持有 / 未获取 (nil, nil) / 错误
//
// # 后端
//
//   - Redis：基于 redsync，多个客户端时使用 Redlock 算法
//   - etcd：基于 concurrency.Mutex，每次获取独立 Session，租约到期自动撤销
//   - Local：基于 xkeylock 的进程内实现，适用于单实例部署与测试
//
// 实际锁 key 为 KeyPrefix + name，KeyPrefix 默认为 "lock:"。
package xdlock
