// Package xstampede 提供抗缓存击穿（cache stampede）的回源缓存控制器。
//
// Controller 组合三个外部协作者回答 Get(key)：
//   - xcache.Store：带逐条过期时间的共享缓存
//   - xdlock.Locker：带等待窗口与租约的按 key 互斥锁
//   - Loader：同步、幂等的回源函数
//
// # 策略
//
// 每个 Controller 由一个 Policy 值选择回源策略：
//
//	ModeCacheAside     未命中直接回源并写缓存，不做击穿保护（基线）
//	ModeLockWait       未命中时在 LockWait 内争锁，持锁者二次检查后回源；
//	                   未抢到锁直接回源且不写缓存
//	ModeLockSpin       同 LockWait，但未抢到锁时每 SpinInterval 轮询缓存，
//	                   直到被持锁者填充或 LockLease 到期，之后才直接回源
//	ModeLogicalTTL     条目带逻辑过期时间；逻辑过期后首个抢到锁的调用方同步刷新，
//	                   其余调用方立即返回旧值
//	ModeProbabilistic  不加锁；条目年龄超过 SoftTTL 后按概率 p(age) 提前刷新
//
// # 概率提前刷新
//
//	p(age) = log(1 + α·(age − soft)) / log(1 + α·(ttl − soft))，截断到 [0, 1]
//
// age、soft、ttl 以秒为单位参与计算。p(soft)=0，p(ttl)=1；
// 固定 age 时 α 越大 p 越大，α 趋近 0 时曲线退化为线性。
//
// # 错误
//
//   - ErrNotFound：回源确认不存在，不会写入缓存
//   - ErrUnavailable：回源失败或超时，只返回给执行回源的调用方
//   - ErrInterrupted：等待锁、轮询或回源期间 ctx 被取消，同时匹配 ctx.Err()
//
// 锁获取失败从不导致错误，总是降级为直接回源或返回旧值。
// 锁释放失败只记录日志，不影响返回结果。
package xstampede
