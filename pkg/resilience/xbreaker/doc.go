// Package xbreaker 基于 sony/gobreaker/v2 的熔断器，用于保护后端存储加载函数。
//
// 熔断器打开时调用立即返回 [BreakerError]（errors.Is 匹配 gobreaker 的
// ErrOpenState），上层把它归类为“后端不可用”，不会继续冲击后端。
//
// 业务上的“不存在”不是故障，通过 [IgnoreErrors] 计为成功：
//
//	b := xbreaker.NewBreaker("item-repo",
//		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(5)),
//		xbreaker.WithSuccessPolicy(xbreaker.IgnoreErrors(xstampede.ErrNotFound)),
//	)
//	item, err := xbreaker.Execute(ctx, b, func() (Item, error) { return repo.Find(ctx, id) })
package xbreaker
