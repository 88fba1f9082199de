package item

import (
	"context"

	"github.com/omeyang/itemcache/pkg/resilience/xbreaker"
	"github.com/omeyang/itemcache/pkg/storage/xstampede"
)

// NewBreaker 创建保护仓储的熔断器，未找到视为成功。
func NewBreaker(name string, opts ...xbreaker.BreakerOption) *xbreaker.Breaker {
	opts = append([]xbreaker.BreakerOption{
		xbreaker.WithSuccessPolicy(xbreaker.IgnoreErrors(xstampede.ErrNotFound)),
	}, opts...)
	return xbreaker.NewBreaker(name, opts...)
}

// NewLoader 返回 Controller 使用的回源函数。breaker 为 nil 时直连仓储。
// 熔断打开时返回的错误被 Controller 归类为不可用。
func NewLoader(repo Repository, breaker *xbreaker.Breaker) xstampede.Loader[int64, Item] {
	if breaker == nil {
		return repo.Get
	}
	return func(ctx context.Context, id int64) (Item, error) {
		return xbreaker.Execute(ctx, breaker, func() (Item, error) {
			return repo.Get(ctx, id)
		})
	}
}

// GuardedRepository 让直读接口与回源共享同一个熔断器
func GuardedRepository(repo Repository, breaker *xbreaker.Breaker) Repository {
	return loaderRepository(NewLoader(repo, breaker))
}

type loaderRepository xstampede.Loader[int64, Item]

func (l loaderRepository) Get(ctx context.Context, id int64) (Item, error) {
	return l(ctx, id)
}
