package xlimit

import (
	"context"
	"fmt"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedis 创建基于 redis_rate 的分布式限流器。
func NewRedis(rdb redis.UniversalClient, rule Rule, opts ...Option) (Limiter, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &redisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.Limit{Rate: rule.Rate, Burst: rule.burst(), Period: rule.Period},
		prefix:  o.keyPrefix,
	}, nil
}

// Allow 消耗一个配额。Redis 出错时放行并返回 ErrRedisUnavailable。
func (l *redisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return &Result{Allowed: true}, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      l.limit.Burst,
		Remaining:  res.Remaining,
		RetryAfter: max(res.RetryAfter, 0),
		ResetAfter: res.ResetAfter,
	}, nil
}
