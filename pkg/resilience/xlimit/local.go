package xlimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type localLimiter struct {
	buckets *lru.Cache[string, *tokenBucket]
	rule    Rule
	prefix  string
	now     func() time.Time
}

// NewLocal 创建进程内令牌桶限流器，配额不在实例间共享。
func NewLocal(rule Rule, opts ...Option) (Limiter, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	buckets, err := lru.New[string, *tokenBucket](o.maxKeys)
	if err != nil {
		return nil, err
	}
	return &localLimiter{buckets: buckets, rule: rule, prefix: o.keyPrefix, now: o.now}, nil
}

func (l *localLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.bucket(l.prefix + key).take(l.now()), nil
}

func (l *localLimiter) bucket(key string) *tokenBucket {
	if tb, ok := l.buckets.Get(key); ok {
		return tb
	}
	burst := l.rule.burst()
	tb := &tokenBucket{
		tokens:     float64(burst),
		burst:      burst,
		perSecond:  float64(l.rule.Rate) / l.rule.Period.Seconds(),
		lastUpdate: l.now(),
	}
	if prev, ok, _ := l.buckets.PeekOrAdd(key, tb); ok {
		return prev
	}
	return tb
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	burst      int
	perSecond  float64
	lastUpdate time.Time
}

func (tb *tokenBucket) take(now time.Time) *Result {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastUpdate); elapsed > 0 {
		tb.tokens = min(tb.tokens+tb.perSecond*elapsed.Seconds(), float64(tb.burst))
		tb.lastUpdate = now
	}

	res := &Result{Limit: tb.burst}
	if tb.tokens >= 1 {
		tb.tokens--
		res.Allowed = true
	} else {
		res.RetryAfter = seconds((1 - tb.tokens) / tb.perSecond)
	}
	res.Remaining = int(tb.tokens)
	res.ResetAfter = seconds((float64(tb.burst) - tb.tokens) / tb.perSecond)
	return res
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
