package xstampede

import (
	"math"
	"time"
)

// RefreshProbability 返回条目年龄为 age 时提前刷新的概率。
//
//	p(age) = log(1 + α·(age − soft)) / log(1 + α·(ttl − soft))
//
// 时间以秒计。age <= soft 时为 0，age >= ttl 时为 1，结果截断到 [0, 1]。
// alpha <= 0 时退化为线性 (age − soft) / (ttl − soft)。
func RefreshProbability(age, soft, ttl time.Duration, alpha float64) float64 {
	if age <= soft {
		return 0
	}
	if age >= ttl || ttl <= soft {
		return 1
	}

	x := (age - soft).Seconds()
	span := (ttl - soft).Seconds()

	var p float64
	if alpha <= 0 {
		p = x / span
	} else {
		p = math.Log1p(alpha*x) / math.Log1p(alpha*span)
	}

	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// entryAge 由剩余有效期推算条目年龄。
// 没有过期时间的条目视为刚写入。
func entryAge(ttl, remaining time.Duration) time.Duration {
	if remaining < 0 {
		return 0
	}
	return max(ttl-remaining, 0)
}
