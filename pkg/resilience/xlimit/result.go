package xlimit

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// Result 限流检查结果
type Result struct {
	Allowed bool
	// Limit 规则的突发上限，0 表示没有可用的配额信息（如 fail-open）
	Limit     int
	Remaining int
	// RetryAfter 被拒绝时建议的等待时间
	RetryAfter time.Duration
	// ResetAfter 配额完全恢复所需时间
	ResetAfter time.Duration
}

// SetHeaders 写入 X-RateLimit-* 与 Retry-After 响应头。
// Limit <= 0 时不写配额头，避免客户端误以为配额为零。
func (r *Result) SetHeaders(w http.ResponseWriter) {
	if r == nil || r.Limit <= 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(int64(math.Ceil(r.ResetAfter.Seconds())), 10))
	if !r.Allowed && r.RetryAfter > 0 {
		// 向上取整，亚秒级等待不能变成 0
		h.Set("Retry-After", strconv.FormatInt(int64(math.Ceil(r.RetryAfter.Seconds())), 10))
	}
}
