package xbreaker

import "errors"

// ConsecutiveFailuresPolicy 连续失败达到阈值时熔断
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 阈值最小为 1
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	return &ConsecutiveFailuresPolicy{threshold: max(threshold, 1)}
}

func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// FailureRatioPolicy 请求数不少于 minRequests 且失败率达到 ratio 时熔断
type FailureRatioPolicy struct {
	ratio       float64
	minRequests uint32
}

// NewFailureRatio ratio 截断到 (0, 1]，minRequests 最小为 1
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	return &FailureRatioPolicy{ratio: ratio, minRequests: max(minRequests, 1)}
}

func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	if counts.Requests < p.minRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.ratio
}

// ignoreErrors 把指定错误视为成功
type ignoreErrors []error

// IgnoreErrors 返回 SuccessPolicy：err 为 nil 或匹配任一 targets（errors.Is）时计为成功。
func IgnoreErrors(targets ...error) SuccessPolicy {
	return ignoreErrors(targets)
}

func (ie ignoreErrors) IsSuccessful(err error) bool {
	if err == nil {
		return true
	}
	for _, target := range ie {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var (
	_ TripPolicy    = (*ConsecutiveFailuresPolicy)(nil)
	_ TripPolicy    = (*FailureRatioPolicy)(nil)
	_ SuccessPolicy = ignoreErrors(nil)
)
