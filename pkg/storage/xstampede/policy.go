package xstampede

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode 表示回源策略。
type Mode int

const (
	// ModeCacheAside 未命中直接回源，无击穿保护。
	ModeCacheAside Mode = iota + 1
	// ModeLockWait 争锁等待，未抢到锁直接回源。
	ModeLockWait
	// ModeLockSpin 争锁等待，未抢到锁轮询缓存，超时后直接回源。
	//
	// 持锁者回源得到 NotFound 或失败时不会写缓存，轮询方要等满 LockLease
	// 才直接回源，最坏阻塞 LockWait+LockLease（见 [Policy.MaxBlock]）。
	// 不存在的 id 被频繁访问时应调小 LockLease。
	ModeLockSpin
	// ModeLogicalTTL 逻辑过期 + 物理过期，过期期间返回旧值。
	ModeLogicalTTL
	// ModeProbabilistic 概率提前刷新，不加锁。
	ModeProbabilistic
)

var modeNames = map[Mode]string{
	ModeCacheAside:    "cache-aside",
	ModeLockWait:      "lock-wait",
	ModeLockSpin:      "lock-spin",
	ModeLogicalTTL:    "logical-ttl",
	ModeProbabilistic: "probabilistic",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode 解析策略名称（大小写不敏感）。
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, s)
}

// DefaultAlpha 概率提前刷新曲线的默认陡峭度。
const DefaultAlpha = 1.5

// Policy 描述一个 Controller 的回源策略。
// 使用 CacheAside、LockWait 等构造函数创建，各字段只在对应模式下生效。
type Policy struct {
	Mode Mode

	// PhysicalTTL 条目在缓存中的物理过期时间，所有模式必填。
	PhysicalTTL time.Duration

	// LogicalTTL 逻辑过期时间（ModeLogicalTTL），必须不大于 PhysicalTTL。
	LogicalTTL time.Duration

	// SoftTTL 开始概率刷新的年龄（ModeProbabilistic），必须小于 PhysicalTTL。
	SoftTTL time.Duration

	// Alpha 概率曲线陡峭度（ModeProbabilistic），<= 0 表示线性。
	Alpha float64

	// LockWait 争锁的最长等待时间（ModeLockWait、ModeLockSpin、ModeLogicalTTL）。
	LockWait time.Duration

	// LockLease 锁租约，同时也是 ModeLockSpin 的轮询截止时长。
	LockLease time.Duration

	// SpinInterval 轮询缓存的间隔（ModeLockSpin）。
	SpinInterval time.Duration
}

// CacheAside 返回无击穿保护的基线策略。
func CacheAside(ttl time.Duration) Policy {
	return Policy{Mode: ModeCacheAside, PhysicalTTL: ttl}
}

// LockWait 返回争锁等待策略。
func LockWait(ttl, wait, lease time.Duration) Policy {
	return Policy{Mode: ModeLockWait, PhysicalTTL: ttl, LockWait: wait, LockLease: lease}
}

// LockSpin 返回争锁 + 轮询 + 兜底回源策略。
func LockSpin(ttl, wait, lease, spin time.Duration) Policy {
	return Policy{Mode: ModeLockSpin, PhysicalTTL: ttl, LockWait: wait, LockLease: lease, SpinInterval: spin}
}

// LogicalTTL 返回逻辑/物理双过期策略。
func LogicalTTL(physical, logical, wait, lease time.Duration) Policy {
	return Policy{Mode: ModeLogicalTTL, PhysicalTTL: physical, LogicalTTL: logical, LockWait: wait, LockLease: lease}
}

// Probabilistic 返回概率提前刷新策略。
func Probabilistic(ttl, soft time.Duration, alpha float64) Policy {
	return Policy{Mode: ModeProbabilistic, PhysicalTTL: ttl, SoftTTL: soft, Alpha: alpha}
}

// Validate 检查策略参数。
func (p Policy) Validate() error {
	if _, ok := modeNames[p.Mode]; !ok {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidPolicy, int(p.Mode))
	}
	if p.PhysicalTTL <= 0 {
		return fmt.Errorf("%w: physical ttl must be positive", ErrInvalidPolicy)
	}

	if p.usesLock() {
		if p.LockWait < 0 {
			return fmt.Errorf("%w: lock wait must not be negative", ErrInvalidPolicy)
		}
		if p.LockLease <= 0 {
			return fmt.Errorf("%w: lock lease must be positive", ErrInvalidPolicy)
		}
	}

	switch p.Mode {
	case ModeLockSpin:
		if p.SpinInterval <= 0 {
			return fmt.Errorf("%w: spin interval must be positive", ErrInvalidPolicy)
		}
	case ModeLogicalTTL:
		if p.LogicalTTL <= 0 || p.LogicalTTL > p.PhysicalTTL {
			return fmt.Errorf("%w: logical ttl %v must be in (0, %v]", ErrInvalidPolicy, p.LogicalTTL, p.PhysicalTTL)
		}
	case ModeProbabilistic:
		if p.SoftTTL < 0 || p.SoftTTL >= p.PhysicalTTL {
			return fmt.Errorf("%w: soft ttl %v must be in [0, %v)", ErrInvalidPolicy, p.SoftTTL, p.PhysicalTTL)
		}
		if math.IsNaN(p.Alpha) || math.IsInf(p.Alpha, 0) {
			return fmt.Errorf("%w: alpha must be finite", ErrInvalidPolicy)
		}
	}
	return nil
}

// MaxBlock 返回调用方在锁协调上可能阻塞的最长时间（不含回源本身）。
func (p Policy) MaxBlock() time.Duration {
	switch p.Mode {
	case ModeLockWait, ModeLogicalTTL:
		return p.LockWait
	case ModeLockSpin:
		return p.LockWait + p.LockLease
	default:
		return 0
	}
}

func (p Policy) usesLock() bool {
	switch p.Mode {
	case ModeLockWait, ModeLockSpin, ModeLogicalTTL:
		return true
	default:
		return false
	}
}
