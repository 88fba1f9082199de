package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/itemcache/pkg/config/xconf"
	"github.com/omeyang/itemcache/pkg/observability/xlog"
	"github.com/omeyang/itemcache/pkg/resilience/xlimit"
	"github.com/omeyang/itemcache/pkg/storage/xclickhouse"
	"github.com/omeyang/itemcache/pkg/storage/xetcd"
	"github.com/omeyang/itemcache/pkg/storage/xmongo"
	"github.com/omeyang/itemcache/pkg/storage/xstampede"
)

// ErrInvalidConfig 配置不合法
var ErrInvalidConfig = errors.New("app: invalid config")

// 后端名称
const (
	BackendRedis      = "redis"
	BackendMemory     = "memory"
	BackendEtcd       = "etcd"
	BackendLocal      = "local"
	BackendClickHouse = "clickhouse"
	BackendMongo      = "mongo"
)

// Config 服务配置，对应配置文件的顶层结构。
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Redis     RedisConfig     `koanf:"redis"`
	Cache     CacheConfig     `koanf:"cache"`
	Lock      LockConfig      `koanf:"lock"`
	Backing   BackingConfig   `koanf:"backing"`
	Stampede  StampedeConfig  `koanf:"stampede"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdownTimeout"`
}

// LogConfig 日志。File 非空时按大小轮转写文件。
type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	AddSource  bool   `koanf:"addSource"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"maxSizeMB"`
	MaxBackups int    `koanf:"maxBackups"`
	MaxAgeDays int    `koanf:"maxAgeDays"`
	Compress   bool   `koanf:"compress"`
}

// RedisConfig Redis 连接。Addrs 多于一个时使用集群客户端。
type RedisConfig struct {
	Addr         string   `koanf:"addr"`
	Addrs        []string `koanf:"addrs"`
	Password     string   `koanf:"password"`
	DB           int      `koanf:"db"`
	PoolSize     int      `koanf:"poolSize"`
	MinIdleConns int      `koanf:"minIdleConns"`
}

// CacheConfig 缓存存储
type CacheConfig struct {
	Backend       string `koanf:"backend"`
	KeyPrefix     string `koanf:"keyPrefix"`
	MemoryMaxCost int64  `koanf:"memoryMaxCost"`
}

// LockConfig 分布式锁
type LockConfig struct {
	Backend   string       `koanf:"backend"`
	KeyPrefix string       `koanf:"keyPrefix"`
	Etcd      xetcd.Config `koanf:"etcd"`
}

// BackingConfig 后端仓储
type BackingConfig struct {
	Kind               string             `koanf:"kind"`
	LoadTimeout        time.Duration      `koanf:"loadTimeout"`
	SlowQueryThreshold time.Duration      `koanf:"slowQueryThreshold"`
	ClickHouse         xclickhouse.Config `koanf:"clickhouse"`
	Mongo              xmongo.Config      `koanf:"mongo"`
}

// StampedeConfig 回源策略。Policy 取值见 xstampede.ParseMode。
type StampedeConfig struct {
	Policy         string        `koanf:"policy"`
	PhysicalTTL    time.Duration `koanf:"physicalTTL"`
	LogicalTTL     time.Duration `koanf:"logicalTTL"`
	SoftTTL        time.Duration `koanf:"softTTL"`
	Alpha          float64       `koanf:"alpha"`
	LockWait       time.Duration `koanf:"lockWait"`
	LockLease      time.Duration `koanf:"lockLease"`
	SpinInterval   time.Duration `koanf:"spinInterval"`
	ReleaseTimeout time.Duration `koanf:"releaseTimeout"`
}

// BreakerConfig 仓储熔断。FailureRatio > 0 时按比例熔断，否则按连续失败次数。
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutiveFailures"`
	FailureRatio        float64       `koanf:"failureRatio"`
	MinRequests         uint32        `koanf:"minRequests"`
	Timeout             time.Duration `koanf:"timeout"`
	Interval            time.Duration `koanf:"interval"`
	MaxRequests         uint32        `koanf:"maxRequests"`
}

// RateLimitConfig 直读接口限流
type RateLimitConfig struct {
	Enabled bool        `koanf:"enabled"`
	Backend string      `koanf:"backend"`
	Rule    xlimit.Rule `koanf:"rule"`
}

// MetricsConfig 观测。StatsInterval > 0 时周期性把 Controller 计数写入日志。
type MetricsConfig struct {
	Enabled             bool          `koanf:"enabled"`
	InstrumentationName string        `koanf:"instrumentationName"`
	StatsInterval       time.Duration `koanf:"statsInterval"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 7},
		Redis: RedisConfig{
			Addr:         "127.0.0.1:6379",
			PoolSize:     20,
			MinIdleConns: 5,
		},
		Cache: CacheConfig{Backend: BackendRedis, KeyPrefix: "itemCache", MemoryMaxCost: 64 << 20},
		Lock:  LockConfig{Backend: BackendRedis, KeyPrefix: "lock:"},
		Backing: BackingConfig{
			Kind:        BackendClickHouse,
			LoadTimeout: 30 * time.Second,
			ClickHouse:  xclickhouse.Config{Addrs: []string{"127.0.0.1:9000"}, Database: "default"},
			Mongo:       xmongo.Config{URI: "mongodb://127.0.0.1:27017", Database: "shop", Collection: "item"},
		},
		Stampede: StampedeConfig{
			Policy:         xstampede.ModeLockSpin.String(),
			PhysicalTTL:    120 * time.Second,
			LogicalTTL:     60 * time.Second,
			SoftTTL:        80 * time.Second,
			Alpha:          xstampede.DefaultAlpha,
			LockWait:       100 * time.Millisecond,
			LockLease:      5 * time.Second,
			SpinInterval:   20 * time.Millisecond,
			ReleaseTimeout: 3 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 5,
			Timeout:             30 * time.Second,
			Interval:            60 * time.Second,
			MaxRequests:         1,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Backend: BackendRedis,
			Rule:    xlimit.Rule{Rate: 20, Period: time.Second},
		},
		Metrics: MetricsConfig{Enabled: true, InstrumentationName: "github.com/omeyang/itemcache"},
	}
}

// Load 在默认配置之上叠加配置文件
func Load(src xconf.Config) (Config, error) {
	cfg := DefaultConfig()
	if err := src.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Build 由 stampede 段构造回源策略
func (c StampedeConfig) Build() (xstampede.Policy, error) {
	mode, err := xstampede.ParseMode(c.Policy)
	if err != nil {
		return xstampede.Policy{}, err
	}
	var p xstampede.Policy
	switch mode {
	case xstampede.ModeCacheAside:
		p = xstampede.CacheAside(c.PhysicalTTL)
	case xstampede.ModeLockWait:
		p = xstampede.LockWait(c.PhysicalTTL, c.LockWait, c.LockLease)
	case xstampede.ModeLockSpin:
		p = xstampede.LockSpin(c.PhysicalTTL, c.LockWait, c.LockLease, c.SpinInterval)
	case xstampede.ModeLogicalTTL:
		p = xstampede.LogicalTTL(c.PhysicalTTL, c.LogicalTTL, c.LockWait, c.LockLease)
	case xstampede.ModeProbabilistic:
		p = xstampede.Probabilistic(c.PhysicalTTL, c.SoftTTL, c.Alpha)
	}
	return p, p.Validate()
}

// Validate 在装配前检查配置
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is empty")
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	check(c.Log.Format == "text" || c.Log.Format == "json", "log.format %q must be text or json", c.Log.Format)
	check(oneOf(c.Cache.Backend, BackendRedis, BackendMemory), "cache.backend %q must be redis or memory", c.Cache.Backend)
	check(c.Cache.KeyPrefix != "", "cache.keyPrefix is empty")
	check(oneOf(c.Lock.Backend, BackendRedis, BackendEtcd, BackendLocal), "lock.backend %q must be redis, etcd or local", c.Lock.Backend)
	if c.Lock.Backend == BackendEtcd {
		if err := c.Lock.Etcd.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("lock.etcd: %w", err))
		}
	}
	check(oneOf(c.Backing.Kind, BackendClickHouse, BackendMongo), "backing.kind %q must be clickhouse or mongo", c.Backing.Kind)
	check(c.Backing.LoadTimeout >= 0, "backing.loadTimeout must not be negative")
	if c.Backing.Kind == BackendMongo {
		check(c.Backing.Mongo.Database != "" && c.Backing.Mongo.Collection != "", "backing.mongo database and collection are required")
	}
	if _, err := c.Stampede.Build(); err != nil {
		errs = append(errs, fmt.Errorf("stampede: %w", err))
	}
	if c.Breaker.Enabled {
		check(c.Breaker.FailureRatio >= 0 && c.Breaker.FailureRatio <= 1, "breaker.failureRatio must be in [0, 1]")
	}
	if c.RateLimit.Enabled {
		check(oneOf(c.RateLimit.Backend, BackendRedis, BackendLocal), "ratelimit.backend %q must be redis or local", c.RateLimit.Backend)
		if err := c.RateLimit.Rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("ratelimit.rule: %w", err))
		}
	}
	check(c.Metrics.StatsInterval >= 0, "metrics.statsInterval must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// usesRedis 是否需要 Redis 连接
func (c *Config) usesRedis() bool {
	return c.Cache.Backend == BackendRedis || c.Lock.Backend == BackendRedis ||
		(c.RateLimit.Enabled && c.RateLimit.Backend == BackendRedis)
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
