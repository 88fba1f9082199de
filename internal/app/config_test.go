package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/itemcache/pkg/config/xconf"
	"github.com/omeyang/itemcache/pkg/storage/xstampede"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p, err := cfg.Stampede.Build()
	require.NoError(t, err)
	assert.Equal(t, xstampede.ModeLockSpin, p.Mode)
	assert.Equal(t, 120*time.Second, p.PhysicalTTL)
}

func TestLoad_OverridesKeepDefaults(t *testing.T) {
	// Given
	src, err := xconf.NewFromBytes([]byte(`
cache:
  backend: memory
stampede:
  policy: logical-ttl
  logicalTTL: 30s
backing:
  kind: mongo
  mongo:
    uri: mongodb://db:27017
`), xconf.FormatYAML)
	require.NoError(t, err)

	// When
	cfg, err := Load(src)

	// Then
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, "itemCache", cfg.Cache.KeyPrefix)
	assert.Equal(t, 30*time.Second, cfg.Stampede.LogicalTTL)
	assert.Equal(t, 120*time.Second, cfg.Stampede.PhysicalTTL)
	assert.Equal(t, "mongodb://db:27017", cfg.Backing.Mongo.URI)
	assert.Equal(t, "item", cfg.Backing.Mongo.Collection)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	src, err := xconf.NewFromBytes([]byte("stampede:\n  policy: optimistic\n"), xconf.FormatYAML)
	require.NoError(t, err)

	_, err = Load(src)

	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"empty key prefix", func(c *Config) { c.Cache.KeyPrefix = "" }},
		{"bad lock backend", func(c *Config) { c.Lock.Backend = "zookeeper" }},
		{"etcd without endpoints", func(c *Config) { c.Lock.Backend = BackendEtcd }},
		{"bad backing", func(c *Config) { c.Backing.Kind = "mysql" }},
		{"mongo without collection", func(c *Config) {
			c.Backing.Kind = BackendMongo
			c.Backing.Mongo.Collection = ""
		}},
		{"logical ttl too long", func(c *Config) {
			c.Stampede.Policy = "logical-ttl"
			c.Stampede.LogicalTTL = 10 * time.Minute
		}},
		{"breaker ratio", func(c *Config) { c.Breaker.FailureRatio = 1.5 }},
		{"bad limiter backend", func(c *Config) { c.RateLimit.Backend = "memcached" }},
		{"bad limiter rule", func(c *Config) { c.RateLimit.Rule.Rate = 0 }},
		{"negative stats interval", func(c *Config) { c.Metrics.StatsInterval = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestStampedeConfig_Build_AllModes(t *testing.T) {
	for _, mode := range []xstampede.Mode{
		xstampede.ModeCacheAside,
		xstampede.ModeLockWait,
		xstampede.ModeLockSpin,
		xstampede.ModeLogicalTTL,
		xstampede.ModeProbabilistic,
	} {
		t.Run(mode.String(), func(t *testing.T) {
			sc := DefaultConfig().Stampede
			sc.Policy = mode.String()

			p, err := sc.Build()

			require.NoError(t, err)
			assert.Equal(t, mode, p.Mode)
		})
	}
}

func TestConfig_UsesRedis(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.usesRedis())

	cfg.Cache.Backend = BackendMemory
	cfg.Lock.Backend = BackendLocal
	cfg.RateLimit.Backend = BackendLocal
	assert.False(t, cfg.usesRedis())

	cfg.RateLimit.Backend = BackendRedis
	assert.True(t, cfg.usesRedis())
	cfg.RateLimit.Enabled = false
	assert.False(t, cfg.usesRedis())
}
