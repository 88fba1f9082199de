package xetcd

import (
	"fmt"
	"strings"
	"time"
)

// Config etcd 连接配置
type Config struct {
	Endpoints []string `koanf:"endpoints"`
	Username  string   `koanf:"username"`
	Password  string   `koanf:"password"`

	// DialTimeout 建连超时，默认 5s
	DialTimeout time.Duration `koanf:"dialTimeout"`

	// DialKeepAliveTime 客户端 keepalive ping 间隔，默认 10s
	DialKeepAliveTime time.Duration `koanf:"dialKeepAliveTime"`

	// DialKeepAliveTimeout keepalive ping 等待响应的超时，默认 3s
	DialKeepAliveTimeout time.Duration `koanf:"dialKeepAliveTimeout"`
}

const (
	defaultDialTimeout          = 5 * time.Second
	defaultDialKeepAliveTime    = 10 * time.Second
	defaultDialKeepAliveTimeout = 3 * time.Second
)

// Validate 校验端点格式
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	for i, ep := range c.Endpoints {
		if ep == "" {
			return fmt.Errorf("%w: endpoint[%d] is empty", ErrInvalidEndpoint, i)
		}
		if !strings.Contains(ep, ":") {
			return fmt.Errorf("%w: endpoint[%d]=%q missing port", ErrInvalidEndpoint, i, ep)
		}
	}
	return nil
}

// applyDefaults 返回填充默认值后的副本
func (c *Config) applyDefaults() *Config {
	cfg := *c
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.DialKeepAliveTime <= 0 {
		cfg.DialKeepAliveTime = defaultDialKeepAliveTime
	}
	if cfg.DialKeepAliveTimeout <= 0 {
		cfg.DialKeepAliveTimeout = defaultDialKeepAliveTimeout
	}
	return &cfg
}
