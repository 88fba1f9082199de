package xrun

import (
	"os"
	"syscall"

	"github.com/omeyang/itemcache/pkg/observability/xlog"
)

// Option 服务组选项
type Option func(*groupOptions)

type groupOptions struct {
	logger          xlog.Logger
	name            string
	signals         []os.Signal
	noSignalHandler bool
}

func defaultOptions() *groupOptions {
	return &groupOptions{logger: xlog.Default(), name: "xrun"}
}

// WithLogger 设置日志，默认 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(o *groupOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName 设置组名，出现在日志中
func WithName(name string) Option {
	return func(o *groupOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 覆盖监听的退出信号
func WithSignals(signals ...os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *groupOptions) { o.signals = copied }
}

// WithoutSignalHandler 不监听信号，测试或嵌入其他框架时使用
func WithoutSignalHandler() Option {
	return func(o *groupOptions) { o.noSignalHandler = true }
}

// DefaultSignals SIGHUP、SIGINT、SIGTERM、SIGQUIT
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}
