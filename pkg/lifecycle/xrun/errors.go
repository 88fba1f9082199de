package xrun

import (
	"errors"
	"os"
)

var (
	// ErrNilFunc 服务函数为 nil
	ErrNilFunc = errors.New("xrun: nil function")
	// ErrNilServer HTTPServer 的 server 为 nil
	ErrNilServer = errors.New("xrun: nil server")
	// ErrInvalidInterval Ticker 的间隔必须为正
	ErrInvalidInterval = errors.New("xrun: interval must be positive")
)

// SignalError 收到退出信号，作为组 ctx 的取消原因。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return "xrun: received signal " + e.Signal.String()
}
