package xclickhouse

import "errors"

var (
	// ErrNilConn 传入了 nil 连接
	ErrNilConn = errors.New("xclickhouse: nil connection")

	// ErrClosed 连接已关闭
	ErrClosed = errors.New("xclickhouse: connection closed")

	// ErrNoAddrs 未配置地址
	ErrNoAddrs = errors.New("xclickhouse: no addresses configured")
)
