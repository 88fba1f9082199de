package xetcd

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("xetcd: config is nil")

	// ErrNoEndpoints 未配置 etcd 端点
	ErrNoEndpoints = errors.New("xetcd: no endpoints configured")

	// ErrInvalidEndpoint endpoint 应为 host:port
	ErrInvalidEndpoint = errors.New("xetcd: invalid endpoint format, expected host:port")

	// ErrClientClosed 客户端已关闭
	ErrClientClosed = errors.New("xetcd: client is closed")
)
