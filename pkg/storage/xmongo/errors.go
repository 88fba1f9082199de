package xmongo

import "errors"

var (
	// ErrNilClient 传入了 nil 客户端
	ErrNilClient = errors.New("xmongo: nil client")

	// ErrClosed 客户端已关闭
	ErrClosed = errors.New("xmongo: client closed")

	// ErrEmptyURI 未配置连接串
	ErrEmptyURI = errors.New("xmongo: empty uri")
)
