package xretry

import "errors"

// PermanentError 标记不应重试的错误，如配置错误、认证失败。
type PermanentError struct {
	Err error
}

// NewPermanentError 包装 err 为永久性错误
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent 检查错误链中是否有 PermanentError
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
