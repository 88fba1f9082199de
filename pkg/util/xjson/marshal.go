package xjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrMarshal 序列化失败
var ErrMarshal = errors.New("xjson: marshal failed")

// PrettyE 将 v 序列化为两空格缩进的 JSON。
func PrettyE(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	return string(data), nil
}

// Pretty 同 PrettyE，失败时返回 "<marshal error: ...>"，用于日志与命令行输出。
func Pretty(v any) string {
	s, err := PrettyE(v)
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	return s
}

// Write 以 status 写出 JSON 响应体。先完成序列化，失败时返回 500 而不是半截响应。
func Write(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return fmt.Errorf("%w: %w", ErrMarshal, err)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(append(data, '\n'))
	return err
}

// ErrorBody 错误响应体
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError 写出 {"error": msg}
func WriteError(w http.ResponseWriter, status int, msg string) error {
	return Write(w, status, ErrorBody{Error: msg})
}
