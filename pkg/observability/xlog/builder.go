package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ReplaceAttrFunc 属性替换函数，用于字段重命名、脱敏或过滤。
// 返回空 Key 的 Attr 时该属性被移除。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// ErrEmptyFilename SetRotation 的文件名为空时返回
var ErrEmptyFilename = errors.New("xlog: rotation filename is empty")

// RotationOption 日志轮转选项
type RotationOption func(*lumberjack.Logger)

// WithMaxSizeMB 单个文件的最大体积（MB），默认 100
func WithMaxSizeMB(mb int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxSize = mb }
}

// WithMaxBackups 保留的历史文件数，0 表示不限
func WithMaxBackups(n int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxBackups = n }
}

// WithMaxAgeDays 历史文件保留天数，0 表示不限
func WithMaxAgeDays(days int) RotationOption {
	return func(l *lumberjack.Logger) { l.MaxAge = days }
}

// WithCompress 是否 gzip 压缩历史文件
func WithCompress(enable bool) RotationOption {
	return func(l *lumberjack.Logger) { l.Compress = enable }
}

// Builder 日志构建器
//
// first-error-wins：遇到第一个配置错误后，Build 直接返回该错误。
type Builder struct {
	output       io.Writer
	levelVar     *slog.LevelVar
	format       string
	addSource    bool
	enableEnrich bool
	replaceAttr  ReplaceAttrFunc
	attrs        []slog.Attr
	closer       io.Closer
	onError      func(error)
	err          error
}

// New 创建构建器，默认 stderr、Info、text，启用 enrich。
func New() *Builder {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	return &Builder{
		output:       os.Stderr,
		levelVar:     lv,
		format:       "text",
		enableEnrich: true,
	}
}

// SetOutput 设置输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值按 text 处理。
func (b *Builder) SetFormat(format string) *Builder {
	switch normalized := strings.ToLower(strings.TrimSpace(format)); normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.setErr(fmt.Errorf("xlog: unknown format %q", format))
	}
	return b
}

// SetAddSource 是否记录源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否从 ctx 注入 request_id/trace_id/span_id，默认启用。
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enableEnrich = enable
	return b
}

// SetRotation 输出到按大小轮转的文件，cleanup 时关闭。
func (b *Builder) SetRotation(filename string, opts ...RotationOption) *Builder {
	if strings.TrimSpace(filename) == "" {
		b.setErr(ErrEmptyFilename)
		return b
	}
	lj := &lumberjack.Logger{Filename: filename, MaxSize: 100}
	for _, opt := range opts {
		opt(lj)
	}
	b.output = lj
	b.closer = lj
	return b
}

// SetAttrs 添加写入每条日志的固定属性（如 service、version）。
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// SetOnError 设置 Handler.Handle 失败时的回调。回调在热路径同步执行。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// SetReplaceAttr 设置属性替换函数
//
//	xlog.New().SetReplaceAttr(func(_ []string, a slog.Attr) slog.Attr {
//		if a.Key == "password" {
//			return slog.String(a.Key, "***")
//		}
//		return a
//	})
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build 构建 Logger
//
// 返回的 cleanup 幂等，用于关闭轮转文件。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	if b.output == nil {
		return nil, nil, errors.New("xlog: output is nil")
	}

	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.replaceAttr,
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}

	if b.enableEnrich {
		eh, err := NewEnrichHandler(handler)
		if err != nil {
			return nil, nil, err
		}
		handler = eh
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	return newLogger(handler, b.levelVar, b.addSource, b.onError), b.cleanup(), nil
}

func (b *Builder) cleanup() func() error {
	var once sync.Once
	closer := b.closer
	return func() error {
		var err error
		once.Do(func() {
			if closer != nil {
				err = closer.Close()
			}
		})
		return err
	}
}
