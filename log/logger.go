package log

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/log/desensitize"
	"github.com/kochabx/cardiac/log/writer"
)

// Logger 日志记录器
type Logger struct {
	zerolog.Logger
	level  zerolog.Level
	caller bool
	hook   *desensitize.Hook
	closer io.Closer
}

func init() {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// Close 关闭文件输出
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Hook 返回脱敏钩子，未启用时为 nil
func (l *Logger) Hook() *desensitize.Hook {
	return l.hook
}

// NewWriter 创建输出到 w 的 Logger
func NewWriter(w io.Writer, opts ...Option) *Logger {
	l := &Logger{level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(l)
	}
	if l.hook != nil {
		w = desensitize.NewWriter(w, l.hook)
	}
	ctx := zerolog.New(w).Level(l.level).With().Timestamp()
	if l.caller {
		ctx = ctx.Caller()
	}
	l.Logger = ctx.Logger()
	return l
}

// New 创建控制台 Logger
func New(opts ...Option) *Logger {
	return NewWriter(writer.Console(nil), opts...)
}

// NewFromConfig 按配置创建 Logger，file/both 模式下需要调用 Close
func NewFromConfig(c Config) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	opts := []Option{WithLevel(level)}
	if c.Caller {
		opts = append(opts, WithCaller())
	}
	if !c.Plaintext {
		opts = append(opts, WithDesensitize(desensitize.NewHook(desensitize.BuiltinRules()...)))
	}

	if c.Output == "console" {
		return New(opts...), nil
	}

	fw, err := writer.File(c.File.rotateConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create file writer: %w", err)
	}
	var w io.Writer = fw
	if c.Output == "both" {
		w = zerolog.MultiLevelWriter(fw, writer.Console(nil))
	}
	l := NewWriter(w, opts...)
	l.closer = fw
	return l, nil
}
