package log

import (
	"github.com/rs/zerolog"

	"github.com/kochabx/cardiac/log/desensitize"
)

// Option Logger 选项函数
type Option func(*Logger)

func WithLevel(level zerolog.Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

func WithCaller() Option {
	return func(l *Logger) {
		l.caller = true
	}
}

// WithDesensitize 输出前经过脱敏钩子
func WithDesensitize(hook *desensitize.Hook) Option {
	return func(l *Logger) {
		l.hook = hook
	}
}
