package log

import (
	"github.com/rs/zerolog"

	"github.com/kochabx/cardiac/log/desensitize"
)

// G 全局日志实例，默认脱敏令牌与密码
var G = New(WithDesensitize(desensitize.NewHook(desensitize.BuiltinRules()...)))

// SetGlobalLogger 替换全局日志记录器
func SetGlobalLogger(l *Logger) {
	G = l
}

func Debug() *zerolog.Event { return G.Debug() }
func Info() *zerolog.Event  { return G.Info() }
func Warn() *zerolog.Event  { return G.Warn() }

// Error 返回 error 级别的日志事件（带堆栈）
func Error() *zerolog.Event {
	return G.Error().Stack()
}

func Debugf(format string, args ...any) { G.Debug().Msgf(format, args...) }
func Infof(format string, args ...any)  { G.Info().Msgf(format, args...) }
func Warnf(format string, args ...any)  { G.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { G.Error().Stack().Msgf(format, args...) }
