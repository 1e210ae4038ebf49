package middleware

import (
	"github.com/kochabx/cardiac/log"
)

// logger 为 nil 时使用全局日志
func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.G
	}
	return l
}
