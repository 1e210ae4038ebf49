package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/cardiac/log"
)

// Recovery 捕获 handler 中的 panic，记录后返回 500
func Recovery(l *log.Logger) gin.HandlerFunc {
	l = logger(l)
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				l.Error().
					Str("error", fmt.Sprintf("%v", err)).
					Str("method", c.Request.Method).
					Str("uri", c.Request.RequestURI).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
