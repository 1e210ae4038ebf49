package redis

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/cardiac/log"
)

// DebugHook 记录连接与命令耗时，超过阈值的命令以 warn 输出
type DebugHook struct {
	logger *log.Logger
	slow   time.Duration
}

func NewDebugHook(logger *log.Logger, slow time.Duration) *DebugHook {
	return &DebugHook{logger: logger, slow: slow}
}

func (h *DebugHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.logger.Error().Str("addr", addr).Dur("duration", time.Since(start)).Err(err).Msg("redis dial failed")
		}
		return conn, err
	}
}

// ProcessHook 不记录命令参数，参数中含有访问令牌
func (h *DebugHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		d := time.Since(start)
		switch {
		case err != nil && err != redis.Nil:
			h.logger.Warn().Str("cmd", cmd.FullName()).Dur("duration", d).Err(err).Msg("redis command failed")
		case h.slow > 0 && d > h.slow:
			h.logger.Warn().Str("cmd", cmd.FullName()).Dur("duration", d).Dur("threshold", h.slow).Msg("slow redis command")
		default:
			h.logger.Debug().Str("cmd", cmd.FullName()).Dur("duration", d).Msg("redis command")
		}
		return err
	}
}

func (h *DebugHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}
