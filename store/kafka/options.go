package kafka

import (
	"github.com/segmentio/kafka-go"

	"github.com/kochabx/cardiac/log"
)

// Option 客户端配置选项
type Option func(*Client)

// WithLogger 设置日志记录器，异步写入失败时使用
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTransport 替换底层传输，主要用于测试
func WithTransport(t kafka.RoundTripper) Option {
	return func(c *Client) {
		c.transport = t
	}
}
