package websocket

import (
	"net/http"
)

type Option func(*Client)

// WithHeader 握手请求头
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		c.header = header.Clone()
	}
}

func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.config = cfg
	}
}

// WithHandler 注册事件处理器，必须在 Connect 之前调用
func WithHandler(t EventType, h EventHandler) Option {
	return func(c *Client) {
		c.handlers[t] = append(c.handlers[t], h)
	}
}
