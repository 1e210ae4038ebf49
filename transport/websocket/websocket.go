package websocket

import (
	"time"
)

// State 连接状态
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// EventType 事件类型
type EventType int

const (
	EventConnected EventType = iota
	EventMessage
	EventDisconnected
	EventError
)

// Event 由读循环同步派发，同一连接上的事件严格按到达顺序处理
type Event struct {
	Type      EventType
	Data      []byte
	Error     error
	Timestamp time.Time
}

// EventHandler 事件处理函数，不应长时间阻塞
type EventHandler func(Event)

// Config WebSocket 客户端配置
type Config struct {
	HandshakeTimeout time.Duration `json:"handshake_timeout" mapstructure:"handshake_timeout" default:"10s"`
	WriteTimeout     time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"5s"`
	// 小于 0 时不发送 ping，读超时也随之关闭
	PingInterval    time.Duration `json:"ping_interval" mapstructure:"ping_interval" default:"30s"`
	PongWait        time.Duration `json:"pong_wait" mapstructure:"pong_wait" default:"60s"`
	MaxMessageSize  int64         `json:"max_message_size" mapstructure:"max_message_size" default:"65536"`
	ReadBufferSize  int           `json:"read_buffer_size" mapstructure:"read_buffer_size" default:"4096"`
	WriteBufferSize int           `json:"write_buffer_size" mapstructure:"write_buffer_size" default:"1024"`
}
