package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kochabx/cardiac/core/tag"
)

const closeWait = 5 * time.Second

// Client 单次连接的 WebSocket 客户端：连接断开后不会重连，需要新建 Client
type Client struct {
	config   Config
	dialer   *websocket.Dialer
	header   http.Header
	handlers map[EventType][]EventHandler

	conn    *websocket.Conn
	state   atomic.Int32
	closing atomic.Bool

	mu   sync.Mutex
	err  error
	done chan struct{}
	once sync.Once
}

// NewClient 按选项创建客户端，配置中未设置的字段使用默认值
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		handlers: make(map[EventType][]EventHandler),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := tag.ApplyDefaults(&c.config); err != nil {
		return nil, err
	}
	c.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.HandshakeTimeout,
		ReadBufferSize:   c.config.ReadBufferSize,
		WriteBufferSize:  c.config.WriteBufferSize,
	}
	return c, nil
}

// Connect 建立连接并启动读循环，只能调用一次
func (c *Client) Connect(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid websocket scheme: %s", u.Scheme)
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return errors.New("websocket client already used")
	}

	conn, resp, err := c.dialer.DialContext(ctx, rawURL, c.header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		c.finish(err)
		return err
	}
	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		c.finish(nil)
		return errors.New("websocket client closed during handshake")
	}
	c.conn = conn
	c.mu.Unlock()
	conn.SetReadLimit(c.config.MaxMessageSize)
	if c.config.PingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		})
	}

	c.state.Store(int32(StateOpen))
	c.emit(Event{Type: EventConnected, Timestamp: time.Now()})

	stop := make(chan struct{})
	go c.readLoop(stop)
	if c.config.PingInterval > 0 {
		go c.pingLoop(stop)
	}
	return nil
}

// readLoop 唯一的读 goroutine，消息在此同步派发
func (c *Client) readLoop(stop chan struct{}) {
	var err error
	defer func() {
		close(stop)
		_ = c.conn.Close()
		c.finish(err)
	}()

	for {
		mt, data, rerr := c.conn.ReadMessage()
		if rerr != nil {
			if !c.closing.Load() && !websocket.IsCloseError(rerr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = rerr
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		c.emit(Event{Type: EventMessage, Data: data, Timestamp: time.Now()})
	}
}

func (c *Client) pingLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *Client) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.state.Store(int32(StateClosed))
		if err != nil {
			c.emit(Event{Type: EventError, Error: err, Timestamp: time.Now()})
		}
		c.emit(Event{Type: EventDisconnected, Error: err, Timestamp: time.Now()})
		close(c.done)
	})
}

// Close 发送关闭帧并等待读循环退出，可重复调用
func (c *Client) Close() error {
	if c.closing.Swap(true) {
		<-c.done
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.finish(nil)
		return nil
	}
	deadline := time.Now().Add(c.config.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	select {
	case <-c.done:
	case <-time.After(closeWait):
		_ = conn.Close()
		<-c.done
	}
	return nil
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// Done 连接结束后关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 非正常断开的原因，正常关闭为 nil
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// CloseCode 服务端关闭帧中的状态码，没有时返回 0
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

func (c *Client) emit(e Event) {
	for _, h := range c.handlers[e.Type] {
		if h != nil {
			h(e)
		}
	}
}
