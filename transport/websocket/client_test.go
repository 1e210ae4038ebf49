package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// newServer 握手后依次发送 frames，然后按 closeCode 关闭（0 表示保持连接直到客户端关闭）
func newServer(t *testing.T, frames []string, closeCode int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if closeCode != 0 {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, "bye"))
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func authHeader() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer tok")
	return h
}

func TestClientOrderedMessages(t *testing.T) {
	frames := make([]string, 200)
	for i := range frames {
		frames[i] = strings.Repeat("x", i%7) + string(rune('a'+i%26))
	}
	srv := newServer(t, frames, websocket.CloseNormalClosure)
	defer srv.Close()

	var mu sync.Mutex
	var got []string
	c, err := NewClient(
		WithHeader(authHeader()),
		WithHandler(EventMessage, func(e Event) {
			mu.Lock()
			got = append(got, string(e.Data))
			mu.Unlock()
		}),
	)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background(), wsURL(srv)))

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("连接未关闭")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, frames, got)
	assert.Equal(t, StateClosed, c.State())
	assert.NoError(t, c.Err(), "正常关闭不应返回错误")
}

func TestClientServerCloseCode(t *testing.T) {
	srv := newServer(t, nil, websocket.ClosePolicyViolation)
	defer srv.Close()

	disconnected := make(chan Event, 1)
	c, err := NewClient(
		WithHeader(authHeader()),
		WithHandler(EventDisconnected, func(e Event) { disconnected <- e }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background(), wsURL(srv)))

	select {
	case e := <-disconnected:
		assert.Equal(t, websocket.ClosePolicyViolation, CloseCode(e.Error))
	case <-time.After(5 * time.Second):
		t.Fatal("未收到断开事件")
	}
	assert.Equal(t, websocket.ClosePolicyViolation, CloseCode(c.Err()))
}

func TestClientClose(t *testing.T) {
	srv := newServer(t, []string{"1"}, 0)
	defer srv.Close()

	connected := make(chan struct{}, 1)
	c, err := NewClient(
		WithHeader(authHeader()),
		WithHandler(EventConnected, func(Event) { connected <- struct{}{} }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background(), wsURL(srv)))
	<-connected
	assert.Equal(t, StateOpen, c.State())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
	assert.NoError(t, c.Err())

	assert.Error(t, c.Connect(context.Background(), wsURL(srv)), "客户端不可复用")
}

func TestClientHandshakeRejected(t *testing.T) {
	srv := newServer(t, nil, 0)
	defer srv.Close()

	c, err := NewClient()
	require.NoError(t, err)
	err = c.Connect(context.Background(), wsURL(srv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, StateClosed, c.State())
	<-c.Done()
}

func TestClientInvalidURL(t *testing.T) {
	c, err := NewClient()
	require.NoError(t, err)
	assert.Error(t, c.Connect(context.Background(), "http://example.com"))
	assert.Equal(t, StateIdle, c.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(WithConfig(Config{PingInterval: -1}))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, c.config.HandshakeTimeout)
	assert.Equal(t, time.Duration(-1), c.config.PingInterval, "显式设置的值不被默认值覆盖")
	assert.Equal(t, 4096, c.dialer.ReadBufferSize)
}
