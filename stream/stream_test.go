package stream

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/backend/backendtest"
	"github.com/kochabx/cardiac/chart"
	"github.com/kochabx/cardiac/errors"
	ws "github.com/kochabx/cardiac/transport/websocket"
)

func newDialer(t *testing.T, scale float64) (*backendtest.Server, *Dialer, string) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	c, err := backend.New(backend.Config{URL: srv.URL})
	require.NoError(t, err)
	d, err := NewDialer(c, Config{AmplitudeScale: scale})
	require.NoError(t, err)
	return srv, d, backendtest.IssueToken("dev-1", backend.RoleUser, time.Hour)
}

// waitLen 等待窗口中的真实样本数达到 n
func waitLen(t *testing.T, w *chart.Window, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return w.Len() >= n }, 5*time.Second, 10*time.Millisecond)
}

func TestDialStreamsSamplesInOrder(t *testing.T) {
	srv, d, token := newDialer(t, 2)
	win := chart.NewWindow(chart.MaxPoints)

	conn, err := d.Dial(context.Background(), "dev-1", token, win)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, ws.StateOpen, conn.State())

	frames := srv.Frames("dev-1")
	for _, f := range []string{"0.2", "NaN-garbage", " 0.4 ", `{"value": -0.6}`} {
		frames <- f
	}
	waitLen(t, win, 3)
	assert.Equal(t, []float64{0.1, 0.2, -0.3}, win.Samples())
	assert.Equal(t, "dev-1", conn.DeviceID())
}

func TestGarbageLeavesWindowUnchanged(t *testing.T) {
	srv, d, token := newDialer(t, 1)
	win := chart.NewWindow(chart.MaxPoints)
	conn, err := d.Dial(context.Background(), "dev-1", token, win)
	require.NoError(t, err)
	defer conn.Close()

	frames := srv.Frames("dev-1")
	frames <- "0.5"
	waitLen(t, win, 1)
	before := win.Slots()

	frames <- "NaN-garbage"
	frames <- "0.25"
	waitLen(t, win, 2)
	assert.Equal(t, []float64{0.5, 0.25}, win.Samples(), "无效帧被丢弃且连接保持")
	assert.Len(t, before, chart.MaxPoints)
	assert.Equal(t, ws.StateOpen, conn.State())
}

func TestServerClose(t *testing.T) {
	srv, d, token := newDialer(t, 1)
	conn, err := d.Dial(context.Background(), "dev-1", token, SinkFunc(func(float64) {}))
	require.NoError(t, err)

	srv.CloseStream("dev-1", websocket.CloseInternalServerErr)
	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("连接未关闭")
	}
	assert.Equal(t, ws.StateClosed, conn.State())
	err = conn.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStreamConnection)
	assert.Equal(t, "1011", errors.FromError(err).GetMetadata()["close_code"])
}

func TestLocalCloseStopsPushes(t *testing.T) {
	srv, d, token := newDialer(t, 1)
	win := chart.NewWindow(chart.MaxPoints)
	conn, err := d.Dial(context.Background(), "dev-1", token, win)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Err())
	srv.Frames("dev-1") <- "0.9"
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, win.Len())
}

func TestDialRejected(t *testing.T) {
	_, d, _ := newDialer(t, 1)
	_, err := d.Dial(context.Background(), "dev-1", "bad-token", SinkFunc(func(float64) {}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStreamConnection)
}

func TestNewDialerConfig(t *testing.T) {
	c, err := backend.New(backend.Config{URL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	d, err := NewDialer(c, Config{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.cfg.AmplitudeScale)
	assert.Equal(t, 10*time.Second, d.cfg.WebSocket.HandshakeTimeout)

	_, err = NewDialer(c, Config{AmplitudeScale: -2})
	require.Error(t, err)
	assert.Equal(t, 400, errors.Code(err))
}
