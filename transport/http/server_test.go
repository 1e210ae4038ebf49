package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/chart"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/monitor"
	"github.com/kochabx/cardiac/persistence"
	"github.com/kochabx/cardiac/session"
	"github.com/kochabx/cardiac/transport/http/response"
)

type fakeMonitor struct {
	status monitor.Status
	win    *chart.Window
}

func (f *fakeMonitor) Status() monitor.Status { return f.status }
func (f *fakeMonitor) Window() *chart.Window  { return f.win }

type fakeSessions session.Session

func (f fakeSessions) Session() session.Session { return session.Session(f) }

type fakeToggler struct {
	state persistence.State
	err   error
	calls int
}

func (f *fakeToggler) State() persistence.State { return f.state }

func (f *fakeToggler) Toggle(context.Context) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.state.Enabled = !f.state.Enabled
	return nil
}

func newTestServer(t *testing.T, toggler *fakeToggler) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	win := chart.NewWindow(40)
	for _, v := range []float64{0.1, 0.5, -0.2} {
		win.Push(v)
	}
	api := &API{
		Monitor: &fakeMonitor{
			status: monitor.Status{Mounted: true, DeviceID: "dev-1", Stream: "open", Elapsed: "00:00:05", Samples: 3},
			win:    win,
		},
		Sessions: fakeSessions{
			Authenticated: true,
			DeviceID:      "dev-1",
			Role:          backend.RoleAdmin,
			Token:         "secret-token",
			Metadata:      &session.Metadata{DeviceID: "dev-1", SessionID: "s-9"},
		},
		Toggler:       toggler,
		ToggleTimeout: time.Second,
		Logger:        log.NewWriter(io.Discard),
	}
	return NewServer("127.0.0.1:0", NewHandler(api),
		WithLogger(log.NewWriter(io.Discard)),
		WithMetricsOptions(MetricsOption{Enabled: true}),
		WithHealthOptions(HealthOption{Enabled: true}),
	)
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) response.Response {
	t.Helper()
	r := response.Response{Data: v}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeToggler{})

	w := do(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cardiac_chart_window_length")
}

func TestSessionHidesToken(t *testing.T) {
	s := newTestServer(t, &fakeToggler{})

	w := do(s, http.MethodGet, "/api/session")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-token")

	var view SessionView
	decodeData(t, w, &view)
	assert.True(t, view.Authenticated)
	assert.Equal(t, backend.RoleAdmin, view.Role)
	require.NotNil(t, view.Metadata)
	assert.Equal(t, "s-9", view.Metadata.SessionID)
}

func TestStatusAndWindow(t *testing.T) {
	s := newTestServer(t, &fakeToggler{})

	var st monitor.Status
	decodeData(t, do(s, http.MethodGet, "/api/status"), &st)
	assert.Equal(t, "00:00:05", st.Elapsed)
	assert.Equal(t, "dev-1", st.DeviceID)

	var win WindowView
	decodeData(t, do(s, http.MethodGet, "/api/window"), &win)
	assert.Equal(t, 40, win.Capacity)
	assert.Equal(t, []float64{0.1, 0.5, -0.2}, win.Samples)
}

func TestWindowPNG(t *testing.T) {
	s := newTestServer(t, &fakeToggler{})

	w := do(s, http.MethodGet, "/api/window.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestToggle(t *testing.T) {
	toggler := &fakeToggler{}
	s := newTestServer(t, toggler)

	w := do(s, http.MethodPost, "/api/persistence/toggle")
	require.Equal(t, http.StatusOK, w.Code)
	var st persistence.State
	decodeData(t, w, &st)
	assert.True(t, st.Enabled)
	assert.Equal(t, 1, toggler.calls)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/persistence/toggle").Code)
}

func TestToggleErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errors.ErrForbidden, http.StatusForbidden},
		{errors.ErrRedirectLogin, http.StatusUnauthorized},
		{errors.ErrToggleInFlight, http.StatusConflict},
		{errors.PersistenceToggleError("dev-1", true, io.ErrUnexpectedEOF), http.StatusBadGateway},
	}
	for _, tc := range cases {
		s := newTestServer(t, &fakeToggler{err: tc.err})
		w := do(s, http.MethodPost, "/api/persistence/toggle")
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Equal(t, tc.status, decodeData(t, w, nil).Code)
	}
}

func TestServeAndShutdown(t *testing.T) {
	s := newTestServer(t, &fakeToggler{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}
