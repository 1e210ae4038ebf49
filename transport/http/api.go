package http

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/chart"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/monitor"
	"github.com/kochabx/cardiac/persistence"
	"github.com/kochabx/cardiac/session"
	"github.com/kochabx/cardiac/transport/http/middleware"
	"github.com/kochabx/cardiac/transport/http/response"
)

// Monitor 状态接口依赖的监测视图
type Monitor interface {
	Status() monitor.Status
	Window() *chart.Window
}

type Sessions interface {
	Session() session.Session
}

type Toggler interface {
	State() persistence.State
	Toggle(ctx context.Context) error
}

// API 本地状态接口
type API struct {
	Monitor  Monitor
	Sessions Sessions
	Toggler  Toggler
	// Snapshot 渲染 /api/window.png，为 nil 时使用默认尺寸
	Snapshot *chart.PNG
	// ToggleTimeout 单次开关请求的超时
	ToggleTimeout time.Duration
	Logger        *log.Logger
}

// SessionView 对外暴露的会话信息，不含令牌
type SessionView struct {
	Authenticated bool              `json:"authenticated"`
	Loading       bool              `json:"loading"`
	DeviceID      string            `json:"device_id,omitempty"`
	Role          backend.Role      `json:"role,omitempty"`
	Metadata      *session.Metadata `json:"metadata,omitempty"`
}

// WindowView 窗口内的样本
type WindowView struct {
	Capacity int       `json:"capacity"`
	Samples  []float64 `json:"samples"`
}

// NewHandler 构建挂载了 API 路由的 gin 引擎
func NewHandler(api *API) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.GinLoggerWithConfig(middleware.LoggerConfig{
			Logger:    api.Logger,
			SkipPaths: []string{"/health", "/metrics", "/api/window"},
		}),
		middleware.Recovery(api.Logger),
	)

	g := r.Group("/api")
	g.GET("/session", api.session)
	g.GET("/status", api.status)
	g.GET("/window", api.window)
	g.GET("/window.png", api.windowPNG)
	g.GET("/persistence", api.persistence)
	g.POST("/persistence/toggle", api.toggle)
	return r
}

func (a *API) session(c *gin.Context) {
	s := a.Sessions.Session()
	response.GinJSON(c, SessionView{
		Authenticated: s.Authenticated,
		Loading:       s.Loading,
		DeviceID:      s.DeviceID,
		Role:          s.Role,
		Metadata:      s.Metadata,
	})
}

func (a *API) status(c *gin.Context) {
	response.GinJSON(c, a.Monitor.Status())
}

func (a *API) window(c *gin.Context) {
	w := a.Monitor.Window()
	response.GinJSON(c, WindowView{Capacity: w.Cap(), Samples: w.Samples()})
}

func (a *API) windowPNG(c *gin.Context) {
	p := a.Snapshot
	if p == nil {
		p = &chart.PNG{}
	}
	var buf bytes.Buffer
	if err := p.Render(&buf, a.Monitor.Window().Slots()); err != nil {
		response.GinJSONE(c, errors.Wrap(err, http.StatusConflict, "window not ready"))
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (a *API) persistence(c *gin.Context) {
	response.GinJSON(c, a.Toggler.State())
}

func (a *API) toggle(c *gin.Context) {
	ctx := c.Request.Context()
	if a.ToggleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.ToggleTimeout)
		defer cancel()
	}
	if err := a.Toggler.Toggle(ctx); err != nil {
		response.GinJSONE(c, err)
		return
	}
	response.GinJSON(c, a.Toggler.State())
}
