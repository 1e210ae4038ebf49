package http

import (
	"context"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/metrics"
	"github.com/kochabx/cardiac/transport"
)

var _ transport.Server = (*Server)(nil)

const (
	defaultName = "status"
	defaultAddr = "127.0.0.1:8787"
)

// Meta is the metadata of the server.
type Meta struct {
	Name string
}

type Server struct {
	meta    Meta
	options Options
	logger  *log.Logger
	server  *http.Server
}

type Option func(*Server)

func WithMeta(meta Meta) Option {
	return func(s *Server) {
		s.meta = meta
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func WithMetricsOptions(m MetricsOption) Option {
	return func(s *Server) {
		if err := m.init(); err != nil {
			log.Error().Err(err).Send()
			return
		}
		s.options.Metrics = m
	}
}

func WithHealthOptions(h HealthOption) Option {
	return func(s *Server) {
		if err := h.init(); err != nil {
			log.Error().Err(err).Send()
			return
		}
		s.options.Health = h
	}
}

func NewServer(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		logger: log.G,
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.meta.Name == "" {
		s.meta.Name = defaultName
	}

	additionalHandlers(s)

	return s
}

// Handler 返回挂载了附加路由的 handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Run() error {
	if err := transport.ValidateAddress(s.server.Addr); err != nil {
		s.logger.Warn().Err(err).Msgf("using default address: %s", defaultAddr)
		s.server.Addr = defaultAddr
	}
	if !transport.Loopback(s.server.Addr) {
		// 状态接口没有认证
		s.logger.Warn().Str("addr", s.server.Addr).Msg("status API is reachable beyond loopback")
	}
	s.logger.Info().Msgf("%s server listening on %s", s.meta.Name, s.server.Addr)

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Serve 在已有的 listener 上提供服务
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Msgf("%s server listening on %s", s.meta.Name, ln.Addr())
	err := s.server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func additionalHandlers(s *Server) {
	if r, ok := s.server.Handler.(*gin.Engine); ok {
		handleMetrics(s, r)
		handleHealth(s, r)
	}
}

func handleMetrics(s *Server, r *gin.Engine) {
	if s.options.Metrics.Enabled {
		if s.options.Metrics.EnabledGoCollector {
			metrics.Prom.WithGoCollectorRuntimeMetrics()
		}
		if s.options.Metrics.EnabledBuildInfoCollector {
			metrics.Prom.WithBuildInfoCollector()
		}

		r.GET(s.options.Metrics.Path, gin.WrapH(promhttp.HandlerFor(metrics.Prom.Registry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		})))
	}
}

func handleHealth(s *Server, r *gin.Engine) {
	if s.options.Health.Enabled {
		r.GET(s.options.Health.Path, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}
