// Package stream 订阅设备的实时心电数据流并将样本写入图表缓冲区。
package stream

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/core/validator"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/metrics"
	"github.com/kochabx/cardiac/transport/websocket"
)

// Config 数据流配置
type Config struct {
	// AmplitudeScale 样本除以该值后写入图表，使波形落在 [-1, 1]
	AmplitudeScale float64          `json:"amplitude_scale" mapstructure:"amplitude_scale" default:"1" validate:"gt=0"`
	WebSocket      websocket.Config `json:"websocket" mapstructure:"websocket"`
}

// URLBuilder 生成设备数据流地址
type URLBuilder interface {
	StreamURL(deviceID string) (string, error)
}

// Dialer 创建数据流连接
type Dialer struct {
	urls   URLBuilder
	cfg    Config
	logger *log.Logger
}

type Option func(*Dialer)

func WithLogger(l *log.Logger) Option {
	return func(d *Dialer) {
		d.logger = l
	}
}

// NewDialer 填充默认值并校验配置
func NewDialer(urls URLBuilder, cfg Config, opts ...Option) (*Dialer, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := validator.Validate.Struct(&cfg); err != nil {
		return nil, errors.Wrap(err, 400, "invalid stream config")
	}
	d := &Dialer{urls: urls, cfg: cfg, logger: log.G}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

var states = []string{
	websocket.StateConnecting.String(),
	websocket.StateOpen.String(),
	websocket.StateClosed.String(),
}

// Conn 一个设备的数据流连接，关闭后不会重连
type Conn struct {
	deviceID string
	client   *websocket.Client
	local    atomic.Bool
}

// Dial 以 token 认证连接 deviceID 的数据流，样本按到达顺序写入 sink
func (d *Dialer) Dial(ctx context.Context, deviceID, token string, sink Sink) (*Conn, error) {
	rawURL, err := d.urls.StreamURL(deviceID)
	if err != nil {
		return nil, errors.StreamConnectionError(deviceID, err)
	}
	c := &Conn{deviceID: deviceID}
	logger := d.logger.With().Str("device_id", deviceID).Logger()
	received := metrics.Prom.SamplesReceived.WithLabelValues(deviceID)
	dropped := metrics.Prom.SamplesDropped.WithLabelValues(deviceID)
	scale := d.cfg.AmplitudeScale

	client, err := websocket.NewClient(
		websocket.WithConfig(d.cfg.WebSocket),
		websocket.WithHeader(backend.StreamHeader(token)),
		websocket.WithHandler(websocket.EventConnected, func(websocket.Event) {
			metrics.Prom.SetStreamState(websocket.StateOpen.String(), states...)
			logger.Info().Msg("stream connection established")
		}),
		websocket.WithHandler(websocket.EventMessage, func(e websocket.Event) {
			v, err := ParseSample(e.Data)
			if err != nil {
				dropped.Inc()
				logger.Warn().Err(err).Msg("dropping stream sample")
				return
			}
			received.Inc()
			sink.Push(v / scale)
		}),
		websocket.WithHandler(websocket.EventDisconnected, func(e websocket.Event) {
			metrics.Prom.SetStreamState(websocket.StateClosed.String(), states...)
			ev := logger.Info()
			if code := websocket.CloseCode(e.Error); code != 0 {
				ev = ev.Int("close_code", code)
			}
			ev.Msg("stream connection closed")
		}),
	)
	if err != nil {
		return nil, errors.StreamConnectionError(deviceID, err)
	}
	c.client = client

	metrics.Prom.SetStreamState(websocket.StateConnecting.String(), states...)
	if err := c.client.Connect(ctx, rawURL); err != nil {
		return nil, errors.StreamConnectionError(deviceID, err)
	}
	return c, nil
}

func (c *Conn) DeviceID() string { return c.deviceID }

// State connecting、open 或 closed
func (c *Conn) State() websocket.State { return c.client.State() }

// Done 连接结束后关闭
func (c *Conn) Done() <-chan struct{} { return c.client.Done() }

// Err 连接被服务端或网络关闭时返回 ErrStreamConnection，本地关闭或仍在连接时为 nil
func (c *Conn) Err() error {
	select {
	case <-c.client.Done():
	default:
		return nil
	}
	if c.local.Load() {
		return nil
	}
	cause := c.client.Err()
	e := errors.StreamConnectionError(c.deviceID, cause)
	if code := websocket.CloseCode(cause); code != 0 {
		e = e.WithMetadata(map[string]string{"close_code": strconv.Itoa(code)})
	}
	return e
}

// Close 关闭连接并等待读循环退出，之后不会再有样本写入
func (c *Conn) Close() error {
	c.local.Store(true)
	return c.client.Close()
}
