// Package monitor 组合会话、数据流、图表缓冲区、计时器与持久化开关，对应实时监测页面。
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/cardiac/chart"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/persistence"
	"github.com/kochabx/cardiac/session"
	"github.com/kochabx/cardiac/stream"
	"github.com/kochabx/cardiac/timer"
)

type Sessions interface {
	Session() session.Session
	VerifyToken(ctx context.Context) session.Session
	Subscribe(fn func(session.Session)) (unsubscribe func())
}

type Dialer interface {
	Dial(ctx context.Context, deviceID, token string, sink stream.Sink) (*stream.Conn, error)
}

type Persistence interface {
	State() persistence.State
	Reconcile(md *session.Metadata)
	Reset()
	Subscribe(fn func(persistence.Change)) (unsubscribe func())
}

// Status 监测状态快照
type Status struct {
	Mounted     bool              `json:"mounted"`
	DeviceID    string            `json:"device_id"`
	Stream      string            `json:"stream"`
	Elapsed     string            `json:"elapsed"`
	Persistence persistence.State `json:"persistence"`
	Samples     int               `json:"samples"`
}

type Monitor struct {
	sessions Sessions
	dialer   Dialer
	persist  Persistence
	window   *chart.Window
	timer    *timer.Timer
	tee      func(deviceID string) stream.Sink
	logger   *log.Logger

	mu       sync.Mutex
	mounted  bool
	ctx      context.Context
	cancel   context.CancelFunc
	conn     *stream.Conn
	deviceID string // 当前数据流所属设备
	target   string // 会话中的设备，切换期间领先于 deviceID
	unsubs   []func()
	lost     chan error
}

type options struct {
	clock  clockwork.Clock
	onTick func(string)
	tee    func(string) stream.Sink
	logger *log.Logger
}

type Option func(*options)

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithOnTick 计时器每次刷新时的回调，在计时 goroutine 中调用，不能调用 Monitor 的方法
func WithOnTick(fn func(elapsed string)) Option {
	return func(o *options) { o.onTick = fn }
}

// WithTee 为每个设备连接额外挂接一个样本 Sink，例如 Kafka 旁路
func WithTee(fn func(deviceID string) stream.Sink) Option {
	return func(o *options) { o.tee = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func New(sessions Sessions, dialer Dialer, persist Persistence, window *chart.Window, opts ...Option) *Monitor {
	o := options{clock: clockwork.NewRealClock(), logger: log.G}
	for _, opt := range opts {
		opt(&o)
	}
	return &Monitor{
		sessions: sessions,
		dialer:   dialer,
		persist:  persist,
		window:   window,
		timer:    timer.New(redrawOnTick(window, o.onTick), timer.WithClock(o.clock)),
		tee:      o.tee,
		logger:   o.logger,
		lost:     make(chan error, 1),
	}
}

// redrawOnTick 计时刷新时同时请求重绘，数据流静默时时长显示也会每秒更新
func redrawOnTick(window *chart.Window, onTick func(string)) func(string) {
	return func(elapsed string) {
		window.Nudge()
		if onTick != nil {
			onTick(elapsed)
		}
	}
}

func (m *Monitor) Window() *chart.Window { return m.window }

// Mount 需要已认证的会话，打开数据流并在持久化开启时启动计时器。不会发起持久化请求
func (m *Monitor) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mounted {
		return nil
	}
	sess := m.sessions.Session()
	if !sess.Authenticated {
		return errors.ErrRedirectLogin
	}

	// 丢弃上一次挂载遗留的通知
	select {
	case <-m.lost:
	default:
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.window.Reset()
	if m.deviceID != "" && m.deviceID != sess.DeviceID {
		m.persist.Reset()
	}
	if err := m.connect(ctx, sess); err != nil {
		m.cancel()
		return err
	}

	m.persist.Reconcile(sess.Metadata)
	if st := m.persist.State(); st.Enabled && st.StartedAt != nil {
		m.timer.Start(*st.StartedAt)
	}
	m.unsubs = []func(){
		m.sessions.Subscribe(m.onSession),
		m.persist.Subscribe(m.onPersistence),
	}
	m.mounted = true
	m.logger.Info().Str("device_id", sess.DeviceID).Msg("monitor mounted")
	return nil
}

// connect 需持有 mu
func (m *Monitor) connect(ctx context.Context, sess session.Session) error {
	var sink stream.Sink = m.window
	if m.tee != nil {
		sink = stream.Multi(m.window, m.tee(sess.DeviceID))
	}
	conn, err := m.dialer.Dial(ctx, sess.DeviceID, sess.Token, sink)
	if err != nil {
		return err
	}
	m.conn = conn
	m.deviceID = sess.DeviceID
	m.target = sess.DeviceID
	go m.watch(conn)
	return nil
}

// watch 连接被服务端关闭时通知 Run
func (m *Monitor) watch(conn *stream.Conn) {
	<-conn.Done()
	err := conn.Err()
	if err == nil {
		return
	}
	m.mu.Lock()
	current := m.conn == conn
	m.mu.Unlock()
	if current {
		m.signal(err)
	}
}

func (m *Monitor) signal(err error) {
	select {
	case m.lost <- err:
	default:
	}
}

func (m *Monitor) onSession(sess session.Session) {
	if sess.Loading {
		return
	}
	if !sess.Authenticated {
		m.logger.Info().Msg("session ended, unmounting monitor")
		m.Unmount()
		m.signal(errors.ErrRedirectLogin)
		return
	}

	m.mu.Lock()
	changed := m.mounted && sess.DeviceID != m.target
	if changed {
		// 旧设备的持久化状态与计时不再适用
		m.target = sess.DeviceID
		m.persist.Reset()
		m.timer.Stop()
	}
	m.mu.Unlock()

	if md := sess.Metadata; md == nil || md.DeviceID == "" || md.DeviceID == sess.DeviceID {
		m.persist.Reconcile(md)
	}
	if changed {
		// 订阅回调运行在会话的变更路径上，拨号与校验放到后台
		go m.reconnect(sess)
	}
}

// reconnect 为新设备重新打开数据流，并重新校验会话以载入该设备的元数据
func (m *Monitor) reconnect(sess session.Session) {
	m.mu.Lock()
	if !m.mounted || sess.DeviceID != m.target || sess.DeviceID == m.deviceID {
		m.mu.Unlock()
		return
	}
	m.logger.Info().Str("from", m.deviceID).Str("to", sess.DeviceID).Msg("device changed, reopening stream")
	old := m.conn
	m.conn = nil
	if old != nil {
		_ = old.Close()
	}
	m.window.Reset()
	ctx := m.ctx
	err := m.connect(ctx, sess)
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn().Err(err).Msg("reopen stream failed")
		m.signal(err)
		return
	}
	// 卸载会取消 ctx，校验不能因此把会话判为失效
	m.sessions.VerifyToken(context.WithoutCancel(ctx))
}

func (m *Monitor) onPersistence(c persistence.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}
	if c.Enabled && c.StartedAt != nil {
		m.timer.Start(*c.StartedAt)
		return
	}
	m.timer.Stop()
}

// Unmount 关闭数据流、停止计时器并取消订阅，可重复调用
func (m *Monitor) Unmount() {
	m.mu.Lock()
	if !m.mounted {
		m.mu.Unlock()
		return
	}
	m.mounted = false
	unsubs := m.unsubs
	m.unsubs = nil
	conn := m.conn
	m.conn = nil
	m.cancel()
	m.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	if conn != nil {
		_ = conn.Close()
	}
	m.timer.Stop()
	m.logger.Info().Msg("monitor unmounted")
}

// Run 挂载后阻塞直到 ctx 结束、会话失效或数据流断开，任何返回路径都会卸载
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Mount(ctx); err != nil {
		return err
	}
	defer m.Unmount()
	select {
	case <-ctx.Done():
		return nil
	case err := <-m.lost:
		return err
	}
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	st := Status{Mounted: m.mounted, DeviceID: m.deviceID, Stream: "closed"}
	if m.conn != nil {
		st.Stream = m.conn.State().String()
	}
	m.mu.Unlock()
	st.Elapsed = m.timer.Elapsed()
	if !m.timer.Running() {
		st.Elapsed = timer.Format(0)
	}
	st.Persistence = m.persist.State()
	st.Samples = m.window.Len()
	return st
}

// Elapsed 当前显示的会话时长
func (m *Monitor) Elapsed() string {
	if !m.timer.Running() {
		return timer.Format(0)
	}
	return m.timer.Elapsed()
}

// StartedAt 计时起点，未计时时为零值
func (m *Monitor) StartedAt() time.Time {
	return m.timer.StartedAt()
}
