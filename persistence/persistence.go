// Package persistence 同步服务端数据持久化开关。
//
// 用户操作先乐观地翻转本地状态并标记为 dirty，请求完成后确认或回滚；
// 同一时刻最多只有一个请求在途。dirty 期间忽略来自元数据的服务端状态。
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/metrics"
	"github.com/kochabx/cardiac/session"
)

// Backend 持久化开关接口
type Backend interface {
	SetPersistence(ctx context.Context, token, deviceID string, enable bool) (*backend.SaveResponse, error)
}

// Sessions 提供当前会话快照，*session.Store 实现了该接口
type Sessions interface {
	Session() session.Session
}

// State 开关的本地状态
type State struct {
	Enabled bool `json:"enabled"`
	// Requesting 请求在途，Enabled 为乐观值
	Requesting bool       `json:"requesting"`
	Dirty      bool       `json:"dirty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// Change 已确认的开关变化
type Change struct {
	Enabled   bool
	StartedAt *time.Time
	SessionID string
}

type Synchronizer struct {
	backend  Backend
	sessions Sessions
	clock    clockwork.Clock
	logger   *log.Logger

	mu        sync.Mutex
	enabled   bool
	dirty     bool
	inFlight  bool
	startedAt *time.Time
	gen       uint64 // Reset 时递增，旧设备的在途请求结果被丢弃
	subs      map[int]func(Change)
	nextID    int
}

type Option func(*Synchronizer)

func WithClock(c clockwork.Clock) Option {
	return func(s *Synchronizer) {
		s.clock = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = l
	}
}

func New(b Backend, sessions Sessions, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend:  b,
		sessions: sessions,
		clock:    clockwork.NewRealClock(),
		logger:   log.G,
		subs:     make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Enabled: s.enabled, Requesting: s.inFlight, Dirty: s.dirty, StartedAt: s.startedAt}
}

// Subscribe 订阅已确认的变化，回调在发起变化的 goroutine 中执行
func (s *Synchronizer) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Synchronizer) notify(c Change) {
	s.mu.Lock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

// Toggle 翻转开关。非 admin 返回 ErrForbidden，已有请求在途时返回 ErrToggleInFlight 且不发起请求
func (s *Synchronizer) Toggle(ctx context.Context) error {
	sess := s.sessions.Session()
	if !sess.Authenticated {
		return errors.ErrRedirectLogin
	}
	if !sess.IsAdmin() {
		return errors.ErrForbidden
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		metrics.Prom.Toggles.WithLabelValues("in_flight").Inc()
		return errors.ErrToggleInFlight
	}
	prev := s.enabled
	target := !prev
	gen := s.gen
	s.enabled = target
	s.dirty = true
	s.inFlight = true
	s.mu.Unlock()

	start := s.clock.Now()
	resp, err := s.backend.SetPersistence(ctx, sess.Token, sess.DeviceID, target)
	metrics.Prom.ToggleDuration.Observe(s.clock.Since(start).Seconds())
	metrics.Prom.Toggles.WithLabelValues(metrics.Result(err)).Inc()

	s.mu.Lock()
	s.inFlight = false
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Info().Str("device_id", sess.DeviceID).Msg("device changed during toggle, result discarded")
		if err != nil {
			return errors.PersistenceToggleError(sess.DeviceID, target, err)
		}
		return nil
	}
	s.dirty = false
	if err != nil {
		s.enabled = prev
		s.mu.Unlock()
		terr := errors.PersistenceToggleError(sess.DeviceID, target, err)
		s.logger.Warn().Err(terr).Bool("reverted_to", prev).Msg("persistence toggle failed")
		return terr
	}
	s.enabled = resp.StoreEnabled
	if s.enabled {
		now := s.clock.Now()
		s.startedAt = &now
	} else {
		s.startedAt = nil
	}
	change := Change{Enabled: s.enabled, StartedAt: s.startedAt, SessionID: resp.SessionID}
	s.mu.Unlock()

	s.logger.Info().Str("device_id", sess.DeviceID).Bool("enabled", change.Enabled).Str("session_id", change.SessionID).Msg("persistence toggled")
	s.notify(change)
	return nil
}

// Set 将开关设置为 enabled，已经是该值时不发起请求
func (s *Synchronizer) Set(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	same := s.enabled == enabled && !s.inFlight
	s.mu.Unlock()
	if same {
		return nil
	}
	return s.Toggle(ctx)
}

// Reconcile 采用元数据中的服务端状态，不发起请求。dirty 时忽略
func (s *Synchronizer) Reconcile(md *session.Metadata) {
	if md == nil {
		return
	}
	s.mu.Lock()
	if s.dirty {
		s.mu.Unlock()
		s.logger.Debug().Msg("ignoring server persistence state while toggle is pending")
		return
	}
	start := md.PersistenceStartedAt
	switch {
	case !md.PersistenceEnabled:
		start = nil
	case start == nil && s.enabled && s.startedAt != nil:
		start = s.startedAt
	case start == nil:
		// 服务端未提供开始时间时从现在开始计时
		now := s.clock.Now()
		start = &now
	}
	changed := s.enabled != md.PersistenceEnabled || !sameTime(s.startedAt, start)
	s.enabled = md.PersistenceEnabled
	s.startedAt = start
	change := Change{Enabled: s.enabled, StartedAt: s.startedAt, SessionID: md.SessionID}
	s.mu.Unlock()

	if changed {
		s.notify(change)
	}
}

// Reset 切换设备时清空本地状态，不通知订阅者，由调用方处理计时器等后续状态。
// 在途请求不会被取消，但其结果不再写回
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.enabled = false
	s.dirty = false
	s.startedAt = nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
