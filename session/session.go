// Package session 维护客户端的认证状态、设备元数据缓存与角色。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/metrics"
	"github.com/kochabx/cardiac/store"
)

// Backend 会话依赖的后端接口
type Backend interface {
	Token(ctx context.Context, deviceID, password string) (*backend.TokenResponse, error)
	Metadata(ctx context.Context, token, deviceID string) ([]backend.MetadataRecord, error)
}

// Metadata 最新一条设备元数据
type Metadata struct {
	DeviceID           string
	SessionID          string
	PersistenceEnabled bool
	// PersistenceStartedAt 持久化开启时间，未开启或未知时为 nil
	PersistenceStartedAt *time.Time
}

// Session 会话快照
type Session struct {
	Authenticated bool
	Loading       bool
	Role          backend.Role
	DeviceID      string
	Token         string
	Metadata      *Metadata
}

func (s Session) IsAdmin() bool { return s.Role == backend.RoleAdmin }

// PersistenceStartedAt 缓存元数据中的持久化开始时间
func (s Session) PersistenceStartedAt() *time.Time {
	if s.Metadata == nil {
		return nil
	}
	return s.Metadata.PersistenceStartedAt
}

// Store 会话状态。Login、VerifyToken、Logout 串行执行，订阅者按变更顺序收到快照
type Store struct {
	backend Backend
	storage store.Storage
	logger  *log.Logger

	op sync.Mutex // 串行化状态变更

	mu     sync.RWMutex
	state  Session
	subs   map[int]func(Session)
	nextID int
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func New(b Backend, storage store.Storage, opts ...Option) *Store {
	s := &Store{
		backend: b,
		storage: storage,
		logger:  log.G,
		state:   Session{Role: backend.RoleUser},
		subs:    make(map[int]func(Session)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session 当前快照
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe 订阅状态变更，返回的函数取消订阅。回调中不能调用 Login、VerifyToken 或 Logout
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
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

// update 修改状态并通知订阅者，调用方需持有 op
func (s *Store) update(fn func(*Session)) Session {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state
	subs := make([]func(Session), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
	return snapshot
}

// Login 用设备编号与密码换取令牌。失败时存储与内存状态都不变
func (s *Store) Login(ctx context.Context, deviceID, password string) error {
	s.op.Lock()
	defer s.op.Unlock()

	resp, err := s.backend.Token(ctx, deviceID, password)
	if err != nil {
		s.logger.Warn().Err(err).Str("device_id", deviceID).Msg("login failed")
		return err
	}
	role := resolveRole(resp)

	if err := s.persist(ctx, deviceID, resp.AccessToken, role); err != nil {
		return err
	}

	s.update(func(st *Session) {
		if st.DeviceID != deviceID {
			st.Metadata = nil
		}
		st.Authenticated = true
		st.Token = resp.AccessToken
		st.DeviceID = deviceID
		st.Role = role
	})
	s.logger.Info().Str("device_id", deviceID).Str("role", string(role)).Msg("login succeeded")
	return nil
}

func (s *Store) persist(ctx context.Context, deviceID, token string, role backend.Role) error {
	writes := []struct{ key, value string }{
		{store.KeyDeviceID, deviceID},
		{store.KeyRole, string(role)},
		{store.KeyAccessToken, token},
	}
	for _, w := range writes {
		if err := s.storage.Set(ctx, w.key, w.value); err != nil {
			// 令牌最后写入，失败时只需确保没有残留令牌
			_ = s.storage.Delete(ctx, store.KeyAccessToken)
			return errors.Wrap(err, 500, "persist %s", w.key)
		}
	}
	return nil
}

// resolveRole 优先使用响应中的角色，缺失时读取 JWT 的 role 声明
func resolveRole(resp *backend.TokenResponse) backend.Role {
	if resp.Role != "" {
		return backend.ParseRole(resp.Role)
	}
	return RoleFromToken(resp.AccessToken)
}

// RoleFromToken 不校验签名地读取 JWT 的 role 声明，失败时为 user
func RoleFromToken(token string) backend.Role {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return backend.RoleUser
	}
	role, _ := claims["role"].(string)
	return backend.ParseRole(role)
}

// VerifyToken 使用存储的凭据向后端校验会话。任何失败都只会使会话变为未认证，不返回错误
func (s *Store) VerifyToken(ctx context.Context) (sess Session) {
	s.op.Lock()
	defer s.op.Unlock()

	s.update(func(st *Session) { st.Loading = true })
	var result func(*Session)
	defer func() {
		sess = s.update(func(st *Session) {
			if result != nil {
				result(st)
			}
			st.Loading = false
		})
	}()

	token, deviceID, role, err := s.credentials(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read stored credentials")
	}
	if token == "" || deviceID == "" {
		metrics.Prom.Verifications.WithLabelValues("anonymous").Inc()
		result = func(st *Session) {
			st.Authenticated = false
			st.Token = ""
			st.DeviceID = deviceID
		}
		return
	}

	md, err := s.verify(ctx, token, deviceID)
	if err != nil {
		metrics.Prom.Verifications.WithLabelValues("rejected").Inc()
		s.logger.Warn().Err(err).Str("device_id", deviceID).Msg("token verification failed")
		result = func(st *Session) {
			st.Authenticated = false
			st.Token = ""
			st.DeviceID = deviceID
			st.Metadata = nil
		}
		return
	}

	metrics.Prom.Verifications.WithLabelValues("ok").Inc()
	result = func(st *Session) {
		st.Authenticated = true
		st.Token = token
		st.DeviceID = deviceID
		st.Role = role
		st.Metadata = md
	}
	return
}

func (s *Store) credentials(ctx context.Context) (token, deviceID string, role backend.Role, err error) {
	var r string
	for _, kv := range []struct {
		key string
		dst *string
	}{
		{store.KeyAccessToken, &token},
		{store.KeyDeviceID, &deviceID},
		{store.KeyRole, &r},
	} {
		v, e := store.Value(ctx, s.storage, kv.key)
		if e != nil {
			return "", "", backend.RoleUser, e
		}
		*kv.dst = v
	}
	if r == "" && token != "" {
		return token, deviceID, RoleFromToken(token), nil
	}
	return token, deviceID, backend.ParseRole(r), nil
}

func (s *Store) verify(ctx context.Context, token, deviceID string) (*Metadata, error) {
	records, err := s.backend.Metadata(ctx, token, deviceID)
	if err != nil {
		return nil, errors.VerificationError("metadata request failed", err)
	}
	rec, ok := Latest(records)
	if !ok {
		return nil, errors.VerificationError("no metadata records", nil)
	}
	if rec.DeviceID == "" || rec.SessionID == "" {
		return nil, errors.VerificationError("latest record lacks device_id or session_id", nil)
	}
	return FromRecord(rec), nil
}

// Latest 返回时间戳最大的记录，时间相同时取靠后的一条
func Latest(records []backend.MetadataRecord) (backend.MetadataRecord, bool) {
	if len(records) == 0 {
		return backend.MetadataRecord{}, false
	}
	best := 0
	for i := 1; i < len(records); i++ {
		if !records[i].Time().Before(records[best].Time()) {
			best = i
		}
	}
	return records[best], true
}

// FromRecord 将后端记录转换为元数据
func FromRecord(rec backend.MetadataRecord) *Metadata {
	md := &Metadata{DeviceID: rec.DeviceID, SessionID: rec.SessionID}
	if rec.SaveStatus != nil && *rec.SaveStatus {
		md.PersistenceEnabled = true
		if t := rec.Time(); !t.IsZero() {
			md.PersistenceStartedAt = &t
		}
	}
	return md
}

// Logout 删除存储的令牌，设备编号与元数据缓存保留
func (s *Store) Logout(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.storage.Delete(ctx, store.KeyAccessToken); err != nil {
		return errors.Wrap(err, 500, "delete access token")
	}
	s.update(func(st *Session) {
		st.Authenticated = false
		st.Token = ""
	})
	s.logger.Info().Msg("logged out")
	return nil
}

// Guard 校验会话，未认证时返回 ErrRedirectLogin
func (s *Store) Guard(ctx context.Context) (Session, error) {
	sess := s.VerifyToken(ctx)
	if !sess.Authenticated {
		return sess, errors.ErrRedirectLogin
	}
	return sess, nil
}
