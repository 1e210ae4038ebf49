package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/backend/backendtest"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/store"
	"github.com/kochabx/cardiac/store/memory"
)

func setup(t *testing.T) (*backendtest.Server, *Store, *memory.Store) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	c, err := backend.New(backend.Config{URL: srv.URL})
	require.NoError(t, err)
	storage := memory.New()
	return srv, New(c, storage), storage
}

func ptr[T any](v T) *T { return &v }

func TestVerifyTokenEmptyStorage(t *testing.T) {
	srv, s, _ := setup(t)

	var seen []Session
	unsubscribe := s.Subscribe(func(sess Session) { seen = append(seen, sess) })
	defer unsubscribe()

	sess := s.VerifyToken(context.Background())
	assert.False(t, sess.Authenticated)
	assert.False(t, sess.Loading)
	assert.Zero(t, srv.MetadataCalls.Load(), "不应发起网络请求")

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[1].Loading)
}

func TestLoginAndVerify(t *testing.T) {
	srv, s, storage := setup(t)
	ctx := context.Background()
	srv.AddDevice("dev-1", backendtest.Device{Password: "pw", Role: backend.RoleAdmin})
	srv.SetMetadata("dev-1",
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s1", Timestamp: "2024-03-01T08:00:00"},
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s2", Timestamp: "2024-03-01T09:00:00", SaveStatus: ptr(true)},
	)

	require.NoError(t, s.Login(ctx, "dev-1", "pw"))
	sess := s.Session()
	assert.True(t, sess.Authenticated)
	assert.True(t, sess.IsAdmin())

	for key, want := range map[string]string{
		store.KeyDeviceID: "dev-1",
		store.KeyRole:     "admin",
	} {
		v, err := storage.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	token, err := storage.Get(ctx, store.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.Token, token)

	// 新进程只依赖存储
	fresh := New(mustBackend(t, srv.URL), storage)
	sess = fresh.VerifyToken(ctx)
	require.True(t, sess.Authenticated)
	require.NotNil(t, sess.Metadata)
	assert.Equal(t, "s2", sess.Metadata.SessionID)
	assert.True(t, sess.Metadata.PersistenceEnabled)
	require.NotNil(t, sess.PersistenceStartedAt())
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), *sess.PersistenceStartedAt())
}

func mustBackend(t *testing.T, url string) *backend.Client {
	t.Helper()
	c, err := backend.New(backend.Config{URL: url})
	require.NoError(t, err)
	return c
}

func TestVerifyTokenLatestWithoutSession(t *testing.T) {
	srv, s, storage := setup(t)
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, store.KeyAccessToken, backendtest.IssueToken("dev-1", backend.RoleUser, time.Hour)))
	require.NoError(t, storage.Set(ctx, store.KeyDeviceID, "dev-1"))
	srv.SetMetadata("dev-1",
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s1", Timestamp: "2024-03-01T08:00:00"},
		backend.MetadataRecord{DeviceID: "dev-1", Timestamp: "2024-03-01T09:00:00"},
	)

	sess := s.VerifyToken(ctx)
	assert.False(t, sess.Authenticated)
	assert.False(t, sess.Loading)
	assert.EqualValues(t, 1, srv.MetadataCalls.Load())
}

func TestVerifyTokenRejected(t *testing.T) {
	_, s, storage := setup(t)
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, store.KeyAccessToken, "not-a-jwt"))
	require.NoError(t, storage.Set(ctx, store.KeyDeviceID, "dev-1"))

	sess, err := s.Guard(ctx)
	assert.ErrorIs(t, err, errors.ErrRedirectLogin)
	assert.False(t, sess.Authenticated)
	assert.Equal(t, "dev-1", sess.DeviceID)
}

func TestLoginFailureNoMutation(t *testing.T) {
	srv, s, storage := setup(t)
	ctx := context.Background()
	srv.AddDevice("dev-1", backendtest.Device{Password: "pw"})
	require.NoError(t, storage.Set(ctx, store.KeyDeviceID, "dev-0"))

	before := s.Session()
	err := s.Login(ctx, "dev-1", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	assert.Equal(t, before, s.Session())

	v, err := storage.Get(ctx, store.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "dev-0", v)
	_, err = storage.Get(ctx, store.KeyAccessToken)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoginRoleFromToken(t *testing.T) {
	srv, s, _ := setup(t)
	srv.AddDevice("dev-1", backendtest.Device{Password: "pw", Role: backend.RoleAdmin, OmitRole: true})

	require.NoError(t, s.Login(context.Background(), "dev-1", "pw"))
	assert.Equal(t, backend.RoleAdmin, s.Session().Role)
}

func TestLogoutKeepsDeviceID(t *testing.T) {
	srv, s, storage := setup(t)
	ctx := context.Background()
	srv.AddDevice("dev-1", backendtest.Device{Password: "pw"})
	require.NoError(t, s.Login(ctx, "dev-1", "pw"))

	require.NoError(t, s.Logout(ctx))
	sess := s.Session()
	assert.False(t, sess.Authenticated)
	assert.Empty(t, sess.Token)
	assert.Equal(t, "dev-1", sess.DeviceID)

	_, err := storage.Get(ctx, store.KeyAccessToken)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	v, err := storage.Get(ctx, store.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", v)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	srv, s, _ := setup(t)
	srv.AddDevice("dev-1", backendtest.Device{Password: "pw"})

	var mu sync.Mutex
	calls := 0
	unsubscribe := s.Subscribe(func(Session) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, s.Login(context.Background(), "dev-1", "pw"))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Logout(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	rec, ok := Latest([]backend.MetadataRecord{
		{SessionID: "a", Timestamp: "2024-03-01T09:00:00"},
		{SessionID: "b", Timestamp: "2024-03-01T08:00:00"},
		{SessionID: "c", Timestamp: "2024-03-01T09:00:00"},
	})
	require.True(t, ok)
	assert.Equal(t, "c", rec.SessionID, "时间相同取靠后的记录")
}

func TestRoleFromToken(t *testing.T) {
	assert.Equal(t, backend.RoleAdmin, RoleFromToken(backendtest.IssueToken("d", backend.RoleAdmin, time.Hour)))
	assert.Equal(t, backend.RoleUser, RoleFromToken("garbage"))
}
