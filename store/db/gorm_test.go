package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/errors"
)

func newSQLite(t *testing.T, namespace string) *Gorm {
	t.Helper()
	g, err := New(context.Background(), Config{
		Driver:    DriverSQLite,
		DSN:       filepath.Join(t.TempDir(), "session.db"),
		Namespace: namespace,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGormSetGetDelete(t *testing.T) {
	ctx := context.Background()
	g := newSQLite(t, "default")

	_, err := g.Get(ctx, "cardiac_ai_access_token")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, g.Set(ctx, "cardiac_ai_access_token", "t1"))
	require.NoError(t, g.Set(ctx, "cardiac_ai_access_token", "t2"))
	v, err := g.Get(ctx, "cardiac_ai_access_token")
	require.NoError(t, err)
	assert.Equal(t, "t2", v, "重复写入覆盖旧值")

	require.NoError(t, g.Delete(ctx, "cardiac_ai_access_token"))
	_, err = g.Get(ctx, "cardiac_ai_access_token")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestGormUnsupportedDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Equal(t, 400, errors.Code(err))
}

func TestLogLevel(t *testing.T) {
	assert.NotEqual(t, logLevel("silent"), logLevel("info"))
}
