package etcd

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/errors"
)

// 设置 CARDIAC_TEST_ETCD_ENDPOINTS（逗号分隔）后运行
func TestEtcd(t *testing.T) {
	endpoints := os.Getenv("CARDIAC_TEST_ETCD_ENDPOINTS")
	if testing.Short() || endpoints == "" {
		t.Skip("跳过需要 etcd 的集成测试")
	}
	ctx := context.Background()
	e, err := New(ctx, Config{Endpoints: strings.Split(endpoints, ","), Prefix: "/cardiac-test/"})
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set(ctx, "cardiac_ai_role", "admin"))
	v, err := e.Get(ctx, "cardiac_ai_role")
	require.NoError(t, err)
	assert.Equal(t, "admin", v)

	require.NoError(t, e.Delete(ctx, "cardiac_ai_role"))
	_, err = e.Get(ctx, "cardiac_ai_role")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestKeyPrefix(t *testing.T) {
	e := &Etcd{cfg: Config{Prefix: "/cardiac/"}}
	assert.Equal(t, "/cardiac/cardiac_ai_access_token", e.key("cardiac_ai_access_token"))
}
