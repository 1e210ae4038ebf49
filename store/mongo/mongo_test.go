package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/errors"
)

func TestMongo(t *testing.T) {
	uri := os.Getenv("CARDIAC_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CARDIAC_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	m, err := New(ctx, Config{URI: uri, Namespace: t.Name()})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Set(ctx, "cardiac_ai_role", "admin"))
	v, err := m.Get(ctx, "cardiac_ai_role")
	require.NoError(t, err)
	assert.Equal(t, "admin", v)

	require.NoError(t, m.Delete(ctx, "cardiac_ai_role"))
	_, err = m.Get(ctx, "cardiac_ai_role")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestFilter(t *testing.T) {
	m := &Mongo{cfg: Config{Namespace: "ns"}}
	f := m.filter("k")
	require.Len(t, f, 2)
	assert.Equal(t, "ns", f[0].Value)
	assert.Equal(t, "k", f[1].Value)
}
