package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/backend/backendtest"
	"github.com/kochabx/cardiac/errors"
)

type fixture struct {
	srv    *backendtest.Server
	dir    string
	config string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	srv.AddDevice("dev-1", backendtest.Device{Password: "pw", Role: backend.RoleAdmin})
	srv.SetMetadata("dev-1",
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s-1", Timestamp: "2026-10-01T08:00:00Z"},
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s-2", Timestamp: "2026-10-02T08:00:00Z"},
	)
	srv.SetPNG("s-2", []byte("\x89PNG\r\n\x1a\ns-2"))

	dir := t.TempDir()
	cfg := fmt.Sprintf(`backend:
  url: %s
storage:
  backend: file
  file:
    path: %s
downloads:
  dir: %s
log:
  level: disabled
`, srv.URL, filepath.Join(dir, "session.json"), filepath.Join(dir, "downloads"))
	path := filepath.Join(dir, "cardiac.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &fixture{srv: srv, dir: dir, config: path}
}

func (f *fixture) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	err := execute(context.Background(), append([]string{"--config", f.config}, args...), &out, &errOut)
	return out.String(), err
}

func TestLoginStatusLogout(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("login", "dev-1", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as dev-1 (admin)")

	out, err = f.run("status")
	require.NoError(t, err)
	assert.Regexp(t, `authenticated\s+true`, out)
	assert.Regexp(t, `session\s+s-2`, out)
	assert.Regexp(t, `persistence\s+off`, out)

	out, err = f.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")

	out, err = f.run("status")
	assert.ErrorIs(t, err, errors.ErrRedirectLogin)
	assert.Equal(t, 3, exitCode(err))
	assert.Regexp(t, `device\s+dev-1`, out, "logout keeps the device id")
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.run("login", "dev-1", "--password", "wrong")
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	t.Setenv("CARDIAC_PASSWORD", "")
	_, err = f.run("login", "dev-1")
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestSaveAndDownload(t *testing.T) {
	f := newFixture(t)
	t.Setenv("CARDIAC_PASSWORD", "pw")
	_, err := f.run("login", "dev-1")
	require.NoError(t, err)

	out, err := f.run("save", "on")
	require.NoError(t, err)
	assert.Contains(t, out, "persistence on since")
	assert.Equal(t, "enable=true", <-f.srv.SaveQueries)

	_, err = f.run("save", "maybe")
	assert.Equal(t, 2, exitCode(err))

	out, err = f.run("download", "current")
	require.NoError(t, err)
	assert.Contains(t, out, "s-2")
	data, err := os.ReadFile(filepath.Join(f.dir, "downloads", "ecg_session_s-2.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	out, err = f.run("download", "previous")
	assert.Error(t, err, "s-1 has no readings")
	assert.Contains(t, out, "s-1\tfailed")
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.run("login", "dev-1", "-p", "pw")
	require.NoError(t, err)

	frames := f.srv.Frames("dev-1")
	for i := range 40 {
		frames <- fmt.Sprintf("%.2f", float64(i%10)/10)
	}

	target := filepath.Join(f.dir, "snap.png")
	out, err := f.run("snapshot", target, "--duration", (5 * time.Second).String())
	require.NoError(t, err)
	assert.Contains(t, out, "40 samples")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	_, err = f.run("snapshot", "snap.jpg")
	assert.Equal(t, 2, exitCode(err))
}

func TestCommandsRequireSession(t *testing.T) {
	f := newFixture(t)
	for _, args := range [][]string{{"save", "on"}, {"download", "current"}, {"watch"}} {
		_, err := f.run(args...)
		assert.ErrorIs(t, err, errors.ErrRedirectLogin, strings.Join(args, " "))
	}
	assert.Zero(t, f.srv.SaveCalls.Load())
}

func TestUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	err := execute(context.Background(), nil, &out, &errOut)
	assert.ErrorIs(t, err, pflag.ErrHelp)
	assert.Contains(t, errOut.String(), "Commands:")

	err = execute(context.Background(), []string{"fly"}, &out, &errOut)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "login required", message(errors.ErrRedirectLogin))
	assert.Equal(t, "boom", message(fmt.Errorf("boom")))
	err := errors.PersistenceToggleError("dev-1", true, fmt.Errorf("timeout"))
	assert.Contains(t, message(err), "timeout")
}
