package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log/desensitize"
	"github.com/kochabx/cardiac/log/writer"
)

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, WithLevel(zerolog.DebugLevel))
	logger.Debug().Str("device_id", "dev-1").Msg("stream connection established")
	logger.Warn().Err(errors.ErrStreamParse).Msg("dropped sample")

	out := buf.String()
	assert.Contains(t, out, `"device_id":"dev-1"`)
	assert.Contains(t, out, "stream connection established")
	assert.Contains(t, out, "invalid stream sample")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, WithLevel(zerolog.WarnLevel))
	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestDesensitizedOutput(t *testing.T) {
	var buf bytes.Buffer
	hook := desensitize.NewHook(desensitize.BuiltinRules()...)
	logger := NewWriter(&buf, WithDesensitize(hook))

	logger.Info().
		Str("access_token", "eyJhbGciOiJIUzI1NiJ9.payload.sig").
		Str("header", "Bearer eyJhbGciOiJIUzI1NiJ9.payload.sig").
		Str("body", "username=dev-1&password=hunter2&grant_type=password").
		Msg("token exchange")

	out := buf.String()
	assert.NotContains(t, out, "eyJhbGciOiJIUzI1NiJ9")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "username=dev-1")
	assert.Contains(t, out, `"access_token":"******"`)
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFromConfig(Config{
		Output: "file",
		File: FileConfig{
			Dir:        dir,
			Name:       "test",
			RotateMode: writer.RotateModeSize,
			MaxSize:    1,
		},
	})
	require.NoError(t, err)
	logger.Info().Str("password", "secret").Msg("test file log")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "test file log")
	assert.NotContains(t, string(data), `"password":"secret"`)
}

func TestNewFromConfigInvalidLevel(t *testing.T) {
	_, err := NewFromConfig(Config{Level: "loud"})
	assert.Error(t, err)
}
