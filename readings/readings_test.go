package readings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/backend/backendtest"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/session"
)

type staticSessions session.Session

func (s staticSessions) Session() session.Session { return session.Session(s) }

func pngFor(id string) []byte {
	return []byte("\x89PNG\r\n\x1a\n" + id)
}

func newDownloader(t *testing.T) (*backendtest.Server, *Downloader, string) {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	c, err := backend.New(backend.Config{URL: srv.URL})
	require.NoError(t, err)

	srv.SetMetadata("dev-1",
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s1", Timestamp: "2024-03-01T08:00:00"},
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s3", Timestamp: "2024-03-01T10:00:00"},
		backend.MetadataRecord{DeviceID: "dev-1", Timestamp: "2024-03-01T11:00:00"},
		backend.MetadataRecord{DeviceID: "dev-1", SessionID: "s2", Timestamp: "2024-03-01T09:00:00"},
	)
	for _, id := range []string{"s1", "s2", "s3"} {
		srv.SetPNG(id, pngFor(id))
	}

	dir := t.TempDir()
	sess := staticSessions{Authenticated: true, DeviceID: "dev-1", Token: backendtest.IssueToken("dev-1", backend.RoleUser, time.Hour)}
	d, err := New(c, sess, DirSink{Dir: dir}, 2)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return srv, d, dir
}

func TestSessionsNewestFirst(t *testing.T) {
	_, d, _ := newDownloader(t)
	records, err := d.Sessions(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.SessionID
	}
	assert.Equal(t, []string{"s3", "s2", "s1"}, ids)
}

func TestDownloadCurrentAndPrevious(t *testing.T) {
	_, d, dir := newDownloader(t)
	ctx := context.Background()

	cur, err := d.DownloadCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s3", cur.SessionID)
	assert.Equal(t, filepath.Join(dir, "ecg_session_s3.png"), cur.Location)

	prev, err := d.DownloadPrevious(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s2", prev.SessionID)

	data, err := os.ReadFile(prev.Location)
	require.NoError(t, err)
	assert.Equal(t, pngFor("s2"), data)
}

func TestDownloadMany(t *testing.T) {
	_, d, dir := newDownloader(t)
	results, err := d.Download(context.Background(), "s1", "missing", "s2", "s3")
	require.Error(t, err)
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, 404, errors.Code(results[1].Err))
	assert.NoError(t, results[2].Err)
	assert.NoError(t, results[3].Err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "失败的下载不应留下文件")
}

func TestDownloadRequiresSession(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	c, err := backend.New(backend.Config{URL: srv.URL})
	require.NoError(t, err)
	d, err := New(c, staticSessions{}, DirSink{Dir: t.TempDir()}, 1)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.DownloadCurrent(context.Background())
	assert.ErrorIs(t, err, errors.ErrRedirectLogin)
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(Config{Dir: "x"})
	require.NoError(t, err)
	assert.Equal(t, DirSink{Dir: "x"}, s)

	_, err = NewSink(Config{Sink: "minio"})
	assert.Error(t, err, "缺少凭据")
}
