// Package readings 并发下载会话波形图。
package readings

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/metrics"
	"github.com/kochabx/cardiac/session"
	"github.com/kochabx/cardiac/store/oss/minio"
)

// Config 下载配置
type Config struct {
	Workers int          `json:"workers" mapstructure:"workers" default:"4" validate:"gte=1"`
	Sink    string       `json:"sink" mapstructure:"sink" default:"local" validate:"oneof=local minio"`
	Dir     string       `json:"dir" mapstructure:"dir" default:"./downloads"`
	MinIO   minio.Config `json:"minio" mapstructure:"minio"`
}

// NewSink 按配置创建 Sink
func NewSink(cfg Config) (Sink, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if cfg.Sink == "minio" {
		c, err := minio.New(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return MinIOSink{Client: c}, nil
	}
	return DirSink{Dir: cfg.Dir}, nil
}

// Backend 下载依赖的后端接口
type Backend interface {
	Metadata(ctx context.Context, token, deviceID string) ([]backend.MetadataRecord, error)
	Download(ctx context.Context, token, sessionID string, w io.Writer) error
}

type Sessions interface {
	Session() session.Session
}

// Result 单个会话的下载结果
type Result struct {
	SessionID string
	Name      string
	Location  string
	Size      int
	Err       error
}

type Downloader struct {
	backend  Backend
	sessions Sessions
	sink     Sink
	pool     *ants.Pool
	logger   *log.Logger
}

func New(b Backend, sessions Sessions, sink Sink, workers int) (*Downloader, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, errors.Wrap(err, 500, "create download pool")
	}
	return &Downloader{backend: b, sessions: sessions, sink: sink, pool: pool, logger: log.G}, nil
}

// Close 释放协程池
func (d *Downloader) Close() {
	d.pool.Release()
}

// ObjectName 会话报告的文件名
func ObjectName(sessionID string) string {
	return "ecg_session_" + sessionID + ".png"
}

func (d *Downloader) session() (session.Session, error) {
	sess := d.sessions.Session()
	if !sess.Authenticated {
		return sess, errors.ErrRedirectLogin
	}
	return sess, nil
}

// Sessions 设备的全部会话记录，最新的在前，没有 session_id 的记录被忽略
func (d *Downloader) Sessions(ctx context.Context) ([]backend.MetadataRecord, error) {
	sess, err := d.session()
	if err != nil {
		return nil, err
	}
	records, err := d.backend.Metadata(ctx, sess.Token, sess.DeviceID)
	if err != nil {
		return nil, err
	}
	out := make([]backend.MetadataRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].SessionID != "" {
			out = append(out, records[i])
		}
	}
	// 倒序后稳定排序，时间相同时原数组中靠后的记录在前
	slices.SortStableFunc(out, func(a, b backend.MetadataRecord) int {
		return b.Time().Compare(a.Time())
	})
	return out, nil
}

func (d *Downloader) nth(ctx context.Context, n int) (Result, error) {
	records, err := d.Sessions(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(records) <= n {
		return Result{}, errors.ErrNotFound.WithMetadata(map[string]string{"reason": "no such session"})
	}
	results, err := d.Download(ctx, records[n].SessionID)
	if len(results) == 0 {
		return Result{}, err
	}
	return results[0], err
}

// DownloadCurrent 下载最新会话
func (d *Downloader) DownloadCurrent(ctx context.Context) (Result, error) {
	return d.nth(ctx, 0)
}

// DownloadPrevious 下载上一个会话
func (d *Downloader) DownloadPrevious(ctx context.Context) (Result, error) {
	return d.nth(ctx, 1)
}

// Download 并发下载多个会话，结果顺序与参数一致，返回所有失败的合并错误
func (d *Downloader) Download(ctx context.Context, sessionIDs ...string) ([]Result, error) {
	sess, err := d.session()
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(sessionIDs))
	var wg sync.WaitGroup
	for i, id := range sessionIDs {
		results[i] = Result{SessionID: id, Name: ObjectName(id)}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			d.fetch(ctx, sess.Token, &results[i])
		}
		if err := d.pool.Submit(task); err != nil {
			wg.Done()
			results[i].Err = errors.Wrap(err, 503, "submit download")
		}
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}

func (d *Downloader) fetch(ctx context.Context, token string, r *Result) {
	var buf bytes.Buffer
	if err := d.backend.Download(ctx, token, r.SessionID, &buf); err != nil {
		r.Err = err
	} else {
		r.Size = buf.Len()
		r.Location, r.Err = d.sink.Put(ctx, r.Name, buf.Bytes())
	}
	metrics.Prom.Downloads.WithLabelValues(metrics.Result(r.Err)).Inc()
	ev := d.logger.Info()
	if r.Err != nil {
		ev = d.logger.Warn().Err(r.Err)
	}
	ev.Str("session_id", r.SessionID).Str("location", r.Location).Int("bytes", r.Size).Msg("session download")
}
