package readings

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/store/oss/minio"
)

// Sink 保存下载的报告，返回可定位的地址
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (location string, err error)
}

// DirSink 写入本地目录
type DirSink struct {
	Dir string
}

func (s DirSink) Put(_ context.Context, name string, data []byte) (string, error) {
	dir := os.ExpandEnv(s.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, 500, "create download directory")
	}
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", errors.Wrap(err, 500, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, 500, "write %s", name)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, 500, "close %s", name)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, 500, "rename %s", name)
	}
	return path, nil
}

// MinIOSink 上传到对象存储
type MinIOSink struct {
	Client *minio.Client
}

func (s MinIOSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	info, err := s.Client.Put(ctx, name, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	return "s3://" + info.Bucket + "/" + info.Key, nil
}
