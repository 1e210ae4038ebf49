// Package minio 将下载的心电报告上传到 MinIO/S3 兼容的对象存储。
package minio

import (
	"context"
	"io"
	"mime"
	"net/url"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/errors"
)

// Client MinIO 客户端
type Client struct {
	config Config
	client *minio.Client
}

// New 创建客户端，不会立即访问服务端
func New(cfg Config) (*Client, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New(400, "minio: access key and secret are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, 400, "minio: create client")
	}
	return &Client{config: cfg, client: mc}, nil
}

// EnsureBucket 桶不存在时创建
func (c *Client) EnsureBucket(ctx context.Context) error {
	ok, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		return errors.Wrap(err, 503, "minio: bucket exists")
	}
	if ok {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, 503, "minio: make bucket %s", c.config.Bucket)
	}
	return nil
}

// ObjectName 加上配置的前缀
func (c *Client) ObjectName(name string) string {
	if c.config.Prefix == "" {
		return name
	}
	return path.Join(c.config.Prefix, name)
}

// Put 上传对象，size 未知时传 -1
func (c *Client) Put(ctx context.Context, name string, r io.Reader, size int64) (minio.UploadInfo, error) {
	object := c.ObjectName(name)
	info, err := c.client.PutObject(ctx, c.config.Bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	if err != nil {
		return info, errors.Wrap(err, 503, "minio: put %s", object).WithMetadata(map[string]string{"bucket": c.config.Bucket})
	}
	return info, nil
}

// Exists 对象是否存在
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.config.Bucket, c.ObjectName(name), minio.StatObjectOptions{})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NotFound" {
			return false, nil
		}
		return false, errors.Wrap(err, 503, "minio: stat %s", name)
	}
	return true, nil
}

// PresignedURL 生成下载链接
func (c *Client) PresignedURL(ctx context.Context, name string) (*url.URL, error) {
	u, err := c.client.PresignedGetObject(ctx, c.config.Bucket, c.ObjectName(name), c.config.PresignExpiry, nil)
	if err != nil {
		return nil, errors.Wrap(err, 503, "minio: presign %s", name)
	}
	return u, nil
}

func (c *Client) Bucket() string { return c.config.Bucket }

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
