// Package etcd 基于 etcd 的会话凭据存储。
package etcd

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/errors"
)

// Config etcd 配置
type Config struct {
	Endpoints   []string      `json:"endpoints" mapstructure:"endpoints" default:"127.0.0.1:2379"`
	Username    string        `json:"username" mapstructure:"username"`
	Password    string        `json:"password" mapstructure:"password"`
	DialTimeout time.Duration `json:"dial_timeout" mapstructure:"dial_timeout" default:"5s"`
	// Prefix 键前缀
	Prefix string `json:"prefix" mapstructure:"prefix" default:"/cardiac/"`
}

type Etcd struct {
	client *clientv3.Client
	cfg    Config
}

func New(ctx context.Context, cfg Config) (*Etcd, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, 503, "etcd connect")
	}
	e := &Etcd{client: client, cfg: cfg}
	if err := e.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return e, nil
}

// Ping 查询第一个节点的状态
func (e *Etcd) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	defer cancel()
	if _, err := e.client.Status(ctx, e.cfg.Endpoints[0]); err != nil {
		return errors.Wrap(err, 503, "etcd ping")
	}
	return nil
}

func (e *Etcd) key(k string) string {
	return e.cfg.Prefix + k
}

func (e *Etcd) Get(ctx context.Context, key string) (string, error) {
	resp, err := e.client.Get(ctx, e.key(key))
	if err != nil {
		return "", errors.Wrap(err, 503, "etcd get")
	}
	if len(resp.Kvs) == 0 {
		return "", errors.ErrNotFound
	}
	return string(resp.Kvs[0].Value), nil
}

func (e *Etcd) Set(ctx context.Context, key, value string) error {
	if _, err := e.client.Put(ctx, e.key(key), value); err != nil {
		return errors.Wrap(err, 503, "etcd put")
	}
	return nil
}

func (e *Etcd) Delete(ctx context.Context, key string) error {
	if _, err := e.client.Delete(ctx, e.key(key)); err != nil {
		return errors.Wrap(err, 503, "etcd delete")
	}
	return nil
}

func (e *Etcd) Close() error {
	return e.client.Close()
}
