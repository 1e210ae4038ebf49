// Package redis 基于 Redis 的会话凭据存储，适用于多个终端共享登录状态。
package redis

import (
	"context"
	stderrors "errors"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
)

type Client struct {
	client redis.UniversalClient
	cfg    Config
}

// New 创建客户端并 Ping，失败时释放连接
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addrs,
		MasterName:   cfg.MasterName,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	rc.AddHook(NewDebugHook(log.G, cfg.SlowThreshold))
	if cfg.Tracing {
		if err := redisotel.InstrumentTracing(rc); err != nil {
			_ = rc.Close()
			return nil, errors.Wrap(err, 500, "instrument redis tracing")
		}
	}
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, errors.Wrap(err, 503, "redis ping")
	}
	log.Debug().Str("mode", cfg.mode()).Strs("addrs", cfg.Addrs).Msg("redis store connected")
	return &Client{client: rc, cfg: cfg}, nil
}

func (c *Client) key(k string) string {
	return c.cfg.Prefix + k
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", errors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, 503, "redis get")
	}
	return v, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.key(key), value, c.cfg.TTL).Err(); err != nil {
		return errors.Wrap(err, 503, "redis set")
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return errors.Wrap(err, 503, "redis del")
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
