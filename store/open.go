package store

import (
	"context"

	"github.com/kochabx/cardiac/errors"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/store/db"
	"github.com/kochabx/cardiac/store/etcd"
	"github.com/kochabx/cardiac/store/file"
	"github.com/kochabx/cardiac/store/memory"
	"github.com/kochabx/cardiac/store/mongo"
	"github.com/kochabx/cardiac/store/redis"
)

// Backend 存储后端
type Backend string

const (
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendEtcd   Backend = "etcd"
	BackendDB     Backend = "db"
	BackendMongo  Backend = "mongo"
)

// Config 存储配置，只有 Backend 对应的子配置生效
type Config struct {
	Backend Backend      `json:"backend" mapstructure:"backend" default:"file" validate:"oneof=file memory redis etcd db mongo"`
	File    file.Config  `json:"file" mapstructure:"file"`
	Redis   redis.Config `json:"redis" mapstructure:"redis"`
	Etcd    etcd.Config  `json:"etcd" mapstructure:"etcd"`
	DB      db.Config    `json:"db" mapstructure:"db"`
	Mongo   mongo.Config `json:"mongo" mapstructure:"mongo"`
}

// Open 按配置创建存储
func Open(ctx context.Context, c Config) (Storage, error) {
	log.Debug().Str("backend", string(c.Backend)).Msg("open session storage")
	switch c.Backend {
	case BackendFile, "":
		return opened(file.New(c.File))
	case BackendMemory:
		return memory.New(), nil
	case BackendRedis:
		return opened(redis.New(ctx, c.Redis))
	case BackendEtcd:
		return opened(etcd.New(ctx, c.Etcd))
	case BackendDB:
		return opened(db.New(ctx, c.DB))
	case BackendMongo:
		return opened(mongo.New(ctx, c.Mongo))
	default:
		return nil, errors.New(400, "unknown storage backend %q", c.Backend)
	}
}

// opened 避免构造失败时返回非 nil 的接口值
func opened[T Storage](s T, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
