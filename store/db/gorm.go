// Package db 基于 gorm 的会话凭据存储，支持 sqlite、postgres 与 mysql。
package db

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/errors"
)

// Setting 一条键值记录，(namespace, key) 为主键
type Setting struct {
	Namespace string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

type Gorm struct {
	DB  *gorm.DB
	cfg Config
}

func dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite:
		path := os.ExpandEnv(cfg.DSN)
		if path == ":memory:" {
			return sqlite.Open(path), nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, 500, "create sqlite directory")
		}
		return sqlite.Open(path + "?_busy_timeout=5000&_journal_mode=WAL"), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, errors.New(400, "unsupported database driver %q", cfg.Driver)
	}
}

func logLevel(s string) logger.LogLevel {
	switch s {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// New 打开数据库并迁移表结构
func New(ctx context.Context, cfg Config) (*Gorm, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logLevel(cfg.LogLevel))})
	if err != nil {
		return nil, errors.Wrap(err, 503, "open %s", cfg.Driver)
	}
	g := &Gorm{DB: db, cfg: cfg}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, 500, "get sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, 503, "ping %s", cfg.Driver)
	}
	if err := g.table(ctx).AutoMigrate(&Setting{}); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, 500, "migrate %s", cfg.Table)
	}
	return g, nil
}

func (g *Gorm) table(ctx context.Context) *gorm.DB {
	return g.DB.WithContext(ctx).Table(g.cfg.Table)
}

// where key 在 mysql 中为保留字，使用 map 条件让 gorm 负责引用列名
func (g *Gorm) where(key string) map[string]any {
	return map[string]any{"namespace": g.cfg.Namespace, "key": key}
}

func (g *Gorm) Get(ctx context.Context, key string) (string, error) {
	var s Setting
	err := g.table(ctx).Where(g.where(key)).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, 503, "select setting")
	}
	return s.Value, nil
}

func (g *Gorm) Set(ctx context.Context, key, value string) error {
	s := Setting{Namespace: g.cfg.Namespace, Key: key, Value: value}
	err := g.table(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
	if err != nil {
		return errors.Wrap(err, 503, "upsert setting")
	}
	return nil
}

func (g *Gorm) Delete(ctx context.Context, key string) error {
	err := g.table(ctx).Where(g.where(key)).Delete(&Setting{}).Error
	if err != nil {
		return errors.Wrap(err, 503, "delete setting")
	}
	return nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
