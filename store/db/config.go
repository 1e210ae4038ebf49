package db

import (
	"time"
)

// Driver 数据库驱动
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config 数据库配置
type Config struct {
	Driver Driver `json:"driver" mapstructure:"driver" default:"sqlite" validate:"oneof=sqlite postgres mysql"`
	// DSN sqlite 为文件路径，postgres/mysql 为驱动原生连接串
	DSN             string        `json:"dsn" mapstructure:"dsn" default:"$HOME/.cardiac/session.db"`
	Table           string        `json:"table" mapstructure:"table" default:"cardiac_settings"`
	Namespace       string        `json:"namespace" mapstructure:"namespace" default:"default"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns" default:"4"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" default:"30m"`
	LogLevel        string        `json:"log_level" mapstructure:"log_level" default:"silent" validate:"oneof=silent error warn info"`
}
