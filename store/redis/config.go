package redis

import "time"

// Config Redis 配置，Addrs 只有一个地址时为单机模式，多个地址为集群模式，设置 MasterName 为哨兵模式
type Config struct {
	Addrs        []string      `json:"addrs" mapstructure:"addrs" default:"127.0.0.1:6379"`
	MasterName   string        `json:"master_name" mapstructure:"master_name"`
	Username     string        `json:"username" mapstructure:"username"`
	Password     string        `json:"password" mapstructure:"password"`
	DB           int           `json:"db" mapstructure:"db"`
	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout" default:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"3s"`
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size"`
	// TTL 凭据过期时间，0 表示不过期
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
	// Prefix 键前缀，多个客户端共用一个 Redis 时用于隔离
	Prefix string `json:"prefix" mapstructure:"prefix" default:"cardiac:"`
	// Tracing 启用 OpenTelemetry 链路追踪
	Tracing bool `json:"tracing" mapstructure:"tracing"`
	// SlowThreshold 超过该耗时的命令记录为慢查询，0 表示不检测
	SlowThreshold time.Duration `json:"slow_threshold" mapstructure:"slow_threshold" default:"100ms"`
}

func (c *Config) mode() string {
	switch {
	case c.MasterName != "":
		return "sentinel"
	case len(c.Addrs) > 1:
		return "cluster"
	default:
		return "single"
	}
}
