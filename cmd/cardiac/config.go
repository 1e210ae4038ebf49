package main

import (
	"github.com/kochabx/cardiac/backend"
	"github.com/kochabx/cardiac/chart"
	"github.com/kochabx/cardiac/config"
	"github.com/kochabx/cardiac/log"
	"github.com/kochabx/cardiac/readings"
	"github.com/kochabx/cardiac/session"
	"github.com/kochabx/cardiac/store"
	"github.com/kochabx/cardiac/store/kafka"
	"github.com/kochabx/cardiac/stream"
	xhttp "github.com/kochabx/cardiac/transport/http"
)

// Config cardiac.yaml 的完整结构
type Config struct {
	Backend   backend.Config  `json:"backend" mapstructure:"backend"`
	Stream    stream.Config   `json:"stream" mapstructure:"stream"`
	Chart     chart.Config    `json:"chart" mapstructure:"chart"`
	Storage   store.Config    `json:"storage" mapstructure:"storage"`
	Log       log.Config      `json:"log" mapstructure:"log"`
	Status    xhttp.Config    `json:"status" mapstructure:"status"`
	Downloads readings.Config `json:"downloads" mapstructure:"downloads"`
	Kafka     kafka.Config    `json:"kafka" mapstructure:"kafka"`
	Session   session.Config  `json:"session" mapstructure:"session"`
}

// loadConfig 命令行工具默认只输出 warn 以上的日志，配置文件可以覆盖
func loadConfig(file string) (*Config, *config.Config, error) {
	cfg := &Config{Log: log.Config{Level: "warn"}}
	var opts []config.Option
	if file != "" {
		opts = append(opts, config.WithFile(file))
	}
	c := config.New(cfg, opts...)
	if err := c.Load(); err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}
