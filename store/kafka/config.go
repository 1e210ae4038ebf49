package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kochabx/cardiac/core/tag"
)

// Config Kafka 样本旁路配置
type Config struct {
	// Enabled 为 false 时不创建任何生产者
	Enabled  bool     `json:"enabled" mapstructure:"enabled"`
	Brokers  []string `json:"brokers" mapstructure:"brokers" default:"localhost:9092"`
	Topic    string   `json:"topic" mapstructure:"topic" default:"cardiac.samples"`
	Username string   `json:"username" mapstructure:"username"`
	Password string   `json:"password" mapstructure:"password"`

	// Balancer 分区策略: hash 按设备编号分区，同一设备的样本保持顺序
	Balancer               string `json:"balancer" mapstructure:"balancer" default:"hash" validate:"oneof=hash least_bytes"`
	AllowAutoTopicCreation bool   `json:"allow_auto_topic_creation" mapstructure:"allow_auto_topic_creation"`

	Timeout      time.Duration `json:"timeout" mapstructure:"timeout" default:"3s"`
	BatchTimeout time.Duration `json:"batch_timeout" mapstructure:"batch_timeout" default:"200ms"`
	CloseTimeout time.Duration `json:"close_timeout" mapstructure:"close_timeout" default:"5s"`
}

func (c *Config) applyDefaults() error {
	return tag.ApplyDefaults(c)
}

func (c *Config) balancer() kafka.Balancer {
	if c.Balancer == "least_bytes" {
		return &kafka.LeastBytes{}
	}
	return &kafka.Hash{}
}
