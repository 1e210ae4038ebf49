package minio

import (
	"time"
)

// Config MinIO 配置
type Config struct {
	Endpoint        string `json:"endpoint" mapstructure:"endpoint" default:"127.0.0.1:9000"`
	AccessKeyID     string `json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" mapstructure:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl" mapstructure:"use_ssl"`
	Region          string `json:"region" mapstructure:"region"`
	Bucket          string `json:"bucket" mapstructure:"bucket" default:"cardiac-readings"`
	// Prefix 对象名前缀
	Prefix string `json:"prefix" mapstructure:"prefix"`
	// PresignExpiry 预签名下载链接有效期
	PresignExpiry time.Duration `json:"presign_expiry" mapstructure:"presign_expiry" default:"1h"`
}
