package config

import (
	"github.com/spf13/viper"

	"github.com/kochabx/cardiac/core/validator"
)

// Option is a function that configures a Config
type Option func(*Config)

// WithFile 指定配置文件路径，文件必须存在
func WithFile(file string) Option {
	return func(c *Config) {
		c.file = file
	}
}

// WithPaths 设置查找路径，默认为 "." 和 "$HOME/.cardiac"
func WithPaths(paths ...string) Option {
	return func(c *Config) {
		c.paths = paths
	}
}

// WithName 配置文件名（不含扩展名），默认 "cardiac"
func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

// WithEnvPrefix 环境变量前缀，默认 "CARDIAC"
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

func WithViper(v *viper.Viper) Option {
	return func(c *Config) {
		c.viper = v
	}
}

func WithValidator(v validator.Validator) Option {
	return func(c *Config) {
		c.validate = v
	}
}

func WithLoader(loader Loader) Option {
	return func(c *Config) {
		c.loader = loader
	}
}
