package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/cardiac/core/validator"
	"github.com/kochabx/cardiac/log"
)

// Config 管理配置的加载与热更新
type Config struct {
	mu        sync.RWMutex
	viper     *viper.Viper
	validate  validator.Validator
	target    any
	loader    Loader
	file      string
	name      string
	paths     []string
	envPrefix string
}

// New 创建配置管理器，target 必须是结构体指针
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:     viper.New(),
		validate:  validator.Validate,
		target:    target,
		name:      "cardiac",
		paths:     []string{".", "$HOME/.cardiac"},
		envPrefix: "CARDIAC",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loader == nil {
		c.loader = NewFileLoader(c.viper, c.file, c.name, c.paths, c.envPrefix, c.validate)
	}
	return c
}

func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loader.Load(c.target)
}

// Watch 配置文件变化时重新加载，成功后调用 onReload
func (c *Config) Watch(onReload func()) error {
	return c.loader.Watch(func() {
		log.Info().Str("file", c.viper.ConfigFileUsed()).Msg("config change detected")
		if err := c.Load(); err != nil {
			log.Error().Err(err).Msg("failed to reload config after change")
			return
		}
		log.Info().Msg("config reloaded")
		if onReload != nil {
			onReload()
		}
	})
}

// Viper returns the underlying viper instance.
func (c *Config) Viper() *viper.Viper {
	return c.viper
}
