package log

import (
	"time"

	"github.com/kochabx/cardiac/log/writer"
)

// Config 日志配置
type Config struct {
	Level       string     `json:"level" mapstructure:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Output      string     `json:"output" mapstructure:"output" default:"console" validate:"oneof=console file both"`
	Caller      bool       `json:"caller" mapstructure:"caller"`
	Plaintext   bool       `json:"plaintext" mapstructure:"plaintext"` // 关闭令牌与密码脱敏
	File        FileConfig `json:"file" mapstructure:"file"`
}

// FileConfig 日志文件配置
type FileConfig struct {
	Dir        string            `json:"dir" mapstructure:"dir" default:"log"`
	Name       string            `json:"name" mapstructure:"name" default:"cardiac"`
	Ext        string            `json:"ext" mapstructure:"ext" default:"log"`
	RotateMode writer.RotateMode `json:"rotate_mode" mapstructure:"rotate_mode" default:"time" validate:"oneof=time size"`
	MaxAge     time.Duration     `json:"max_age" mapstructure:"max_age" default:"168h"`
	Rotation   time.Duration     `json:"rotation" mapstructure:"rotation" default:"24h"`
	MaxSize    int               `json:"max_size" mapstructure:"max_size" default:"100"`
	MaxBackups int               `json:"max_backups" mapstructure:"max_backups" default:"5"`
	Compress   bool              `json:"compress" mapstructure:"compress"`
}

func (c FileConfig) rotateConfig() writer.RotateConfig {
	return writer.RotateConfig{
		Mode:     c.RotateMode,
		Dir:      c.Dir,
		Name:     c.Name,
		Ext:      c.Ext,
		MaxAge:   c.MaxAge,
		Rotation: c.Rotation,
		MaxSize:  c.MaxSize,
		Backups:  c.MaxBackups,
		Compress: c.Compress,
	}
}
