package writer

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotateMode 日志轮转模式
type RotateMode string

const (
	RotateModeTime RotateMode = "time"
	RotateModeSize RotateMode = "size"
)

// RotateConfig 日志轮转配置
type RotateConfig struct {
	Mode     RotateMode
	Dir      string
	Name     string
	Ext      string
	MaxAge   time.Duration // time: 保留时长; size: 按天取整
	Rotation time.Duration // 仅 time 模式
	MaxSize  int           // MB，仅 size 模式
	Backups  int
	Compress bool
}

func (c RotateConfig) path(pattern string) string {
	name := c.Name
	if pattern != "" {
		name += "." + pattern
	}
	return filepath.Join(c.Dir, name+"."+c.Ext)
}

// File 创建带轮转的文件 writer，返回值同时实现 io.Closer
func File(c RotateConfig) (io.WriteCloser, error) {
	switch c.Mode {
	case RotateModeTime:
		w, err := rotatelogs.New(
			c.path("%Y%m%d%H%M"),
			rotatelogs.WithLinkName(c.path("")),
			rotatelogs.WithMaxAge(c.MaxAge),
			rotatelogs.WithRotationTime(c.Rotation),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create time rotate writer: %w", err)
		}
		return w, nil
	case RotateModeSize:
		return &lumberjack.Logger{
			Filename:   c.path(""),
			MaxSize:    c.MaxSize,
			MaxBackups: c.Backups,
			MaxAge:     int(c.MaxAge.Hours() / 24),
			Compress:   c.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported rotate mode: %q", c.Mode)
	}
}
