package config

import (
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kochabx/cardiac/core/tag"
	"github.com/kochabx/cardiac/core/validator"
	"github.com/kochabx/cardiac/errors"
)

// FileLoader 从 yaml/json/toml 文件与环境变量加载配置。
// 环境变量以 prefix 开头，键中的 "." 替换为 "_"，如 CARDIAC_BACKEND_URL
type FileLoader struct {
	viper    *viper.Viper
	validate validator.Validator
	optional bool
}

// NewFileLoader file 为空时在 paths 中查找 name.(yaml|json|toml)
func NewFileLoader(v *viper.Viper, file, name string, paths []string, envPrefix string, validate validator.Validator) *FileLoader {
	if file != "" {
		v.SetConfigFile(file)
		if ext := strings.TrimPrefix(filepath.Ext(file), "."); ext != "" {
			v.SetConfigType(ext)
		}
	} else {
		v.SetConfigName(name)
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &FileLoader{viper: v, validate: validate, optional: file == ""}
}

// Load 默认值 → 配置文件 → 环境变量 → 校验
func (l *FileLoader) Load(target any) error {
	if err := tag.ApplyDefaults(target); err != nil {
		return errors.New(500, "failed to apply defaults: %v", err)
	}
	registerKeys(l.viper, "", reflect.ValueOf(target))

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !l.optional || !errors.As(err, &notFound) {
			return errors.New(404, "config file not readable: %v", err)
		}
	}

	if err := l.viper.Unmarshal(target); err != nil {
		return errors.New(500, "config parse error: %v", err)
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return errors.New(400, "config validation failed: %v", err).WithCause(err)
		}
	}
	return nil
}

func (l *FileLoader) Watch(callback func()) error {
	if l.viper.ConfigFileUsed() == "" {
		return nil
	}
	l.viper.OnConfigChange(func(fsnotify.Event) {
		if callback != nil {
			callback()
		}
	})
	l.viper.WatchConfig()
	return nil
}

// registerKeys 以当前值作为默认值登记所有叶子键，使 AutomaticEnv 在 Unmarshal 时生效
func registerKeys(v *viper.Viper, prefix string, rv reflect.Value) {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Struct && fv.Type().PkgPath() != "time" {
			registerKeys(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
