package config

// Loader 负责把配置源解码到目标结构体
type Loader interface {
	Load(target any) error

	// Watch 配置源变化时回调
	Watch(callback func()) error
}
