package backend

import "time"

// Config 后端连接配置
type Config struct {
	URL          string        `json:"url" mapstructure:"url" default:"http://127.0.0.1:8000" validate:"required,url"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout" default:"10s"`
	StreamPath   string        `json:"stream_path" mapstructure:"stream_path" default:"/ws/frontend"`
	Scope        string        `json:"scope" mapstructure:"scope"`
	ClientID     string        `json:"client_id" mapstructure:"client_id"`
	ClientSecret string        `json:"client_secret" mapstructure:"client_secret"`
}
