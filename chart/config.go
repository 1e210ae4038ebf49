package chart

// Config 图表配置
type Config struct {
	Points         int `json:"points" mapstructure:"points" default:"40" validate:"gte=2"`
	TerminalWidth  int `json:"terminal_width" mapstructure:"terminal_width" default:"80"`
	TerminalHeight int `json:"terminal_height" mapstructure:"terminal_height" default:"16"`
	PNGWidth       int `json:"png_width" mapstructure:"png_width" default:"800"`
	PNGHeight      int `json:"png_height" mapstructure:"png_height" default:"300"`
}

func (c Config) Terminal(header func() string) *Terminal {
	return &Terminal{Width: c.TerminalWidth, Height: c.TerminalHeight, Header: header}
}

func (c Config) PNG(title string) *PNG {
	return &PNG{Width: c.PNGWidth, Height: c.PNGHeight, Title: title}
}
