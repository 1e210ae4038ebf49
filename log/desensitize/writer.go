package desensitize

import (
	"io"
)

// Writer 包装 writer，写入前脱敏
type Writer struct {
	w    io.Writer
	hook *Hook
}

func NewWriter(w io.Writer, hook *Hook) *Writer {
	return &Writer{w: w, hook: hook}
}

// Write 返回值始终为 len(p)，脱敏改变长度时 zerolog 不会误判为短写
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 || w.hook == nil || w.hook.RuleCount() == 0 {
		return w.w.Write(p)
	}
	text := string(p)
	out := w.hook.Desensitize(text)
	if out == text {
		return w.w.Write(p)
	}
	if _, err := io.WriteString(w.w, out); err != nil {
		return 0, err
	}
	return len(p), nil
}
