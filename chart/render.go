package chart

import (
	"context"
	"fmt"
	"io"
	"strings"

	plot "github.com/chriskim06/drawille-go"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// 幅值轴固定为 [-1, 1]
const (
	MinAmplitude = -1.0
	MaxAmplitude = 1.0
)

// Renderer 将窗口中的全部槽位绘制到 w
type Renderer interface {
	Render(w io.Writer, slots []float64) error
}

func clamp(v float64) float64 {
	return min(max(v, MinAmplitude), MaxAmplitude)
}

// Terminal 盲文点阵终端图，每次重绘把光标移回左上角覆盖上一帧，不清屏也不重新布局
type Terminal struct {
	Width  int
	Height int
	Header func() string
}

func (t *Terminal) Render(w io.Writer, slots []float64) error {
	width, height := t.Width, t.Height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 16
	}

	data := make([]float64, len(slots))
	for i, v := range slots {
		data[i] = clamp(v)
	}

	p := plot.NewCanvas(width, height)
	p.NumDataPoints = len(data)
	p.ShowAxis = true
	p.LineColors = []plot.Color{plot.Red}
	p.Fill([][]float64{data})

	var b strings.Builder
	b.WriteString("\x1b[H")
	if t.Header != nil {
		b.WriteString(t.Header())
		b.WriteString("\x1b[K\n")
	}
	b.WriteString(p.String())
	_, err := io.WriteString(w, b.String())
	return err
}

// PNG 固定纵轴范围的 PNG 快照
type PNG struct {
	Width  int
	Height int
	Title  string
}

func (p *PNG) Render(w io.Writer, slots []float64) error {
	if len(slots) < 2 {
		return fmt.Errorf("chart: need at least 2 points, got %d", len(slots))
	}
	xs := make([]float64, len(slots))
	ys := make([]float64, len(slots))
	for i, v := range slots {
		xs[i] = float64(i)
		ys[i] = clamp(v)
	}

	ch := gochart.Chart{
		Title:  p.Title,
		Width:  p.Width,
		Height: p.Height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 20, Left: 16, Right: 12, Bottom: 12},
		},
		YAxis: gochart.YAxis{
			Name:  "mV",
			Range: &gochart.ContinuousRange{Min: MinAmplitude, Max: MaxAmplitude},
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "ECG",
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: drawing.ColorRed,
					StrokeWidth: 2,
				},
			},
		},
	}
	if ch.Width == 0 {
		ch.Width = 800
	}
	if ch.Height == 0 {
		ch.Height = 300
	}
	return ch.Render(gochart.PNG, w)
}

// Follow 每次收到重绘信号时用 r 重绘，直到 ctx 结束
func Follow(ctx context.Context, win *Window, r Renderer, w io.Writer) error {
	if err := r.Render(w, win.Slots()); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-win.Redraws():
			if err := r.Render(w, win.Slots()); err != nil {
				return err
			}
		}
	}
}
