// Package chart 维护实时心电波形的滑动窗口并负责渲染。
package chart

import (
	"sync"
)

// MaxPoints 窗口容量
const MaxPoints = 40

type slot struct {
	value float64
	real  bool
}

// Window 固定容量的环形缓冲区。初始化时填满占位槽位，
// 每次 Push 恰好淘汰最旧的一个槽位，长度永远不会超过容量。
type Window struct {
	mu     sync.Mutex
	slots  []slot
	head   int // 最旧槽位的下标
	filled int // 真实样本数

	redraw chan struct{}
}

// NewWindow capacity <= 0 时使用 MaxPoints
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = MaxPoints
	}
	return &Window{
		slots:  make([]slot, capacity),
		redraw: make(chan struct{}, 1),
	}
}

// Push O(1) 写入一个样本并发出重绘信号
func (w *Window) Push(v float64) {
	w.mu.Lock()
	w.slots[w.head] = slot{value: v, real: true}
	w.head = (w.head + 1) % len(w.slots)
	if w.filled < len(w.slots) {
		w.filled++
	}
	w.mu.Unlock()

	w.Nudge()
}

// Nudge 只发出重绘信号，用于样本之外的显示变化，例如计时器刷新
func (w *Window) Nudge() {
	select {
	case w.redraw <- struct{}{}:
	default:
	}
}

// Redraws 重绘信号。连续的多次 Push 合并为一次信号
func (w *Window) Redraws() <-chan struct{} {
	return w.redraw
}

// Samples 按从旧到新返回真实样本
func (w *Window) Samples() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, 0, w.filled)
	for i := range len(w.slots) {
		s := w.slots[(w.head+i)%len(w.slots)]
		if s.real {
			out = append(out, s.value)
		}
	}
	return out
}

// Slots 返回完整窗口，占位槽位为 0，用于固定宽度的绘制
func (w *Window) Slots() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.slots))
	for i := range out {
		out[i] = w.slots[(w.head+i)%len(w.slots)].value
	}
	return out
}

// Len 真实样本数
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filled
}

func (w *Window) Cap() int {
	return len(w.slots)
}

// Reset 清空为占位状态，设备切换时调用
func (w *Window) Reset() {
	w.mu.Lock()
	clear(w.slots)
	w.head, w.filled = 0, 0
	w.mu.Unlock()

	w.Nudge()
}
