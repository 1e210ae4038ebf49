// Package timer 显示数据持久化开启以来的会话时长。
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Interval 刷新间隔
const Interval = time.Second

// Format 将时长格式化为 HH:MM:SS，负值视为 0，小时数超过 99 时不截断
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

type Option func(*Timer)

// WithClock 替换时钟，测试中使用 clockwork.NewFakeClock
func WithClock(c clockwork.Clock) Option {
	return func(t *Timer) {
		t.clock = c
	}
}

// Timer 会话计时器。onTick 在 Start 时同步调用一次，之后每秒在计时 goroutine 中调用。
// onTick 在持有内部锁时调用，不能回调 Timer 的任何方法。
type Timer struct {
	clock  clockwork.Clock
	onTick func(elapsed string)

	mu        sync.Mutex
	stop      chan struct{}
	done      chan struct{}
	startedAt time.Time
	last      string
}

func New(onTick func(elapsed string), opts ...Option) *Timer {
	t := &Timer{clock: clockwork.NewRealClock(), onTick: onTick, last: Format(0)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start 以 startedAt 为起点开始计时，已在运行时先停止再重新开始
func (t *Timer) Start(startedAt time.Time) {
	t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedAt = startedAt
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.tick()

	ticker := t.clock.NewTicker(Interval)
	go t.loop(ticker, t.stop, t.done)
}

func (t *Timer) loop(ticker clockwork.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			select {
			case <-stop:
				return
			default:
			}
			t.mu.Lock()
			t.tick()
			t.mu.Unlock()
		}
	}
}

// tick 需持有 mu
func (t *Timer) tick() {
	t.last = Format(t.clock.Since(t.startedAt))
	if t.onTick != nil {
		t.onTick(t.last)
	}
}

// Stop 停止计时并等待计时 goroutine 退出，返回后不会再有回调。可重复调用
func (t *Timer) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

// Elapsed 最近一次显示的时长
func (t *Timer) Elapsed() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// StartedAt 当前计时起点，未运行时为零值
func (t *Timer) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return time.Time{}
	}
	return t.startedAt
}
