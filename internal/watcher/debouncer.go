package watcher

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// State of a Debouncer: Idle → Accumulating → Flushing → Idle.
type State int

const (
	StateIdle State = iota
	StateAccumulating
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "accumulating"
	case StateFlushing:
		return "flushing"
	}
	return "idle"
}

// Debouncer collects paths and hands them to flush once no new path has been
// added for wait. The timer runs on an injectable clock.
type Debouncer struct {
	clock clock.Clock
	wait  time.Duration
	flush func(paths []string)

	mu      sync.Mutex
	state   State
	timer   *clock.Timer
	gen     uint64 // 每次重新计时加一, 过期的定时器回调直接忽略
	pending map[string]struct{}
	order   []string
}

func NewDebouncer(clk clock.Clock, wait time.Duration, flush func(paths []string)) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{
		clock:   clk,
		wait:    wait,
		flush:   flush,
		pending: make(map[string]struct{}),
	}
}

// Add queues path and arms (or extends) the timer.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[path]; !ok {
		d.pending[path] = struct{}{}
		d.order = append(d.order, path)
	}
	if d.state == StateIdle {
		d.state = StateAccumulating
	}
	d.rearm()
}

// rearm replaces the timer. A callback of the old timer that already started
// sees a different generation and does nothing. Callers hold d.mu.
func (d *Debouncer) rearm() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(gen) })
}

// Cancel stops the timer and drops everything pending.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.pending = make(map[string]struct{})
	d.order = nil
	if d.state == StateAccumulating {
		d.state = StateIdle
	}
}

func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pending returns the number of queued paths.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	paths := d.order
	d.order = nil
	d.pending = make(map[string]struct{})
	d.timer = nil
	if len(paths) == 0 {
		d.state = StateIdle
		d.mu.Unlock()
		return
	}
	d.state = StateFlushing
	d.mu.Unlock()

	d.flush(paths)

	d.mu.Lock()
	// 刷新期间又来了新事件, 新一轮已经开始计时
	if len(d.order) > 0 {
		d.state = StateAccumulating
	} else {
		d.state = StateIdle
	}
	d.mu.Unlock()
}
