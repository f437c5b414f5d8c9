package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// dispatcher runs queued functions one at a time, in submission order.
// A function submitted while another one runs (from any goroutine, including
// from inside the running function) is queued and executed by the goroutine
// that is already draining the queue, so dispatching never interleaves and
// never deadlocks on re-entry.
type dispatcher struct {
	name    string
	logger  *slog.Logger
	mu      sync.Mutex
	queue   []func()
	running bool
}

func newDispatcher(name string, logger *slog.Logger) *dispatcher {
	return &dispatcher{name: name, logger: logger}
}

func (d *dispatcher) run(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()
		d.safeCall(next)
		d.mu.Lock()
	}
	d.running = false
	d.mu.Unlock()
}

// safeCall keeps a panicking listener from wedging the queue.
func (d *dispatcher) safeCall(fn func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logPanic(d.logger, d.name+" listener panic", recovered)
		}
	}()
	fn()
}

// logPanic logs a recovered panic, with the stack only when debug logging is on.
func logPanic(logger *slog.Logger, msg string, recovered any) {
	err := fmt.Errorf("%v", recovered)
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Error(msg, "error", err, "stack", string(debug.Stack()))
		return
	}
	logger.Error(msg, "error", err)
}
