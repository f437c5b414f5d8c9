package live

import (
	"sync"
	"time"

	"github.com/aretw0/notesync/pkg/core"
)

// Clock hands out strictly increasing acknowledgment times.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewClock creates a clock reading now; nil uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Next returns an UTC time strictly after every previously returned one.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// Resolve copies fields and replaces every core.ServerTimestamp sentinel
// with a single acknowledgment time.
func (c *Clock) Resolve(fields core.Fields) core.Fields {
	out := make(core.Fields, len(fields))
	var stamp time.Time
	for k, v := range fields {
		if core.IsServerTimestamp(v) {
			if stamp.IsZero() {
				stamp = c.Next()
			}
			out[k] = stamp
			continue
		}
		out[k] = v
	}
	return out
}
