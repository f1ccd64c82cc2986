package oneshot

import (
	"sync"
	"time"
)

type (
	// Clock provides the current (unadjusted) time, to a [Registry].
	Clock interface {
		Now() time.Time
	}

	// SystemClock implements [Clock] using [time.Now], which includes a
	// monotonic clock reading.
	SystemClock struct{}

	// ManualClock is a [Clock] that only moves when told to, intended for
	// deterministic tests. It is safe for concurrent use. The zero value
	// starts at the zero [time.Time].
	ManualClock struct {
		mu  sync.Mutex
		now time.Time
	}
)

var (
	// compile time assertions

	_ Clock = SystemClock{}
	_ Clock = (*ManualClock)(nil)
)

func (SystemClock) Now() time.Time { return time.Now() }

// NewManualClock returns a [ManualClock] set to now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (x *ManualClock) Now() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.now
}

// Set moves the clock to now, which may be in the past.
func (x *ManualClock) Set(now time.Time) {
	x.mu.Lock()
	x.now = now
	x.mu.Unlock()
}

// Advance moves the clock forward by d, returning the new time.
func (x *ManualClock) Advance(d time.Duration) time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.now = x.now.Add(d)
	return x.now
}
