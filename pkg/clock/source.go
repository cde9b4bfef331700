package clock

import (
	"sync"
	"time"
)

// SystemTicks derives ticks from the process monotonic clock.
type SystemTicks struct {
	epoch  time.Time
	offset Tick
}

// NewSystemTicks starts counting at offset. A large offset lets the counter
// wrap shortly after start, which is useful to soak test rollover handling.
func NewSystemTicks(offset Tick) *SystemTicks {
	return &SystemTicks{epoch: time.Now(), offset: offset}
}

// Ticks returns the milliseconds since start, truncated to 32 bits.
func (s *SystemTicks) Ticks() Tick {
	return s.offset + Tick(uint64(time.Since(s.epoch)/time.Millisecond))
}

// FakeTicks is a manually driven tick source for tests and emulation.
type FakeTicks struct {
	mu  sync.Mutex
	now Tick
}

// NewFakeTicks returns a source starting at t.
func NewFakeTicks(t Tick) *FakeTicks {
	return &FakeTicks{now: t}
}

// Ticks returns the current fake tick.
func (f *FakeTicks) Ticks() Tick {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set sets the fake tick.
func (f *FakeTicks) Set(t Tick) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Add advances the fake tick by d, wrapping like the hardware counter.
func (f *FakeTicks) Add(d Tick) Tick {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += d
	return f.now
}
