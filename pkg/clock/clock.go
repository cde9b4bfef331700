// Package clock extends a wrapping millisecond counter into an unbounded timeline.
//
// The raw counter (Tick) is 32 bits wide and wraps every WrapPeriod (~49.7 days).
// Clock counts the wraps (eras) as long as Advance is called at least once per
// wrap period, either by the periodic Run goroutine or by the main loop.
package clock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/womat/debug"
)

// Tick is the raw wrapping millisecond counter.
type Tick uint32

// WrapPeriod is the time after which Tick wraps back to zero.
const WrapPeriod = time.Duration(1<<32) * time.Millisecond

// DefaultRolloverPeriod is the default interval of the rollover detection.
const DefaultRolloverPeriod = 4 * time.Second

// Mode selects how rollovers are detected.
type Mode string

const (
	// Periodic runs a dedicated goroutine which checks for rollovers.
	Periodic Mode = "periodic"
	// Lazy detects rollovers only when the clock is read.
	// The main loop must then read the clock more often than WrapPeriod.
	Lazy Mode = "lazy"
)

// TickSource returns the current value of a wrapping millisecond counter.
type TickSource interface {
	Ticks() Tick
}

// Since returns the ticks elapsed from from to now, correct across one wrap.
func Since(from, now Tick) Tick {
	return now - from
}

// Duration converts ticks to a time.Duration.
func (t Tick) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}

// CheckPollInterval returns an error if a clock read every d would miss a rollover.
func CheckPollInterval(d time.Duration) error {
	if d <= 0 || d >= WrapPeriod {
		return fmt.Errorf("poll interval %v must be positive and shorter than the wrap period %v", d, WrapPeriod)
	}
	return nil
}

// Clock is the process wide extended time source.
type Clock struct {
	src TickSource

	// mu guards era and last against concurrent rollover detection.
	mu   sync.Mutex
	era  uint32
	last Tick
}

// New initializes a clock. The current tick of src becomes the beginning of history (era 0).
func New(src TickSource) *Clock {
	return &Clock{
		src:  src,
		last: src.Ticks(),
	}
}

// Now returns the raw wrapping tick.
func (c *Clock) Now() Tick {
	return c.src.Ticks()
}

// Advance detects a rollover of the raw tick and increments the era once per wrap.
// It must be called strictly more often than WrapPeriod.
func (c *Clock) Advance() {
	c.mu.Lock()
	c.advance(c.src.Ticks())
	c.mu.Unlock()
}

// ExtendedNow combines the era with the current raw tick.
// Rollover detection is done inside the same critical section, so two
// consecutive reads never go backwards.
func (c *Clock) ExtendedNow() ExtendedTime {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.src.Ticks()
	c.advance(now)
	return ExtendedTime{Era: c.era, Offset: now}
}

// Era returns the number of wraps observed so far.
func (c *Clock) Era() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.era
}

// advance must be called with mu held.
func (c *Clock) advance(now Tick) {
	if now < c.last {
		c.era++
		debug.DebugLog.Printf("clock rollover detected, era %d", c.era)
	}
	c.last = now
}

// Run calls Advance every period until ctx is done.
// It is the periodic rollover detection of the Periodic mode.
func (c *Clock) Run(ctx context.Context, period time.Duration) error {
	if err := CheckPollInterval(period); err != nil {
		return err
	}

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.Advance()
		}
	}
}
