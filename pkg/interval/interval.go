// Package interval implements a half-open window of ticks [start, start+duration)
// whose remaining time is computed in wrapping arithmetic.
package interval

import "dorbo/pkg/clock"

// Interval is a half-open window of ticks. The zero value is an empty window.
type Interval struct {
	start    clock.Tick
	duration clock.Tick
}

// Arm starts a window of the given duration at now.
func (i *Interval) Arm(now, duration clock.Tick) {
	i.start = now
	i.duration = duration
}

// Disarm replaces the window with an empty one.
// Callers must disarm a window once it has elapsed, otherwise it opens again
// when the tick counter wraps back into it.
func (i *Interval) Disarm() {
	i.duration = 0
}

// Remaining returns the ticks left in the window at now, or 0 if the window
// has elapsed or was never armed.
//
// start+duration wraps like the tick counter, and so does end-now: while now
// is inside the window the difference is at most duration, after the window
// it underflows to a value greater than duration.
func (i Interval) Remaining(now clock.Tick) clock.Tick {
	end := i.start + i.duration
	if delta := end - now; delta <= i.duration {
		return delta
	}
	return 0
}

// Open reports whether the window has time left at now.
func (i Interval) Open(now clock.Tick) bool {
	return i.Remaining(now) > 0
}

// Start returns the tick the window was armed at.
func (i Interval) Start() clock.Tick {
	return i.start
}

// Duration returns the length of the window.
func (i Interval) Duration() clock.Tick {
	return i.duration
}
