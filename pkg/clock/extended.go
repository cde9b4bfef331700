package clock

import (
	"fmt"
	"time"
)

// ExtendedTime is a point on the unbounded timeline: the number of wraps
// (Era) and the raw tick within the current wrap (Offset).
type ExtendedTime struct {
	Era    uint32
	Offset Tick
}

// Compare returns -1, 0 or +1 comparing (Era, Offset) lexicographically.
func (t ExtendedTime) Compare(o ExtendedTime) int {
	switch {
	case t.Era < o.Era:
		return -1
	case t.Era > o.Era:
		return 1
	case t.Offset < o.Offset:
		return -1
	case t.Offset > o.Offset:
		return 1
	}
	return 0
}

// Before reports whether t is before o.
func (t ExtendedTime) Before(o ExtendedTime) bool {
	return t.Compare(o) < 0
}

// Millis returns the milliseconds since the beginning of history.
func (t ExtendedTime) Millis() uint64 {
	return uint64(t.Era)<<32 | uint64(t.Offset)
}

// Duration returns the time since the beginning of history.
// It saturates after ~292 years.
func (t ExtendedTime) Duration() time.Duration {
	ms := t.Millis()
	if ms > uint64(1<<63-1)/uint64(time.Millisecond) {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(ms) * time.Millisecond
}

func (t ExtendedTime) String() string {
	return fmt.Sprintf("%d:%010d", t.Era, t.Offset)
}
