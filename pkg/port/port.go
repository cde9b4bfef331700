// Package port holds the definition of a physical line level and edge
package port

// Level is the electrical level of a line.
type Level int

const (
	// Low indicates a logical 0.
	Low Level = 0
	// High indicates a logical 1.
	High Level = 1
)

// EventType indicates the type of change of a line level.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates a low to high change.
	RisingEdge
	// FallingEdge indicates a high to low change.
	FallingEdge
)

// Edge returns the edge that leads from level l to level next.
// The zero EventType is returned if the level did not change.
func (l Level) Edge(next Level) EventType {
	switch {
	case l == High && next == Low:
		return FallingEdge
	case l == Low && next == High:
		return RisingEdge
	default:
		return 0
	}
}

// FromBool converts a boolean line value to a Level.
func FromBool(b bool) Level {
	if b {
		return High
	}
	return Low
}
