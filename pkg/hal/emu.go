package hal

import (
	"fmt"
	"sync"

	"dorbo/pkg/port"
)

// Emu emulates input and output lines without hardware.
// SetLevel on a watched line calls the handler like an edge of a real line.
type Emu struct {
	*lineCache

	mu      sync.Mutex
	outputs map[int]bool
	writes  map[int]int
}

// NewEmulator returns an emulator with all lines idle high and no outputs.
func NewEmulator() *Emu {
	return &Emu{
		lineCache: newLineCache(),
		outputs:   map[int]bool{},
		writes:    map[int]int{},
	}
}

// Watch implements Inputs.
func (e *Emu) Watch(lines []int, handler func()) error {
	return e.watch(lines, handler)
}

// SetLevel sets the level of line. A change of a watched line calls the handler.
func (e *Emu) SetLevel(line int, level port.Level) {
	if e.Level(line) == level {
		return
	}
	e.edge(line, level)
}

// Pulse pulls line low and releases it, the signal of one Wiegand bit.
func (e *Emu) Pulse(line int) {
	e.SetLevel(line, port.Low)
	e.SetLevel(line, port.High)
}

// Request implements Outputs.
func (e *Emu) Request(line int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if line < 0 {
		return fmt.Errorf("%w: line %d", ErrInvalidParam, line)
	}
	if _, ok := e.outputs[line]; ok {
		return fmt.Errorf("%w: line %d requested twice", ErrInvalidParam, line)
	}
	e.outputs[line] = false
	return nil
}

// Write implements Outputs.
func (e *Emu) Write(line int, high bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.outputs[line]; !ok {
		return fmt.Errorf("%w: line %d not requested", ErrInvalidParam, line)
	}
	e.outputs[line] = high
	e.writes[line]++
	return nil
}

// Written returns the level of output line and whether it was requested.
func (e *Emu) Written(line int) (high bool, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	high, ok = e.outputs[line]
	return
}

// Writes returns the number of writes to output line.
func (e *Emu) Writes(line int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writes[line]
}

// Close stops calling the handler.
func (e *Emu) Close() error {
	e.stop()
	return nil
}
