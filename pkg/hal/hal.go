// Package hal is the access to the gpio lines of the controller.
//
// Inputs watches the data lines of the readers and calls a handler after every
// edge. Outputs drives strikes, indicators and the heartbeat LED.
// The backends are gpiod (character device), gpiomem (memory mapped registers,
// outputs only), rpio (outputs only) and an emulator for tests and bench setups.
package hal

import (
	"errors"
	"fmt"
	"sync"

	"dorbo/pkg/port"
)

const (
	Gpiod    = "gpiod"
	Gpiomem  = "gpiomem"
	Rpio     = "rpio"
	Emulator = "emu"

	// DefaultChip is the gpio character device of the Raspberry Pi header.
	DefaultChip = "gpiochip0"
	consumer    = "dorbo"
)

var (
	// ErrUnsupported is returned for a backend that is not available on this platform.
	ErrUnsupported = errors.New("gpio backend not supported")
	// ErrInvalidParam is returned for unknown backends and lines.
	ErrInvalidParam = errors.New("invalid parameters")
)

// Inputs are the reader data lines.
type Inputs interface {
	// Watch requests lines as inputs with pull-up and calls handler after every
	// edge on one of them. Calls of handler are serialized.
	Watch(lines []int, handler func()) error
	// Level returns the level of a watched line as of the last edge.
	Level(line int) port.Level
	Close() error
}

// Outputs are the strike, indicator and heartbeat lines.
type Outputs interface {
	// Request requests line as output, initially low.
	Request(line int) error
	Write(line int, high bool) error
	Close() error
}

// Config selects the backends.
type Config struct {
	// Inputs is the backend of the reader lines: gpiod or emu.
	Inputs string `yaml:"inputs"`
	// Outputs is the backend of the output lines: gpiod, gpiomem, rpio or emu.
	Outputs string `yaml:"outputs"`
	// Chip is the gpiod character device.
	Chip string `yaml:"chip"`
}

// OpenInputs opens the input backend defined by c.
func OpenInputs(c Config) (Inputs, error) {
	switch c.Inputs {
	case Gpiod:
		return openGpiodInputs(chip(c))
	case Emulator:
		return NewEmulator(), nil
	case Gpiomem, Rpio:
		return nil, fmt.Errorf("%w: %s has no input backend", ErrInvalidParam, c.Inputs)
	default:
		return nil, fmt.Errorf("%w: input backend %q", ErrInvalidParam, c.Inputs)
	}
}

// OpenOutputs opens the output backend defined by c.
// If inputs and outputs both are emulated, the emulator is shared.
func OpenOutputs(c Config, in Inputs) (Outputs, error) {
	switch c.Outputs {
	case Gpiod:
		return openGpiodOutputs(chip(c))
	case Gpiomem:
		return openGpiomemOutputs()
	case Rpio:
		return openRpioOutputs()
	case Emulator:
		if e, ok := in.(*Emu); ok {
			return e, nil
		}
		return NewEmulator(), nil
	default:
		return nil, fmt.Errorf("%w: output backend %q", ErrInvalidParam, c.Outputs)
	}
}

func chip(c Config) string {
	if c.Chip == "" {
		return DefaultChip
	}
	return c.Chip
}

// lineCache holds the levels of the watched lines and serializes the handler.
// The backends update it from their edge callbacks.
type lineCache struct {
	// serializes edge and guards handler
	edgeMu  sync.Mutex
	handler func()

	mu     sync.RWMutex
	levels map[int]port.Level
}

func newLineCache() *lineCache {
	return &lineCache{levels: map[int]port.Level{}}
}

func (c *lineCache) watch(lines []int, handler func()) error {
	c.edgeMu.Lock()
	defer c.edgeMu.Unlock()

	if c.handler != nil {
		return fmt.Errorf("%w: lines already watched", ErrInvalidParam)
	}
	if handler == nil {
		return fmt.Errorf("%w: no handler", ErrInvalidParam)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		if l < 0 {
			return fmt.Errorf("%w: line %d", ErrInvalidParam, l)
		}
		if _, ok := c.levels[l]; ok {
			return fmt.Errorf("%w: line %d requested twice", ErrInvalidParam, l)
		}
		c.levels[l] = port.High
	}

	c.handler = handler
	return nil
}

func (c *lineCache) set(line int, level port.Level) {
	c.mu.Lock()
	c.levels[line] = level
	c.mu.Unlock()
}

// edge stores the new level of line and calls the handler.
// The level is updated under the handler lock, so a short pulse is seen by
// the handler even if the next edge is already queued.
func (c *lineCache) edge(line int, level port.Level) {
	c.edgeMu.Lock()
	defer c.edgeMu.Unlock()

	c.set(line, level)
	if c.handler != nil {
		c.handler()
	}
}

// Level returns the cached level of line; unknown lines read idle high.
func (c *lineCache) Level(line int) port.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if l, ok := c.levels[line]; ok {
		return l
	}
	return port.High
}

func (c *lineCache) stop() {
	c.edgeMu.Lock()
	c.handler = nil
	c.edgeMu.Unlock()
}
