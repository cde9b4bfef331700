package hal

import (
	"fmt"
	"sync"

	"dorbo/pkg/port"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
)

// gpiodInputs watches reader lines of a gpio character device.
type gpiodInputs struct {
	*lineCache
	chip  *gpiod.Chip
	lines []*gpiod.Line
}

func openGpiodInputs(name string) (Inputs, error) {
	c, err := gpiod.NewChip(name, gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, err
	}
	return &gpiodInputs{lineCache: newLineCache(), chip: c}, nil
}

// Watch requests lines as inputs with pull-up and both edge detection.
// The kernel reports the edge type, so the cached level follows the event and
// the line value is never read back in the handler.
func (g *gpiodInputs) Watch(lines []int, handler func()) error {
	if err := g.watch(lines, handler); err != nil {
		return err
	}

	events := func(evt gpiod.LineEvent) {
		switch evt.Type {
		case gpiod.LineEventFallingEdge:
			g.edge(evt.Offset, port.Low)
		case gpiod.LineEventRisingEdge:
			g.edge(evt.Offset, port.High)
		default:
			debug.ErrorLog.Printf("gpiod: line %d: unknown event type %v", evt.Offset, evt.Type)
		}
	}

	for _, offset := range lines {
		l, err := g.chip.RequestLine(offset, gpiod.WithEventHandler(events),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
		if err != nil {
			return fmt.Errorf("gpiod: request line %d: %w", offset, err)
		}
		g.lines = append(g.lines, l)

		v, err := l.Value()
		if err != nil {
			return fmt.Errorf("gpiod: read line %d: %w", offset, err)
		}
		g.set(offset, port.Level(v))
		debug.DebugLog.Printf("gpiod: watching line %d, level %d", offset, v)
	}

	return nil
}

// Close releases the lines and the chip.
// It waits for a running handler and must not be called from the handler.
func (g *gpiodInputs) Close() error {
	for _, l := range g.lines {
		_ = l.Close()
	}
	g.stop()
	return g.chip.Close()
}

// gpiodOutputs drives output lines of a gpio character device.
type gpiodOutputs struct {
	chip *gpiod.Chip

	mu    sync.Mutex
	lines map[int]*gpiod.Line
}

func openGpiodOutputs(name string) (Outputs, error) {
	c, err := gpiod.NewChip(name, gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, err
	}
	return &gpiodOutputs{chip: c, lines: map[int]*gpiod.Line{}}, nil
}

func (g *gpiodOutputs) Request(line int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.lines[line]; ok {
		return fmt.Errorf("%w: line %d requested twice", ErrInvalidParam, line)
	}

	l, err := g.chip.RequestLine(line, gpiod.AsOutput(0))
	if err != nil {
		return fmt.Errorf("gpiod: request line %d: %w", line, err)
	}
	g.lines[line] = l
	return nil
}

func (g *gpiodOutputs) Write(line int, high bool) error {
	g.mu.Lock()
	l, ok := g.lines[line]
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: line %d not requested", ErrInvalidParam, line)
	}
	return l.SetValue(int(port.FromBool(high)))
}

func (g *gpiodOutputs) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, l := range g.lines {
		_ = l.SetValue(0)
		_ = l.Close()
	}
	g.lines = map[int]*gpiod.Line{}
	return g.chip.Close()
}
