package hal

import (
	"fmt"
	"sync"

	"github.com/warthog618/gpio"
	"github.com/womat/debug"
)

// gpiomemOutputs drives output pins through the memory mapped gpio registers.
// The backend has no inputs: its watcher runs every edge handler on a new
// goroutine and the level is read afterwards, so a 50 us Wiegand pulse is
// usually over and handlers of different lines run in any order.
type gpiomemOutputs struct {
	mu   sync.Mutex
	pins map[int]*gpio.Pin
}

func openGpiomemOutputs() (Outputs, error) {
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("gpiomem: %w", err)
	}
	debug.DebugLog.Print("gpiomem: registers mapped")
	return &gpiomemOutputs{pins: map[int]*gpio.Pin{}}, nil
}

func (g *gpiomemOutputs) Request(line int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.pins[line]; ok {
		return fmt.Errorf("%w: pin %d requested twice", ErrInvalidParam, line)
	}

	p := gpio.NewPin(line)
	p.Low()
	p.Output()
	g.pins[line] = p
	return nil
}

func (g *gpiomemOutputs) Write(line int, high bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pins[line]
	if !ok {
		return fmt.Errorf("%w: pin %d not requested", ErrInvalidParam, line)
	}
	p.Write(gpio.Level(high))
	return nil
}

func (g *gpiomemOutputs) Close() error {
	g.mu.Lock()
	for _, p := range g.pins {
		p.Low()
		p.Input()
	}
	g.pins = map[int]*gpio.Pin{}
	g.mu.Unlock()

	return gpio.Close()
}
