package hal

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpioOutputs drives output pins with go-rpio.
// rpio has no edge detection usable from user space, so it serves outputs only.
type rpioOutputs struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

func openRpioOutputs() (Outputs, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	return &rpioOutputs{pins: map[int]rpio.Pin{}}, nil
}

func (r *rpioOutputs) Request(line int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if line < 0 {
		return fmt.Errorf("%w: pin %d", ErrInvalidParam, line)
	}
	if _, ok := r.pins[line]; ok {
		return fmt.Errorf("%w: pin %d requested twice", ErrInvalidParam, line)
	}

	p := rpio.Pin(line)
	p.Output()
	p.Low()
	r.pins[line] = p
	return nil
}

func (r *rpioOutputs) Write(line int, high bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[line]
	if !ok {
		return fmt.Errorf("%w: pin %d not requested", ErrInvalidParam, line)
	}
	if high {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *rpioOutputs) Close() error {
	r.mu.Lock()
	for _, p := range r.pins {
		p.Low()
	}
	r.pins = map[int]rpio.Pin{}
	r.mu.Unlock()

	return rpio.Close()
}
