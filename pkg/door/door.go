// Package door drives door strikes and their indicators.
//
// A door is open while its hold-open window has time left. There is no close
// event: Tick compares every window with the current tick and drives the strike
// and indicator lines accordingly. The controller is used from the main loop
// only and is not safe for concurrent use.
package door

import (
	"errors"
	"fmt"

	"dorbo/pkg/clock"
	"dorbo/pkg/interval"
)

// NoLine marks an indicator that is not connected.
const NoLine = -1

var (
	// ErrInvalidDoor is returned for a door number outside the configured range.
	ErrInvalidDoor = errors.New("invalid door")
	// ErrInvalidConfig is returned by New for an unusable door configuration.
	ErrInvalidConfig = errors.New("invalid door configuration")
)

// Writer sets the level of an output line.
type Writer interface {
	Write(line int, high bool) error
}

// Indicator is an optional LED that mirrors the strike state.
type Indicator struct {
	// Line is the output line, NoLine if absent.
	Line int
	// ActiveHigh is true if the LED is lit by a high level.
	ActiveHigh bool
}

func (i Indicator) present() bool {
	return i.Line != NoLine
}

func (i Indicator) level(on bool) bool {
	return on == i.ActiveHigh
}

// Config defines one door.
type Config struct {
	// Strike is the output line of the strike, high opens the door.
	Strike int
	// Granted and Denied are the indicators of the door's reader.
	Granted Indicator
	Denied  Indicator
	// HoldOpen is the time the strike stays open after Open.
	HoldOpen clock.Tick
}

type door struct {
	Config
	holdOpen interval.Interval
	// open is the state last written to the lines.
	open    bool
	written bool
}

// Controller holds the state of all doors.
type Controller struct {
	doors  []door
	out    Writer
	notify func(id int, open bool)
}

// New validates the door configurations. All doors start closed.
func New(cfgs []Config, out Writer) (*Controller, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%w: no doors", ErrInvalidConfig)
	}

	c := &Controller{
		doors: make([]door, len(cfgs)),
		out:   out,
	}

	for i, cfg := range cfgs {
		if cfg.Strike < 0 {
			return nil, fmt.Errorf("%w: door %d: strike line %d", ErrInvalidConfig, i, cfg.Strike)
		}
		if cfg.HoldOpen == 0 {
			return nil, fmt.Errorf("%w: door %d: hold open time must be positive", ErrInvalidConfig, i)
		}
		for _, ind := range []Indicator{cfg.Granted, cfg.Denied} {
			if ind.Line < NoLine {
				return nil, fmt.Errorf("%w: door %d: indicator line %d", ErrInvalidConfig, i, ind.Line)
			}
		}
		c.doors[i].Config = cfg
	}

	return c, nil
}

// OnChange registers f to be called by Tick when a door opens or closes.
func (c *Controller) OnChange(f func(id int, open bool)) {
	c.notify = f
}

// Count returns the number of doors.
func (c *Controller) Count() int {
	return len(c.doors)
}

// Open (re)starts the hold-open window of door id at now.
// Opening an open door restarts its window, it does not extend it.
func (c *Controller) Open(id int, now clock.Tick) error {
	d, err := c.door(id)
	if err != nil {
		return err
	}

	d.holdOpen.Arm(now, d.HoldOpen)
	return nil
}

// Remaining returns the time the door id stays open.
func (c *Controller) Remaining(id int, now clock.Tick) (clock.Tick, error) {
	d, err := c.door(id)
	if err != nil {
		return 0, err
	}
	return d.holdOpen.Remaining(now), nil
}

// IsOpen reports whether door id is open at now.
func (c *Controller) IsOpen(id int, now clock.Tick) (bool, error) {
	r, err := c.Remaining(id, now)
	return r > 0, err
}

// Tick drives strike and indicator lines of every door from the state at now.
// Lines are written when the state changes and on the first call.
// An elapsed window is disarmed, so it can't reopen when the tick counter wraps.
func (c *Controller) Tick(now clock.Tick) error {
	var errs []error

	for i := range c.doors {
		d := &c.doors[i]

		open := d.holdOpen.Open(now)
		if !open {
			d.holdOpen.Disarm()
		}

		if d.written && open == d.open {
			continue
		}

		if err := d.drive(c.out, open); err != nil {
			errs = append(errs, fmt.Errorf("door %d: %w", i, err))
			continue
		}

		changed := d.written
		d.open = open
		d.written = true

		if changed && c.notify != nil {
			c.notify(i, open)
		}
	}

	return errors.Join(errs...)
}

func (d *door) drive(out Writer, open bool) error {
	if err := out.Write(d.Strike, open); err != nil {
		return err
	}

	for _, ind := range []Indicator{d.Granted, d.Denied} {
		if !ind.present() {
			continue
		}
		if err := out.Write(ind.Line, ind.level(open)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Controller) door(id int) (*door, error) {
	if id < 0 || id >= len(c.doors) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDoor, id)
	}
	return &c.doors[id], nil
}
