package door

import (
	"errors"
	"testing"

	"dorbo/pkg/clock"
)

// lines records the last level and the number of writes per line.
type lines struct {
	level  map[int]bool
	writes map[int]int
	err    error
}

func newLines() *lines {
	return &lines{level: map[int]bool{}, writes: map[int]int{}}
}

func (l *lines) Write(line int, high bool) error {
	if l.err != nil {
		return l.err
	}
	l.level[line] = high
	l.writes[line]++
	return nil
}

func oneDoor(hold clock.Tick) []Config {
	return []Config{{
		Strike:   10,
		Granted:  Indicator{Line: 11, ActiveHigh: true},
		Denied:   Indicator{Line: 12, ActiveHigh: false},
		HoldOpen: hold,
	}}
}

func newController(t *testing.T, cfgs []Config, out Writer) *Controller {
	t.Helper()
	c, err := New(cfgs, out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestTick_FirstCallDrivesClosed(t *testing.T) {
	out := newLines()
	c := newController(t, oneDoor(5000), out)

	if err := c.Tick(0); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if out.level[10] {
		t.Fatalf("strike high at start")
	}
	if out.level[11] {
		t.Fatalf("active high indicator lit at start")
	}
	if !out.level[12] {
		t.Fatalf("active low indicator lit at start")
	}
}

func TestOpen_HoldOpenWindow(t *testing.T) {
	out := newLines()
	c := newController(t, oneDoor(5000), out)
	c.Tick(0)

	if err := c.Open(0, 0); err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, tt := range []struct {
		now  clock.Tick
		open bool
	}{{0, true}, {1, true}, {4999, true}, {5000, false}, {5001, false}} {
		if err := c.Tick(tt.now); err != nil {
			t.Fatalf("Tick(%d): %v", tt.now, err)
		}
		if out.level[10] != tt.open {
			t.Errorf("strike at %d: got %v, want %v", tt.now, out.level[10], tt.open)
		}
		if out.level[11] != tt.open || out.level[12] == tt.open {
			t.Errorf("indicators at %d do not mirror strike %v", tt.now, tt.open)
		}
		if open, _ := c.IsOpen(0, tt.now); open != tt.open {
			t.Errorf("IsOpen(%d) = %v, want %v", tt.now, open, tt.open)
		}
	}
}

func TestOpen_RestartsWindow(t *testing.T) {
	out := newLines()
	c := newController(t, oneDoor(5000), out)

	c.Open(0, 0)
	c.Open(0, 3000)

	if r, _ := c.Remaining(0, 3000); r != 5000 {
		t.Fatalf("expected window restarted at 3000, remaining %d", r)
	}

	c.Tick(7999)
	if !out.level[10] {
		t.Fatalf("door closed before the restarted window elapsed")
	}
	c.Tick(8000)
	if out.level[10] {
		t.Fatalf("door open after the restarted window elapsed")
	}
}

func TestTick_WritesOnChangeOnly(t *testing.T) {
	out := newLines()
	c := newController(t, oneDoor(100), out)

	for now := clock.Tick(0); now < 50; now++ {
		c.Tick(now)
	}
	if out.writes[10] != 1 {
		t.Fatalf("expected one write while idle, got %d", out.writes[10])
	}

	c.Open(0, 50)
	for now := clock.Tick(50); now < 300; now++ {
		c.Tick(now)
	}
	if out.writes[10] != 3 {
		t.Fatalf("expected writes for start, open and close, got %d", out.writes[10])
	}
}

func TestTick_ElapsedWindowDoesNotReopenAfterWrap(t *testing.T) {
	out := newLines()
	c := newController(t, oneDoor(5000), out)

	c.Open(0, 1000)
	c.Tick(3000)
	c.Tick(7000)

	// the tick counter wrapped and is back inside the old window
	c.Tick(2000)
	if out.level[10] {
		t.Fatalf("elapsed window reopened after the counter wrapped")
	}
}

func TestTick_AbsentIndicators(t *testing.T) {
	out := newLines()
	c := newController(t, []Config{{
		Strike:   3,
		Granted:  Indicator{Line: NoLine},
		Denied:   Indicator{Line: NoLine},
		HoldOpen: 10,
	}}, out)

	c.Open(0, 0)
	c.Tick(0)

	if len(out.writes) != 1 || out.writes[3] != 1 {
		t.Fatalf("expected only the strike to be written, got %v", out.writes)
	}
}

func TestOnChange(t *testing.T) {
	out := newLines()
	c := newController(t, oneDoor(10), out)

	var events []bool
	c.OnChange(func(id int, open bool) {
		if id != 0 {
			t.Errorf("unexpected door %d", id)
		}
		events = append(events, open)
	})

	c.Tick(0)
	c.Open(0, 1)
	for now := clock.Tick(1); now < 20; now++ {
		c.Tick(now)
	}

	if len(events) != 2 || !events[0] || events[1] {
		t.Fatalf("expected open and close events, got %v", events)
	}
}

func TestTick_WriteError(t *testing.T) {
	out := newLines()
	out.err = errors.New("line busy")
	c := newController(t, oneDoor(10), out)

	if err := c.Tick(0); err == nil {
		t.Fatalf("expected error from Tick")
	}

	// the state is written again on the next tick
	out.err = nil
	if err := c.Tick(1); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if out.writes[10] != 1 {
		t.Fatalf("expected the strike to be written after the error, got %d", out.writes[10])
	}
}

func TestInvalidDoor(t *testing.T) {
	c := newController(t, oneDoor(10), newLines())

	for _, id := range []int{-1, 1, 5} {
		if err := c.Open(id, 0); !errors.Is(err, ErrInvalidDoor) {
			t.Errorf("Open(%d): expected ErrInvalidDoor, got %v", id, err)
		}
		if _, err := c.IsOpen(id, 0); !errors.Is(err, ErrInvalidDoor) {
			t.Errorf("IsOpen(%d): expected ErrInvalidDoor, got %v", id, err)
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfgs []Config
	}{
		{"no doors", nil},
		{"negative strike", []Config{{Strike: -1, HoldOpen: 10, Granted: Indicator{Line: NoLine}, Denied: Indicator{Line: NoLine}}}},
		{"zero hold open", []Config{{Strike: 1, Granted: Indicator{Line: NoLine}, Denied: Indicator{Line: NoLine}}}},
		{"bad indicator", []Config{{Strike: 1, HoldOpen: 10, Granted: Indicator{Line: -2}, Denied: Indicator{Line: NoLine}}}},
	}

	for _, tt := range tests {
		if _, err := New(tt.cfgs, newLines()); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}
