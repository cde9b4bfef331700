package clock

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestExtendedNow_MonotonicAcrossWraps(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	src := NewFakeTicks(0xffff0000)
	c := New(src)

	prev := c.ExtendedNow()
	for i := 0; i < 20000; i++ {
		// steps up to 2^30 ms keep every wrap observable
		src.Add(Tick(rnd.Int63n(1 << 30)))
		if rnd.Intn(2) == 0 {
			c.Advance()
		}
		cur := c.ExtendedNow()
		if cur.Before(prev) {
			t.Fatalf("step %d: extended time went backwards: %v -> %v", i, prev, cur)
		}
		prev = cur
	}
	if prev.Era == 0 {
		t.Fatalf("expected at least one rollover, era is still 0")
	}
}

func TestAdvance_CountsEachWrapOnce(t *testing.T) {
	src := NewFakeTicks(0xfffffff0)
	c := New(src)

	src.Add(0x20) // wraps to 0x10
	c.Advance()
	c.Advance()
	if got := c.Era(); got != 1 {
		t.Fatalf("expected era 1, got %d", got)
	}

	src.Set(0xfffffffe)
	c.Advance()
	src.Set(1)
	c.Advance()
	if got := c.Era(); got != 2 {
		t.Fatalf("expected era 2, got %d", got)
	}

	e := c.ExtendedNow()
	if e.Era != 2 || e.Offset != 1 {
		t.Fatalf("unexpected extended time %v", e)
	}
	if e.Millis() != 2<<32|1 {
		t.Fatalf("unexpected millis %d", e.Millis())
	}
}

func TestExtendedNow_DetectsPendingRollover(t *testing.T) {
	src := NewFakeTicks(0xffffff00)
	c := New(src)
	before := c.ExtendedNow()

	// wrap without any Advance call in between
	src.Set(5)
	after := c.ExtendedNow()
	if !before.Before(after) {
		t.Fatalf("expected %v before %v", before, after)
	}
	if after.Era != 1 {
		t.Fatalf("expected era 1, got %d", after.Era)
	}
}

func TestRun_DetectsRollover(t *testing.T) {
	src := NewFakeTicks(0xfffffff0)
	c := New(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, time.Millisecond) }()

	src.Set(3)
	deadline := time.Now().Add(2 * time.Second)
	for c.Era() != 1 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("periodic rollover detection did not run")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_RejectsTooLongPeriod(t *testing.T) {
	c := New(NewFakeTicks(0))
	if err := c.Run(context.Background(), WrapPeriod); err == nil {
		t.Fatalf("expected error for a period equal to the wrap period")
	}
}

func TestCheckPollInterval(t *testing.T) {
	tests := []struct {
		d  time.Duration
		ok bool
	}{
		{time.Millisecond, true},
		{24 * time.Hour, true},
		{WrapPeriod - time.Millisecond, true},
		{WrapPeriod, false},
		{WrapPeriod + time.Hour, false},
		{0, false},
		{-time.Second, false},
	}

	for _, tt := range tests {
		err := CheckPollInterval(tt.d)
		if (err == nil) != tt.ok {
			t.Errorf("CheckPollInterval(%v): got err=%v, want ok=%v", tt.d, err, tt.ok)
		}
	}
}

func TestExtendedTime_Compare(t *testing.T) {
	a := ExtendedTime{Era: 1, Offset: 0}
	b := ExtendedTime{Era: 0, Offset: 0xffffffff}
	if a.Compare(b) != 1 || b.Compare(a) != -1 || a.Compare(a) != 0 {
		t.Fatalf("lexicographic compare broken")
	}
	if got := a.Duration(); got != WrapPeriod {
		t.Fatalf("expected %v, got %v", WrapPeriod, got)
	}
}

func TestSince_Wraps(t *testing.T) {
	if got := Since(0xfffffffa, 4); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}
