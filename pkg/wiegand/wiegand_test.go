package wiegand

import (
	"errors"
	"math/rand"
	"testing"

	"dorbo/pkg/clock"
	"dorbo/pkg/port"
)

// levels is a LineLevels backed by a map; missing lines read idle high.
type levels map[int]port.Level

func (l levels) Level(line int) port.Level {
	if v, ok := l[line]; ok {
		return v
	}
	return port.High
}

var twoReaders = Config{
	Readers: []Reader{{Zero: 1, One: 0}, {Zero: 2, One: 3}},
	Timeout: 10,
}

func newDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := New(twoReaders, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

// pulse signals one bit on reader r at now: the data line goes low and back high.
func pulse(d *Decoder, in levels, r Reader, bit uint32, now clock.Tick) {
	line := r.Zero
	if bit != 0 {
		line = r.One
	}
	in[line] = port.Low
	d.Interrupt(now, in)
	in[line] = port.High
	d.Interrupt(now, in)
}

// feed sends the n low bits of frame MSB first, one bit per millisecond from start.
func feed(d *Decoder, in levels, r Reader, frame uint32, n int, start clock.Tick) clock.Tick {
	now := start
	for i := n - 1; i >= 0; i-- {
		pulse(d, in, r, (frame>>uint(i))&1, now)
		now++
	}
	return now
}

func TestEncodeDecode_AllCredentials(t *testing.T) {
	step := uint32(1)
	if testing.Short() {
		step = 997
	}
	for v := uint32(0); v < 1<<24; v += step {
		c := Credential{Facility: uint8(v >> 16), User: uint16(v)}
		got, ok := Decode(Encode(c))
		if !ok || got != c {
			t.Fatalf("round trip of %v failed: got %v ok=%v", c, got, ok)
		}
	}
}

func TestEncode_KnownFrame(t *testing.T) {
	// facility 103, user 26441
	frame := Encode(Credential{Facility: 103, User: 26441})
	if frame>>26 != 0 {
		t.Fatalf("frame %#x wider than 26 bits", frame)
	}
	if got := (frame >> 17) & 0xff; got != 103 {
		t.Fatalf("facility bits %d", got)
	}
	if got := (frame >> 1) & 0xffff; got != 26441 {
		t.Fatalf("user bits %d", got)
	}
}

func TestInterrupt_RoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	d := newDecoder(t)
	in := levels{}
	now := clock.Tick(0)

	for n := 0; n < 2000; n++ {
		c := Credential{Facility: uint8(rnd.Intn(256)), User: uint16(rnd.Intn(65536))}
		r := twoReaders.Readers[n%2]

		now = feed(d, in, r, Encode(c), FrameBits, now)
		got, err := d.Poll(n%2, now)
		if err != nil {
			t.Fatalf("credential %v: Poll: %v", c, err)
		}
		if got != c {
			t.Fatalf("expected %v, got %v", c, got)
		}
		now += 100
	}

	if s := d.Stats(); s.Frames != 2000 || s.ParityErrors != 0 || s.Timeouts != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestPoll_SingleBitErrorsAreRejected(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	d := newDecoder(t)
	in := levels{}
	r := twoReaders.Readers[0]
	now := clock.Tick(0)

	for n := 0; n < 50; n++ {
		c := Credential{Facility: uint8(rnd.Intn(256)), User: uint16(rnd.Intn(65536))}
		frame := Encode(c)

		for b := 0; b < FrameBits; b++ {
			now = feed(d, in, r, frame^(1<<uint(b)), FrameBits, now)
			if _, err := d.Poll(0, now); !errors.Is(err, ErrParity) {
				t.Fatalf("credential %v with bit %d flipped: expected ErrParity, got %v", c, b, err)
			}
			if p, _ := d.Pending(0); p != 0 {
				t.Fatalf("rejected frame not consumed, %d bits pending", p)
			}
			now += 100
		}
	}

	if s := d.Stats(); s.ParityErrors != 50*FrameBits || s.Frames != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestPoll_NotReady(t *testing.T) {
	d := newDecoder(t)
	in := levels{}

	if _, err := d.Poll(0, 0); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady on idle channel, got %v", err)
	}

	feed(d, in, twoReaders.Readers[0], Encode(Credential{Facility: 1, User: 2}), 25, 0)
	if _, err := d.Poll(0, 25); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady with 25 bits, got %v", err)
	}
	if p, _ := d.Pending(0); p != 25 {
		t.Fatalf("expected 25 pending bits, got %d", p)
	}
}

func TestPoll_InvalidChannel(t *testing.T) {
	d := newDecoder(t)
	for _, ch := range []int{-1, 2, 100} {
		if _, err := d.Poll(ch, 0); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("Poll(%d): expected ErrInvalidChannel, got %v", ch, err)
		}
		if _, err := d.Pending(ch); !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("Pending(%d): expected ErrInvalidChannel, got %v", ch, err)
		}
	}
}

func TestInterrupt_TimeoutDropsPartialFrame(t *testing.T) {
	for bits := 1; bits < FrameBits; bits++ {
		d := newDecoder(t)
		in := levels{}
		r := twoReaders.Readers[0]

		// stale bits of a different credential
		end := feed(d, in, r, Encode(Credential{Facility: 0xff, User: 0xffff}), bits, 1000)
		last := end - 1

		// silence exactly as long as the timeout keeps the bits
		d.Interrupt(last+10, in)
		if p, _ := d.Pending(0); p != bits {
			t.Fatalf("%d bits: dropped at the timeout boundary, pending %d", bits, p)
		}

		// one more millisecond of silence drops them on the next callback
		d.Interrupt(last+11, in)
		if p, _ := d.Pending(0); p != 0 {
			t.Fatalf("%d bits: expected reset after timeout, pending %d", bits, p)
		}

		want := Credential{Facility: 103, User: 26441}
		now := feed(d, in, r, Encode(want), FrameBits, last+20)
		got, err := d.Poll(0, now)
		if err != nil || got != want {
			t.Fatalf("%d bits: expected %v, got %v (%v)", bits, want, got, err)
		}
		if s := d.Stats(); s.Timeouts != 1 {
			t.Fatalf("%d bits: expected 1 timeout, got %d", bits, s.Timeouts)
		}
	}
}

func TestInterrupt_TimeoutDroppedBeforeNewEdge(t *testing.T) {
	d := newDecoder(t)
	in := levels{}
	r := twoReaders.Readers[1]

	feed(d, in, r, 0x3ff, 10, 0)
	// the first edge after the silence starts a new frame
	pulse(d, in, r, 1, 500)
	if p, _ := d.Pending(1); p != 1 {
		t.Fatalf("expected the new edge to start a fresh frame, pending %d", p)
	}
}

func TestInterrupt_TimeoutAcrossTickWrap(t *testing.T) {
	d, err := New(twoReaders, 0xfffffff0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := levels{}
	r := twoReaders.Readers[0]

	now := feed(d, in, r, 0x1f, 5, 0xfffffffa) // last bit at 0xfffffffe
	d.Interrupt(now+5, in)                     // 6 ms after the last bit, counter wrapped
	if p, _ := d.Pending(0); p != 5 {
		t.Fatalf("bits dropped before timeout across the wrap, pending %d", p)
	}
	d.Interrupt(now+20, in)
	if p, _ := d.Pending(0); p != 0 {
		t.Fatalf("bits kept after timeout across the wrap, pending %d", p)
	}
}

func TestInterrupt_OneBitPerCall(t *testing.T) {
	d := newDecoder(t)
	in := levels{}
	r := twoReaders.Readers[0]

	in[r.Zero] = port.Low
	in[r.One] = port.Low
	d.Interrupt(0, in)
	if p, _ := d.Pending(0); p != 1 {
		t.Fatalf("expected one bit for simultaneous edges, got %d", p)
	}

	// levels unchanged, no new edge
	d.Interrupt(1, in)
	if p, _ := d.Pending(0); p != 1 {
		t.Fatalf("expected no bit without an edge, got %d", p)
	}
}

func TestInterrupt_CompleteFrameIsHeld(t *testing.T) {
	d := newDecoder(t)
	in := levels{}
	r := twoReaders.Readers[0]
	want := Credential{Facility: 7, User: 4242}

	now := feed(d, in, r, Encode(want), FrameBits, 0)

	// trailing noise and a long silence do not touch a complete frame
	feed(d, in, r, 0x5, 3, now)
	d.Interrupt(now+60000, in)
	if p, _ := d.Pending(0); p != FrameBits {
		t.Fatalf("complete frame modified, pending %d", p)
	}

	got, err := d.Poll(0, now+60000)
	if err != nil || got != want {
		t.Fatalf("expected %v, got %v (%v)", want, got, err)
	}
	if _, err := d.Poll(0, now+60001); !errors.Is(err, ErrNotReady) {
		t.Fatalf("frame must be consumed once, got %v", err)
	}
}

func TestInterrupt_ChannelsAreIndependent(t *testing.T) {
	d := newDecoder(t)
	in := levels{}
	a, b := twoReaders.Readers[0], twoReaders.Readers[1]
	ca := Credential{Facility: 1, User: 100}
	cb := Credential{Facility: 2, User: 200}
	fa, fb := Encode(ca), Encode(cb)

	now := clock.Tick(0)
	for i := FrameBits - 1; i >= 0; i-- {
		pulse(d, in, a, (fa>>uint(i))&1, now)
		pulse(d, in, b, (fb>>uint(i))&1, now)
		now++
	}

	if got, err := d.Poll(1, now); err != nil || got != cb {
		t.Fatalf("reader 1: expected %v, got %v (%v)", cb, got, err)
	}
	if got, err := d.Poll(0, now); err != nil || got != ca {
		t.Fatalf("reader 0: expected %v, got %v (%v)", ca, got, err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no readers", Config{Timeout: 10}},
		{"zero timeout", Config{Readers: []Reader{{0, 1}}}},
		{"timeout too long", Config{Readers: []Reader{{0, 1}}, Timeout: 1 << 31}},
		{"shared line", Config{Readers: []Reader{{0, 1}, {1, 2}}, Timeout: 10}},
		{"same line twice", Config{Readers: []Reader{{4, 4}}, Timeout: 10}},
		{"negative line", Config{Readers: []Reader{{-1, 2}}, Timeout: 10}},
	}

	for _, tt := range tests {
		if _, err := New(tt.cfg, 0); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tt.name, err)
		}
	}
}

func TestCredential_String(t *testing.T) {
	c := Credential{Facility: 44, User: 12312}
	if got := c.String(); got != "w26<facility=44,user=12312>" {
		t.Fatalf("unexpected string %q", got)
	}
	if c.IsZero() || !(Credential{}).IsZero() {
		t.Fatalf("IsZero broken")
	}
}
