// Package wiegand is the decoder of the 26 bit Wiegand protocol.
//
// A Wiegand reader signals bits by pulling one of two idle-high data lines low:
// a pulse on the "zero" line is a 0 bit, a pulse on the "one" line is a 1 bit.
// The frame has no clock and no framing; the decoder counts bits until 26 are
// received and drops partial frames after a period of silence.
//
// Interrupt is called from the edge handler of the reader lines, Poll from the
// main loop. Both share the channel state under one mutex, which is held only
// for a few word sized reads and writes.
package wiegand

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"dorbo/pkg/clock"
	"dorbo/pkg/port"
)

// FrameBits is the length of a Wiegand 26 frame on the wire.
const FrameBits = 26

const (
	// the lines idle high, a bit pulls its line low
	idleLevel  = port.High
	signalEdge = port.FallingEdge

	// MaxTimeout is the longest accepted input timeout.
	MaxTimeout clock.Tick = 1<<31 - 1
)

var (
	// ErrNotReady is returned by Poll while no complete frame is available.
	// It is the steady state result between two credential reads.
	ErrNotReady = errors.New("no complete frame")
	// ErrParity is returned by Poll for a 26 bit frame that fails the parity check.
	// The frame has been discarded.
	ErrParity = errors.New("frame parity invalid")
	// ErrInvalidChannel is returned for a reader channel outside the configured range.
	ErrInvalidChannel = errors.New("invalid reader channel")
	// ErrInvalidConfig is returned by New for an unusable configuration.
	ErrInvalidConfig = errors.New("invalid wiegand configuration")
)

// Credential is the identity carried by a 26 bit frame.
type Credential struct {
	Facility uint8  `json:"facility"`
	User     uint16 `json:"user"`
}

// IsZero reports whether c is the empty credential (facility 0, user 0).
func (c Credential) IsZero() bool {
	return c.Facility == 0 && c.User == 0
}

func (c Credential) String() string {
	return fmt.Sprintf("w26<facility=%d,user=%d>", c.Facility, c.User)
}

// Reader defines the data lines of one physical reader.
type Reader struct {
	// Zero is the line that signals 0 bits (DATA0).
	Zero int
	// One is the line that signals 1 bits (DATA1).
	One int
}

// Config defines the readers handled by a Decoder.
type Config struct {
	Readers []Reader
	// Timeout is the inter-bit silence after which a partial frame is dropped.
	Timeout clock.Tick
}

// LineLevels returns the current level of a line.
type LineLevels interface {
	Level(line int) port.Level
}

// Stats counts decoder outcomes since start.
type Stats struct {
	Frames       uint64 `json:"frames"`
	ParityErrors uint64 `json:"parityErrors"`
	Timeouts     uint64 `json:"timeouts"`
}

// channel is the per reader decoding state.
type channel struct {
	lines [2]int
	// prev holds the level of the zero and one line as of the last interrupt.
	prev [2]port.Level

	// count is the number of bits received (0..FrameBits).
	count uint8
	// buffer holds the received bits, the last received bit is bit 0.
	buffer uint32
	// lastChange is the tick of the last received bit.
	lastChange clock.Tick
}

// Decoder decodes the frames of all configured readers.
type Decoder struct {
	timeout clock.Tick

	mu       sync.Mutex
	channels []channel
	stats    Stats
}

// New validates cfg and returns a Decoder with all channels idle.
func New(cfg Config, now clock.Tick) (*Decoder, error) {
	if len(cfg.Readers) == 0 {
		return nil, fmt.Errorf("%w: no readers", ErrInvalidConfig)
	}
	if cfg.Timeout == 0 || cfg.Timeout > MaxTimeout {
		return nil, fmt.Errorf("%w: timeout %d ms out of range (1..%d)", ErrInvalidConfig, cfg.Timeout, MaxTimeout)
	}

	seen := map[int]int{}
	d := &Decoder{
		timeout:  cfg.Timeout,
		channels: make([]channel, len(cfg.Readers)),
	}

	for i, r := range cfg.Readers {
		for _, l := range []int{r.Zero, r.One} {
			if l < 0 {
				return nil, fmt.Errorf("%w: reader %d: negative line %d", ErrInvalidConfig, i, l)
			}
			if other, ok := seen[l]; ok {
				return nil, fmt.Errorf("%w: reader %d: line %d already used by reader %d", ErrInvalidConfig, i, l, other)
			}
			seen[l] = i
		}

		d.channels[i] = channel{
			lines:      [2]int{r.Zero, r.One},
			prev:       [2]port.Level{idleLevel, idleLevel},
			lastChange: now,
		}
	}

	return d, nil
}

// Channels returns the number of reader channels.
func (d *Decoder) Channels() int {
	return len(d.channels)
}

// Interrupt samples the data lines of every reader and shifts in a bit for a
// signaling edge. It is the edge handler of the reader lines and must not block.
//
// A partial frame whose last bit is older than the timeout is dropped first,
// so line noise cannot spoil the next read. A complete frame stays untouched
// until it is consumed by Poll.
func (d *Decoder) Interrupt(now clock.Tick, in LineLevels) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.channels {
		c := &d.channels[i]

		if c.count > 0 && c.count < FrameBits && clock.Since(c.lastChange, now) > d.timeout {
			c.reset(now)
			d.stats.Timeouts++
		}

		zero := in.Level(c.lines[0])
		one := in.Level(c.lines[1])

		// only one bit per call, a glitch on both lines must not count twice
		if c.count < FrameBits {
			switch {
			case c.signals(0, zero):
				c.shift(0, now)
			case c.signals(1, one):
				c.shift(1, now)
			}
		}

		c.prev[0] = zero
		c.prev[1] = one
	}
}

// Poll returns the credential of a complete frame of reader ch.
// It returns ErrNotReady while the frame is incomplete and ErrParity for a
// complete frame that fails the parity check. A complete frame is consumed
// in both cases and the channel starts over.
func (d *Decoder) Poll(ch int, now clock.Tick) (Credential, error) {
	if ch < 0 || ch >= len(d.channels) {
		return Credential{}, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}

	d.mu.Lock()
	count, buffer := d.channels[ch].count, d.channels[ch].buffer
	d.mu.Unlock()

	if count < FrameBits {
		return Credential{}, ErrNotReady
	}

	cred, ok := Decode(buffer)

	d.mu.Lock()
	d.channels[ch].reset(now)
	if ok {
		d.stats.Frames++
	} else {
		d.stats.ParityErrors++
	}
	d.mu.Unlock()

	if !ok {
		return Credential{}, ErrParity
	}
	return cred, nil
}

// Pending returns the number of bits received so far by reader ch.
func (d *Decoder) Pending(ch int) (int, error) {
	if ch < 0 || ch >= len(d.channels) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.channels[ch].count), nil
}

// Stats returns a copy of the decoder counters.
func (d *Decoder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// signals reports whether line n has a signaling edge since the last interrupt.
func (c *channel) signals(n int, level port.Level) bool {
	return c.prev[n].Edge(level) == signalEdge
}

func (c *channel) shift(bit uint32, now clock.Tick) {
	c.buffer = c.buffer<<1 | bit
	c.count++
	c.lastChange = now
}

func (c *channel) reset(now clock.Tick) {
	c.count = 0
	c.buffer = 0
	c.lastChange = now
}

// Decode checks the parity of a 26 bit frame and extracts the credential.
// The low 13 bits (with the trailing parity bit) must have odd parity,
// the high 13 bits (with the leading parity bit) even parity.
func Decode(frame uint32) (Credential, bool) {
	if bits.OnesCount32(frame&0x1fff)%2 != 1 || bits.OnesCount32((frame>>13)&0x1fff)%2 != 0 {
		return Credential{}, false
	}

	frame >>= 1
	user := uint16(frame & 0xffff)
	frame >>= 16
	return Credential{Facility: uint8(frame & 0xff), User: user}, true
}

// Encode builds the 26 bit frame of c including both parity bits.
func Encode(c Credential) uint32 {
	frame := uint32(c.Facility)<<17 | uint32(c.User)<<1

	if bits.OnesCount32((frame>>13)&0xfff)%2 == 1 {
		frame |= 1 << 25
	}
	if bits.OnesCount32(frame&0x1fff)%2 == 0 {
		frame |= 1
	}
	return frame
}
