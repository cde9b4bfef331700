package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"dorbo/pkg/clock"
	"dorbo/pkg/door"
	"dorbo/pkg/hal"
	"dorbo/pkg/wiegand"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is returned by Validate, wrapped with the offending field.
var ErrInvalidConfig = errors.New("invalid configuration")

// storage drivers
const (
	EEPROM = "eeprom"
	SQLite = "sqlite"
	Memory = "memory"
)

// Config defines the struct of global config and the struct of the configuration file.
type Config struct {
	Flag      FlagConfig      `yaml:"-"`
	Hal       hal.Config      `yaml:"hal"`
	Clock     ClockConfig     `yaml:"clock"`
	Loop      LoopConfig      `yaml:"loop"`
	Wiegand   WiegandConfig   `yaml:"wiegand"`
	Readers   []ReaderConfig  `yaml:"readers"`
	Doors     []DoorConfig    `yaml:"doors"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"debug"`
	Webserver WebserverConfig `yaml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	LogLevel   string
	ConfigFile string
}

// ClockConfig defines the rollover detection of the millisecond clock.
type ClockConfig struct {
	// Mode is periodic (rollover check by a timer) or lazy (on every loop iteration).
	Mode clock.Mode `yaml:"mode"`
	// RolloverCheckInt is the period of the rollover check in ms (periodic mode).
	RolloverCheckInt int64         `yaml:"rollovercheck"`
	RolloverCheck    time.Duration `yaml:"-"`
	// StartOffsetInt presets the tick counter in ms, e.g. 4294900000 wraps about a minute after start.
	StartOffsetInt uint32     `yaml:"startoffset"`
	StartOffset    clock.Tick `yaml:"-"`
}

// LoopConfig defines the main loop.
type LoopConfig struct {
	IntervalInt int64         `yaml:"interval"`
	Interval    time.Duration `yaml:"-"`
}

// WiegandConfig defines the decoder.
type WiegandConfig struct {
	// TimeoutInt is the inter-bit silence in ms after which a partial frame is dropped.
	TimeoutInt int64      `yaml:"timeout"`
	Timeout    clock.Tick `yaml:"-"`
}

// ReaderConfig defines the data lines of a reader and the door it opens.
type ReaderConfig struct {
	Zero int `yaml:"zero"`
	One  int `yaml:"one"`
	Door int `yaml:"door"`
}

// IndicatorConfig defines an indicator LED. A missing line disables the LED.
// The LED is lit by a high level unless activehigh is false.
type IndicatorConfig struct {
	Line       *int  `yaml:"line"`
	ActiveHigh *bool `yaml:"activehigh"`
}

// DoorConfig defines the strike and indicators of a door.
type DoorConfig struct {
	Strike      int             `yaml:"strike"`
	HoldOpenInt int64           `yaml:"holdopen"`
	HoldOpen    clock.Tick      `yaml:"-"`
	Granted     IndicatorConfig `yaml:"granted"`
	Denied      IndicatorConfig `yaml:"denied"`
}

// HeartbeatConfig defines the status LED. A missing line disables it.
type HeartbeatConfig struct {
	Line *int `yaml:"line"`
}

// StorageConfig defines the credential store.
type StorageConfig struct {
	// Driver is eeprom, sqlite or memory.
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection"`
	Topic      string `yaml:"topic"`
}

// LogConfig defines the struct of the debug configuration and configuration file
type LogConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

// NewConfig returns the defaults of the bench setup: two readers, two doors.
func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		Hal: hal.Config{
			Inputs:  hal.Gpiod,
			Outputs: hal.Gpiod,
			Chip:    hal.DefaultChip,
		},
		Clock: ClockConfig{
			Mode:             clock.Periodic,
			RolloverCheckInt: clock.DefaultRolloverPeriod.Milliseconds(),
		},
		Loop:    LoopConfig{IntervalInt: 1},
		Wiegand: WiegandConfig{TimeoutInt: 10},
		Readers: []ReaderConfig{
			{Zero: 17, One: 18, Door: 0},
			{Zero: 22, One: 23, Door: 1},
		},
		Doors: []DoorConfig{
			{Strike: 5, HoldOpenInt: 5000},
			{Strike: 6, HoldOpenInt: 5000},
		},
		Storage: StorageConfig{
			Driver:   EEPROM,
			Path:     "/opt/dorbo/data/eeprom.bin",
			Capacity: 100,
		},
		Log: LogConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version":     true,
				"health":      true,
				"credentials": true,
				"doors":       true,
				"status":      true,
				"emulate":     false,
				"help":        true,
			},
		},
		MQTT: MQTTConfig{
			Connection: "",
			Topic:      "dorbo",
		},
	}
}

// LoadConfig reads the configuration file, applies the flags and validates the result.
func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Log.FlagString = c.Flag.LogLevel
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("debug configuration: %w", err)
	}

	return c.Validate()
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	return c.Read(file)
}

// Read decodes a YAML configuration over the current values.
func (c *Config) Read(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Log.FlagString {
	case "trace", "full":
		c.Log.Flag = debug.Full
	case "debug":
		c.Log.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Log.Flag = debug.Standard
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.FlagString)
	}

	switch c.Log.FileString {
	case "stderr":
		c.Log.File = os.Stderr
	case "stdout":
		c.Log.File = os.Stdout
	default:
		if c.Log.File, err = os.OpenFile(c.Log.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}

// Validate checks the configuration once at startup and converts the
// millisecond values. All later code relies on the checked values.
func (c *Config) Validate() error {
	invalid := func(format string, a ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, a...))
	}

	switch c.Clock.Mode {
	case clock.Periodic:
		c.Clock.RolloverCheck = time.Duration(c.Clock.RolloverCheckInt) * time.Millisecond
		if err := clock.CheckPollInterval(c.Clock.RolloverCheck); err != nil {
			return invalid("clock.rollovercheck: %v", err)
		}
	case clock.Lazy:
	default:
		return invalid("clock.mode %q (periodic|lazy)", c.Clock.Mode)
	}
	c.Clock.StartOffset = clock.Tick(c.Clock.StartOffsetInt)

	c.Loop.Interval = time.Duration(c.Loop.IntervalInt) * time.Millisecond
	if err := clock.CheckPollInterval(c.Loop.Interval); err != nil {
		return invalid("loop.interval: %v", err)
	}

	if c.Wiegand.TimeoutInt <= 0 || c.Wiegand.TimeoutInt > int64(wiegand.MaxTimeout) {
		return invalid("wiegand.timeout %d ms not in (0, 2^31)", c.Wiegand.TimeoutInt)
	}
	c.Wiegand.Timeout = clock.Tick(c.Wiegand.TimeoutInt)

	if len(c.Doors) == 0 {
		return invalid("no doors")
	}
	for i := range c.Doors {
		d := &c.Doors[i]
		if d.HoldOpenInt <= 0 || d.HoldOpenInt >= 1<<32 {
			return invalid("doors[%d].holdopen %d ms not in (0, 2^32)", i, d.HoldOpenInt)
		}
		d.HoldOpen = clock.Tick(d.HoldOpenInt)
	}

	if len(c.Readers) == 0 {
		return invalid("no readers")
	}
	for i, r := range c.Readers {
		if r.Door < 0 || r.Door >= len(c.Doors) {
			return invalid("readers[%d].door %d out of range", i, r.Door)
		}
	}

	if err := c.checkLines(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case EEPROM, SQLite:
		if c.Storage.Path == "" {
			return invalid("storage.path is empty")
		}
	case Memory:
	default:
		return invalid("storage.driver %q (eeprom|sqlite|memory)", c.Storage.Driver)
	}
	if c.Storage.Capacity < 1 {
		return invalid("storage.capacity %d", c.Storage.Capacity)
	}

	return nil
}

// checkLines rejects negative and shared lines.
func (c *Config) checkLines() error {
	used := map[int]string{}
	use := func(line int, name string) error {
		if line < 0 {
			return fmt.Errorf("%w: %s: negative line %d", ErrInvalidConfig, name, line)
		}
		if other, ok := used[line]; ok {
			return fmt.Errorf("%w: %s: line %d already used by %s", ErrInvalidConfig, name, line, other)
		}
		used[line] = name
		return nil
	}

	for i, r := range c.Readers {
		if err := use(r.Zero, fmt.Sprintf("readers[%d].zero", i)); err != nil {
			return err
		}
		if err := use(r.One, fmt.Sprintf("readers[%d].one", i)); err != nil {
			return err
		}
	}

	for i, d := range c.Doors {
		if err := use(d.Strike, fmt.Sprintf("doors[%d].strike", i)); err != nil {
			return err
		}
		if d.Granted.Line != nil {
			if err := use(*d.Granted.Line, fmt.Sprintf("doors[%d].granted", i)); err != nil {
				return err
			}
		}
		if d.Denied.Line != nil {
			if err := use(*d.Denied.Line, fmt.Sprintf("doors[%d].denied", i)); err != nil {
				return err
			}
		}
	}

	if c.Heartbeat.Line != nil {
		if err := use(*c.Heartbeat.Line, "heartbeat.line"); err != nil {
			return err
		}
	}

	return nil
}

// WiegandConfig returns the decoder configuration.
func (c *Config) WiegandConfig() wiegand.Config {
	cfg := wiegand.Config{Timeout: c.Wiegand.Timeout}
	for _, r := range c.Readers {
		cfg.Readers = append(cfg.Readers, wiegand.Reader{Zero: r.Zero, One: r.One})
	}
	return cfg
}

// DoorConfigs returns the door controller configuration.
func (c *Config) DoorConfigs() []door.Config {
	cfgs := make([]door.Config, len(c.Doors))
	for i, d := range c.Doors {
		cfgs[i] = door.Config{
			Strike:   d.Strike,
			Granted:  d.Granted.indicator(),
			Denied:   d.Denied.indicator(),
			HoldOpen: d.HoldOpen,
		}
	}
	return cfgs
}

// OutputLines returns all output lines: strikes, indicators and the heartbeat.
func (c *Config) OutputLines() []int {
	var lines []int
	for _, d := range c.Doors {
		lines = append(lines, d.Strike)
		for _, l := range []*int{d.Granted.Line, d.Denied.Line} {
			if l != nil {
				lines = append(lines, *l)
			}
		}
	}
	if c.Heartbeat.Line != nil {
		lines = append(lines, *c.Heartbeat.Line)
	}
	return lines
}

// InputLines returns the data lines of all readers.
func (c *Config) InputLines() []int {
	var lines []int
	for _, r := range c.Readers {
		lines = append(lines, r.Zero, r.One)
	}
	return lines
}

func (i IndicatorConfig) indicator() door.Indicator {
	if i.Line == nil {
		return door.Indicator{Line: door.NoLine}
	}
	return door.Indicator{Line: *i.Line, ActiveHigh: i.ActiveHigh == nil || *i.ActiveHigh}
}
