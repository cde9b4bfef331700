package app

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"dorbo/pkg/app/config"
	"dorbo/pkg/clock"
	"dorbo/pkg/door"
	"dorbo/pkg/hal"
	"dorbo/pkg/mqtt"
	"dorbo/pkg/storage"
	"dorbo/pkg/storage/eeprom"
	"dorbo/pkg/storage/memory"
	"dorbo/pkg/storage/sqlite"
	"dorbo/pkg/wiegand"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// ticks is the millisecond counter, clock extends it with the rollover era
	ticks clock.TickSource
	clock *clock.Clock

	inputs  hal.Inputs
	outputs hal.Outputs

	decoder *wiegand.Decoder
	doors   *door.Controller
	store   storage.Store

	// openRequests forwards door open commands to the main loop
	openRequests chan openRequest

	// heartbeat is the state of the status LED as last written
	heartbeat        bool
	heartbeatWritten bool

	// statusMu guards status, the snapshot published by the main loop
	statusMu sync.RWMutex
	status   Status

	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:   fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:  mqtt.New(config.MQTT.Topic),
		ticks: clock.NewSystemTicks(config.Clock.StartOffset),

		openRequests: make(chan openRequest),
		started:      time.Now(),
	}, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	if err := app.mqtt.Connect(app.config.MQTT.Connection); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()

	if app.config.Clock.Mode == clock.Periodic {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.clock.Run(app.ctx, app.config.Clock.RolloverCheck); err != nil && err != context.Canceled {
				debug.ErrorLog.Printf("rollover detection stopped: %v", err)
			}
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.run(app.ctx)
	}()

	return nil
}

// init initializes the application.
func (app *App) init() (err error) {
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.clock = clock.New(app.ticks)
	now := app.clock.Now()

	if app.store, err = openStore(app.ctx, app.config.Storage); err != nil {
		debug.ErrorLog.Printf("can't open storage: %v", err)
		return err
	}

	if app.decoder, err = wiegand.New(app.config.WiegandConfig(), now); err != nil {
		debug.ErrorLog.Printf("can't create wiegand decoder: %v", err)
		return err
	}

	if app.inputs, err = hal.OpenInputs(app.config.Hal); err != nil {
		debug.ErrorLog.Printf("can't open gpio inputs: %v", err)
		return err
	}

	if app.outputs, err = hal.OpenOutputs(app.config.Hal, app.inputs); err != nil {
		debug.ErrorLog.Printf("can't open gpio outputs: %v", err)
		return err
	}

	for _, l := range app.config.OutputLines() {
		if err = app.outputs.Request(l); err != nil {
			debug.ErrorLog.Printf("can't request output line %d: %v", l, err)
			return err
		}
	}

	if app.doors, err = door.New(app.config.DoorConfigs(), app.outputs); err != nil {
		debug.ErrorLog.Printf("can't create door controller: %v", err)
		return err
	}
	app.doors.OnChange(app.doorChanged)

	// drive all doors closed before the first edge can open one
	if err = app.doors.Tick(now); err != nil {
		debug.ErrorLog.Printf("can't initialize doors: %v", err)
		return err
	}

	if err = app.inputs.Watch(app.config.InputLines(), app.interrupt); err != nil {
		debug.ErrorLog.Printf("can't watch reader lines: %v", err)
		return err
	}

	// the handlers use the store, decoder and doors set up above
	app.initDefaultRoutes()

	return nil
}

func openStore(ctx context.Context, c config.StorageConfig) (storage.Store, error) {
	switch c.Driver {
	case config.EEPROM:
		s, err := eeprom.Open(c.Path, c.Capacity)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SQLite:
		s, err := sqlite.Open(ctx, c.Path, c.Capacity)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.Memory:
		return memory.New(c.Capacity), nil
	default:
		return nil, fmt.Errorf("%w: storage driver %q", config.ErrInvalidConfig, c.Driver)
	}
}

// Close stops the main loop and releases the hardware.
// The outputs are closed last, which drives all strikes closed.
func (app *App) Close() error {
	if app.cancel != nil {
		app.cancel()
		app.wg.Wait()
	}

	_ = app.web.Shutdown()
	_ = app.mqtt.Disconnect()

	if app.inputs != nil {
		_ = app.inputs.Close()
	}
	if app.store != nil {
		_ = app.store.Close()
	}
	if app.outputs != nil {
		_ = app.outputs.Close()
	}
	return nil
}
