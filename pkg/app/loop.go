package app

import (
	"context"
	"errors"
	"time"

	"dorbo/pkg/clock"
	"dorbo/pkg/mqtt"
	"dorbo/pkg/storage"
	"dorbo/pkg/wiegand"

	"github.com/womat/debug"
)

// heartbeat period of the status LED: on for heartbeatOn of every 1024 ms
const (
	heartbeatMask = 0x3ff
	heartbeatOn   = 256
)

// run is the main loop. It owns the door controller and serves the open requests.
func (app *App) run(ctx context.Context) {
	t := time.NewTicker(app.config.Loop.Interval)
	defer t.Stop()

	debug.InfoLog.Printf("main loop started, interval %v, clock mode %s", app.config.Loop.Interval, app.config.Clock.Mode)

	for {
		select {
		case <-ctx.Done():
			debug.InfoLog.Print("main loop stopped")
			return
		case <-t.C:
			app.step()
		}
	}
}

// step is one iteration of the main loop.
func (app *App) step() {
	// in lazy mode this is the rollover detection
	now := app.clock.ExtendedNow()
	tick := now.Offset

	app.serveRequests(tick)

	for r := 0; r < app.decoder.Channels(); r++ {
		c, err := app.decoder.Poll(r, tick)
		switch {
		case err == nil:
			app.scan(r, c, tick)
		case errors.Is(err, wiegand.ErrNotReady):
		case errors.Is(err, wiegand.ErrParity):
			debug.DebugLog.Printf("reader %d: frame discarded: %v", r, err)
		default:
			debug.ErrorLog.Printf("reader %d: %v", r, err)
		}
	}

	if err := app.doors.Tick(tick); err != nil {
		debug.ErrorLog.Printf("drive doors: %v", err)
	}

	app.driveHeartbeat(now)
	app.publishStatus(now)
}

// scan looks up a credential read by reader r and opens the reader's door if it is stored.
func (app *App) scan(r int, c wiegand.Credential, tick clock.Tick) {
	d := app.config.Readers[r].Door
	evt := mqtt.ScanEvent{
		Time:     time.Now().Format(time.RFC3339),
		Reader:   r,
		Facility: c.Facility,
		User:     c.User,
		Slot:     -1,
		Door:     d,
	}

	slot, ok, err := storage.Find(app.ctx, app.store, c)
	switch {
	case err != nil:
		debug.ErrorLog.Printf("reader %d: lookup %v: %v", r, c, err)
	case !ok:
		debug.InfoLog.Printf("reader %d: %v denied", r, c)
	default:
		if err = app.doors.Open(d, tick); err != nil {
			debug.ErrorLog.Printf("reader %d: open door %d: %v", r, d, err)
			break
		}
		evt.Granted = true
		evt.Slot = slot
		debug.InfoLog.Printf("reader %d: %v granted (slot %d), door %d open", r, c, slot, d)
	}

	app.mqtt.PublishScan(evt)
}

func (app *App) doorChanged(id int, open bool) {
	if open {
		debug.InfoLog.Printf("door %d opened", id)
	} else {
		debug.InfoLog.Printf("door %d closed", id)
	}

	app.mqtt.PublishDoor(mqtt.DoorEvent{Time: time.Now().Format(time.RFC3339), Door: id, Open: open})
}

// interrupt is the edge handler of the reader lines.
func (app *App) interrupt() {
	app.decoder.Interrupt(app.clock.Now(), app.inputs)
}

// driveHeartbeat blinks the status LED from the extended clock.
func (app *App) driveHeartbeat(now clock.ExtendedTime) {
	on := now.Offset&heartbeatMask < heartbeatOn
	line := app.config.Heartbeat.Line

	if line != nil && (!app.heartbeatWritten || on != app.heartbeat) {
		if err := app.outputs.Write(*line, on); err != nil {
			debug.ErrorLog.Printf("heartbeat: %v", err)
			return
		}
		app.heartbeatWritten = true
	}
	app.heartbeat = on
}
