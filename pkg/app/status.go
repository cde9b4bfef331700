package app

import (
	"fmt"
	"strings"

	"dorbo/pkg/clock"
	"dorbo/pkg/wiegand"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// panelWidth is the number of columns of the status panel.
const panelWidth = 16

// heart glyphs of the panel, the filled heart while the heartbeat LED is on
const (
	heartOn  = '*'
	heartOff = 'o'
)

// Status is the state of the controller as of the last main loop iteration.
type Status struct {
	Clock     string         `json:"clock"`
	Era       uint32         `json:"era"`
	Ticks     uint32         `json:"ticks"`
	Heartbeat bool           `json:"heartbeat"`
	Doors     []DoorStatus   `json:"doors"`
	Readers   []ReaderStatus `json:"readers"`
	Decoder   wiegand.Stats  `json:"decoder"`
	Panel     []string       `json:"panel"`
}

// DoorStatus is the state of one door.
type DoorStatus struct {
	Door int  `json:"door"`
	Open bool `json:"open"`
	// Remaining is the time in ms the door stays open.
	Remaining uint32 `json:"remaining"`
}

// ReaderStatus is the state of one reader.
type ReaderStatus struct {
	Reader  int `json:"reader"`
	Door    int `json:"door"`
	Pending int `json:"pending"`
}

// publishStatus takes the snapshot of the main loop state for the web handlers.
func (app *App) publishStatus(now clock.ExtendedTime) {
	s := Status{
		Clock:     now.String(),
		Era:       now.Era,
		Ticks:     uint32(now.Offset),
		Heartbeat: app.heartbeat,
		Doors:     make([]DoorStatus, app.doors.Count()),
		Readers:   make([]ReaderStatus, app.decoder.Channels()),
		Decoder:   app.decoder.Stats(),
	}

	for i := range s.Doors {
		r, _ := app.doors.Remaining(i, now.Offset)
		s.Doors[i] = DoorStatus{Door: i, Open: r > 0, Remaining: uint32(r)}
	}

	for i := range s.Readers {
		p, _ := app.decoder.Pending(i)
		s.Readers[i] = ReaderStatus{Reader: i, Door: app.config.Readers[i].Door, Pending: p}
	}

	s.Panel = panel(s.Doors, s.Heartbeat)

	app.statusMu.Lock()
	app.status = s
	app.statusMu.Unlock()
}

// Status returns the last snapshot of the main loop.
func (app *App) Status() Status {
	app.statusMu.RLock()
	defer app.statusMu.RUnlock()
	return app.status
}

// panel renders the status panel: a row per door with its state and the
// remaining open time in seconds, the heartbeat in the last column of row 1.
func panel(doors []DoorStatus, heartbeat bool) []string {
	n := len(doors)
	if n < 2 {
		n = 2
	}

	rows := make([][]byte, n)
	for i := range rows {
		text := ""
		if i < len(doors) {
			if d := doors[i]; d.Open {
				text = fmt.Sprintf("%d:open %d", d.Door, d.Remaining/1000)
			} else {
				text = fmt.Sprintf("%d:closed", d.Door)
			}
		}
		if len(text) > panelWidth {
			text = text[:panelWidth]
		}
		rows[i] = []byte(text + strings.Repeat(" ", panelWidth-len(text)))
	}

	rows[1][panelWidth-1] = heartOff
	if heartbeat {
		rows[1][panelWidth-1] = heartOn
	}

	out := make([]string, n)
	for i, r := range rows {
		out[i] = string(r)
	}
	return out
}

// HandleStatus is the get controller status web handler.
func (app *App) HandleStatus() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.DebugLog.Print("web request status")

		return ctx.JSON(app.Status())
	}
}

// HandlePanel returns the rows of the status panel as text.
func (app *App) HandlePanel() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.DebugLog.Print("web request panel")

		return ctx.SendString(strings.Join(app.Status().Panel, "\n") + "\n")
	}
}
