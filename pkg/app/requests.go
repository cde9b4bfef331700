package app

import (
	"errors"
	"time"

	"dorbo/pkg/clock"
)

// requestTimeout limits the wait for the main loop in web handlers.
var requestTimeout = 2 * time.Second

// errLoopBusy is returned if the main loop does not take a request in time.
var errLoopBusy = errors.New("main loop not responding")

// openRequest asks the main loop to open a door. The result is sent on reply.
type openRequest struct {
	door  int
	reply chan error
}

// requestOpen forwards an open command to the main loop and waits for the result.
func (app *App) requestOpen(door int) error {
	req := openRequest{door: door, reply: make(chan error, 1)}

	timeout := time.NewTimer(requestTimeout)
	defer timeout.Stop()

	select {
	case app.openRequests <- req:
	case <-timeout.C:
		return errLoopBusy
	}

	select {
	case err := <-req.reply:
		return err
	case <-timeout.C:
		return errLoopBusy
	}
}

// serveRequests handles the pending open requests without blocking.
func (app *App) serveRequests(now clock.Tick) {
	for {
		select {
		case req := <-app.openRequests:
			req.reply <- app.doors.Open(req.door, now)
		default:
			return
		}
	}
}
