package app

import (
	"errors"
	"net/http"

	"dorbo/pkg/door"
	"dorbo/pkg/storage"
	"dorbo/pkg/wiegand"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// errNotFound is returned for resources that are not configured.
var errNotFound = errors.New("not found")

// HandleOpenDoor opens a door like a granted credential does.
func (app *App) HandleOpenDoor() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		d, err := paramInt(ctx, "door")
		if err != nil {
			return replyError(ctx, err)
		}
		debug.InfoLog.Printf("web request open door %d", d)

		if err = app.requestOpen(d); err != nil {
			return replyError(ctx, err)
		}
		return ctx.JSON(fiber.Map{"door": d, "open": true})
	}
}

// replyError sends err with the status code of its kind.
func replyError(ctx *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrIndexOutOfRange),
		errors.Is(err, door.ErrInvalidDoor),
		errors.Is(err, wiegand.ErrInvalidChannel),
		errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errLoopBusy):
		status = http.StatusServiceUnavailable
	default:
		debug.ErrorLog.Printf("web request %s %s: %v", ctx.Method(), ctx.Path(), err)
	}

	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
