package app

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"dorbo/pkg/storage"
	"dorbo/pkg/wiegand"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// slot is a stored credential and its index.
type slot struct {
	Index    int    `json:"index"`
	Facility uint8  `json:"facility"`
	User     uint16 `json:"user"`
}

// credentialBody is the body of a write request. The fields are wider than the
// credential so out of range values are rejected instead of truncated.
type credentialBody struct {
	Facility *int `json:"facility"`
	User     *int `json:"user"`
}

// HandleListCredentials returns all slots of the store.
func (app *App) HandleListCredentials() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request list credentials")

		list, err := storage.List(ctx.Context(), app.store)
		if err != nil {
			return replyError(ctx, err)
		}

		slots := make([]slot, len(list))
		for i, c := range list {
			slots[i] = slot{Index: i, Facility: c.Facility, User: c.User}
		}
		return ctx.JSON(slots)
	}
}

// HandleReadCredential returns one slot.
func (app *App) HandleReadCredential() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		i, err := paramInt(ctx, "index")
		if err != nil {
			return replyError(ctx, err)
		}
		debug.InfoLog.Printf("web request read credential %d", i)

		c, err := app.store.Read(ctx.Context(), i)
		if err != nil {
			return replyError(ctx, err)
		}
		return ctx.JSON(slot{Index: i, Facility: c.Facility, User: c.User})
	}
}

// HandleWriteCredential stores the credential of the body in one slot.
func (app *App) HandleWriteCredential() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		i, err := paramInt(ctx, "index")
		if err != nil {
			return replyError(ctx, err)
		}

		var body credentialBody
		if err = ctx.BodyParser(&body); err != nil {
			return replyError(ctx, fmt.Errorf("%w: %v", errBadRequest, err))
		}
		c, err := body.credential()
		if err != nil {
			return replyError(ctx, err)
		}
		debug.InfoLog.Printf("web request write credential %d: %v", i, c)

		if err = app.store.Write(ctx.Context(), i, c); err != nil {
			return replyError(ctx, err)
		}
		return ctx.JSON(slot{Index: i, Facility: c.Facility, User: c.User})
	}
}

// HandleClearCredentials empties all slots.
func (app *App) HandleClearCredentials() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request clear credentials")

		if err := storage.Clear(ctx.Context(), app.store); err != nil {
			return replyError(ctx, err)
		}
		return ctx.SendStatus(http.StatusNoContent)
	}
}

// HandleInfo returns the capacity of the store per credential type.
func (app *App) HandleInfo() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request info")

		return ctx.JSON(fiber.Map{"w26": app.store.Capacity()})
	}
}

func (b credentialBody) credential() (wiegand.Credential, error) {
	if b.Facility == nil || b.User == nil {
		return wiegand.Credential{}, fmt.Errorf("%w: facility and user are required", errBadRequest)
	}
	if *b.Facility < 0 || *b.Facility > 0xff {
		return wiegand.Credential{}, fmt.Errorf("%w: facility %d not in [0, 255]", errBadRequest, *b.Facility)
	}
	if *b.User < 0 || *b.User > 0xffff {
		return wiegand.Credential{}, fmt.Errorf("%w: user %d not in [0, 65535]", errBadRequest, *b.User)
	}
	return wiegand.Credential{Facility: uint8(*b.Facility), User: uint16(*b.User)}, nil
}

// errBadRequest marks request parse errors.
var errBadRequest = errors.New("bad request")

func paramInt(ctx *fiber.Ctx, name string) (int, error) {
	v, err := strconv.Atoi(ctx.Params(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", errBadRequest, name, ctx.Params(name))
	}
	return v, nil
}
