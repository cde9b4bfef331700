package app

import (
	"fmt"

	"dorbo/pkg/hal"
	"dorbo/pkg/wiegand"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// HandleEmulateReader plays the frame of a credential onto the data lines of a
// reader. It works with the emulated inputs only.
func (app *App) HandleEmulateReader() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		r, err := paramInt(ctx, "reader")
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
		debug.InfoLog.Printf("web request emulate reader %d: %v", r, c)

		if err = app.emulate(r, c); err != nil {
			return replyError(ctx, err)
		}
		return ctx.JSON(fiber.Map{"reader": r, "frame": fmt.Sprintf("%07x", wiegand.Encode(c))})
	}
}

// emulate pulses the 26 bits of c, most significant bit first, on reader r.
func (app *App) emulate(r int, c wiegand.Credential) error {
	emu, ok := app.inputs.(*hal.Emu)
	if !ok {
		return fmt.Errorf("%w: inputs are not emulated", errNotFound)
	}
	if r < 0 || r >= len(app.config.Readers) {
		return fmt.Errorf("%w: %d", wiegand.ErrInvalidChannel, r)
	}

	reader := app.config.Readers[r]
	frame := wiegand.Encode(c)
	for i := wiegand.FrameBits - 1; i >= 0; i-- {
		if frame>>uint(i)&1 == 1 {
			emu.Pulse(reader.One)
		} else {
			emu.Pulse(reader.Zero)
		}
	}
	return nil
}
