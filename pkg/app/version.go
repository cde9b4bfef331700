package app

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// VERSION holds the version information, the date after the + is the build month.
// VERSION keeps the syntax of semantic versioning as described in https://semver.org/
const (
	VERSION = "1.0.2+20261001"
	MODULE  = "dorbo"
)

// HandleVersion is the get application version web handler.
func (app *App) HandleVersion() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request version")

		return ctx.JSON(fiber.Map{
			"version":     VERSION,
			"description": MODULE,
			"about":       Version(),
			"inputs":      app.config.Hal.Inputs,
			"outputs":     app.config.Hal.Outputs,
			"storage":     app.config.Storage.Driver,
		})
	}
}

// Version is the get application version as string.
func Version() string {
	return strings.TrimSpace(MODULE + " V" + strings.Split(VERSION, "+")[0])
}
