package app

import (
	"sort"

	"github.com/gofiber/fiber/v2"
)

// initDefaultRoutes initializes the applications routes.
// Each group of routes can be disabled in the webservices section of the configuration.
func (app *App) initDefaultRoutes() {
	api := app.web.Group("/")
	if app.config.Webserver.Webservices["version"] {
		api.Get("/version", app.HandleVersion())
	}
	if app.config.Webserver.Webservices["health"] {
		api.Get("/health", app.HandleHealth())
	}
	if app.config.Webserver.Webservices["credentials"] {
		api.Get("/credentials", app.HandleListCredentials())
		api.Delete("/credentials", app.HandleClearCredentials())
		api.Get("/credentials/:index", app.HandleReadCredential())
		api.Put("/credentials/:index", app.HandleWriteCredential())
		api.Get("/info", app.HandleInfo())
	}
	if app.config.Webserver.Webservices["doors"] {
		api.Post("/doors/:door/open", app.HandleOpenDoor())
	}
	if app.config.Webserver.Webservices["status"] {
		api.Get("/status", app.HandleStatus())
		api.Get("/panel", app.HandlePanel())
	}
	if app.config.Webserver.Webservices["emulate"] {
		api.Post("/emulate/readers/:reader", app.HandleEmulateReader())
	}
	if app.config.Webserver.Webservices["help"] {
		api.Get("/help", app.HandleHelp())
	}
}

// HandleHelp lists the registered routes as "METHOD path".
func (app *App) HandleHelp() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		seen := map[string]bool{}
		routes := []string{}

		for _, stack := range app.web.Stack() {
			for _, r := range stack {
				// fiber adds a HEAD route for every GET
				if r.Method == fiber.MethodHead {
					continue
				}
				if s := r.Method + " " + r.Path; !seen[s] {
					seen[s] = true
					routes = append(routes, s)
				}
			}
		}

		sort.Strings(routes)
		return ctx.JSON(routes)
	}
}
