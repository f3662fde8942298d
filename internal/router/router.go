package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/halqat/internal/config"
	"github.com/noah-isme/halqat/internal/handler"
	"github.com/noah-isme/halqat/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler   *handler.AuthHandler
	ReportHandler *handler.ReportHandler
	Pages         []*handler.PageHandler
	Health        fiber.Handler
	Session       fiber.Handler
	CSRF          fiber.Handler
	LoginLimiter  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	noop := func(c *fiber.Ctx) error { return c.Next() }

	// Probes stay outside sessions and CSRF
	if deps.Health != nil {
		app.Get("/health", deps.Health)
	}
	app.Get("/metrics", observability.MetricsHandler())

	csrfMiddleware := deps.CSRF
	if csrfMiddleware == nil {
		csrfMiddleware = noop
	}
	web := app.Group("", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	}, csrfMiddleware)

	// Sign in
	if deps.AuthHandler != nil {
		limiter := deps.LoginLimiter
		if limiter == nil {
			limiter = noop
		}
		deps.AuthHandler.Register(web, limiter)
	}

	// Everything below requires a session
	sessionMiddleware := deps.Session
	if sessionMiddleware == nil {
		sessionMiddleware = noop
	}
	protected := web.Group("", sessionMiddleware)
	protected.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/halaqat", fiber.StatusSeeOther)
	})

	for _, page := range deps.Pages {
		page.Register(protected)
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(protected)
	}
}
