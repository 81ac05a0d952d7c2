// Package api is the operations server: liveness, readiness and pipeline
// counters. It exposes no identity management.
package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

type Dependencies struct {
	DB       handler.Pinger
	Session  handler.SessionSource
	Recorder handler.RecorderSource
	Registry handler.WorkingSet
	Version  string
	// Events enables the /events WebSocket stream when set.
	Events *ws.Hub
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   Dependencies
}

func NewRouter(logger *slog.Logger, deps Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "facewatch ops",
		DisableStartupMessage: true,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))

	healthHandler := handler.NewHealthHandler(r.deps.DB, r.deps.Version, r.logger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	statsHandler := handler.NewStatsHandler(
		r.deps.Session,
		r.deps.Recorder,
		r.deps.Registry,
		handler.NewSystemSampler(r.logger),
	)
	r.app.Get("/stats", statsHandler.Stats)

	if r.deps.Events != nil {
		r.app.Get("/events", ws.UpgradeMiddleware(), ws.Handler(r.deps.Events))
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
