package httpapi

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"symposium/internal/config"
	"symposium/internal/orchestrator"
	"symposium/internal/store"
)

// Server holds the collaborators every handler needs.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	store        *store.Store
	tunables     *config.TunablesStore
	logger       *slog.Logger
}

// NewServer wires a Server from its already-constructed collaborators.
func NewServer(o *orchestrator.Orchestrator, st *store.Store, tunables *config.TunablesStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orchestrator: o, store: st, tunables: tunables, logger: logger}
}

// NewApp builds the Fiber app: middleware, routes, and error handling,
// mirroring the teacher's cmd/server/main.go wiring (fiber.New with a
// custom ErrorHandler, recover.New(), cors.New()) but serving the
// Discussion Orchestrator's surface instead of the teacher's document
// store.
func (s *Server) NewApp(corsOrigins string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler(s.logger),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Get("/health", s.health)

	api := app.Group("/discussions")
	api.Post("/", s.create)
	api.Get("/", s.list)

	api.Post("/storage/backup", s.backup)
	api.Get("/storage/info", s.storageInfo)
	api.Post("/storage/cleanup", s.cleanup)

	api.Get("/performance/config", s.getPerformanceConfig)
	api.Put("/performance/config", s.putPerformanceConfig)
	api.Post("/performance/optimize", s.optimizePerformance)

	api.Get("/:id", s.get)
	api.Delete("/:id", s.delete)
	api.Post("/:id/start", s.start)
	api.Post("/:id/stop", s.stop)
	api.Get("/:id/messages", s.messages)
	api.Get("/:id/summary", s.summary)
	api.Get("/:id/export", s.export)
	api.Get("/:id/models", s.models)

	return app
}

// health aggregates store writability and provider reachability into a
// single operational snapshot; it is ambient ops tooling rather than a
// product feature, so it never fails the request itself.
func (s *Server) health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}

	if err := s.store.Writable(); err != nil {
		status["status"] = "degraded"
		status["storage"] = err.Error()
	} else {
		status["storage"] = "ok"
	}

	providers := fiber.Map{}
	for name, err := range s.orchestrator.Registry().Health(c.Context()) {
		if err != nil {
			status["status"] = "degraded"
			providers[name] = err.Error()
		} else {
			providers[name] = "ok"
		}
	}
	status["providers"] = providers

	return ok(c, fiber.StatusOK, status)
}
