package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alter5/project-zurich/internal/app/service"
	inthttp "github.com/alter5/project-zurich/internal/http/handler"
	"github.com/alter5/project-zurich/internal/http/middleware"
)

// Dependencies bundles everything the HTTP server needs. Redis is optional:
// when nil, the ingest routes run without rate limiting.
type Dependencies struct {
	Logger   *zap.Logger
	Tracking service.TrackingService
	Redis    *redis.Client
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Logger = logger

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.CORS())

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:   s.deps.Logger,
		Tracking: s.deps.Tracking,
	})

	s.app.Get("/", apiHandler.Health)
	s.app.Get("/health", apiHandler.Health)

	var ingestMiddleware []fiber.Handler
	if s.deps.Redis != nil {
		ingestMiddleware = append(ingestMiddleware,
			middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}
	apiHandler.Register(s.app, ingestMiddleware...)

	// Unmatched routes get a JSON 404 instead of Fiber's plain-text one.
	s.app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not Found",
			"path":  c.Path(),
		})
	})
}

// errorHandler converts uncaught handler errors into the JSON shape the
// admin dashboard expects.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   utils.StatusMessage(code),
		"message": err.Error(),
	})
}
