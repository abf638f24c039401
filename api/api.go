package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http/pprof"

	"github.com/bytedance/sonic"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/deepgate/api/mcp"
	"github.com/papercomputeco/deepgate/pkg/llm"
	"github.com/papercomputeco/deepgate/pkg/storage"
)

// Server is the API server for querying recorded usage.
type Server struct {
	config Config
	driver storage.Driver
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with the gateway's worker pool.
// mcpServer may be nil, in which case /mcp is not mounted.
func NewServer(config Config, driver storage.Driver, mcpServer *mcp.Server, logger *slog.Logger) (*Server, error) {
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           sonic.ConfigStd.Marshal,
		JSONDecoder:           sonic.ConfigStd.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(llm.NewErrorResponse(err.Error()))
		},
	})

	s := &Server{
		config: config,
		driver: driver,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/usage", s.handleListUsage)
	app.Get("/usage/summary", s.handleUsageSummary)

	if mcpServer != nil && mcpServer.Handler() != nil {
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	if config.PProf {
		app.Get("/debug/pprof/", adaptor.HTTPHandlerFunc(pprof.Index))
		app.Get("/debug/pprof/cmdline", adaptor.HTTPHandlerFunc(pprof.Cmdline))
		app.Get("/debug/pprof/profile", adaptor.HTTPHandlerFunc(pprof.Profile))
		app.Get("/debug/pprof/symbol", adaptor.HTTPHandlerFunc(pprof.Symbol))
		app.Get("/debug/pprof/trace", adaptor.HTTPHandlerFunc(pprof.Trace))
		app.Get("/debug/pprof/:profile", func(c *fiber.Ctx) error {
			return adaptor.HTTPHandler(pprof.Handler(c.Params("profile")))(c)
		})
	}

	return s, nil
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		"listen", listener.Addr().String(),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
