package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/researcher/api/mcp"
	"github.com/papercomputeco/researcher/api/search"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/research"
)

// Index is the read side of the contextual vector database. *rag.DB
// implements it.
type Index interface {
	search.Searcher
	Stats(ctx context.Context) (*rag.Stats, error)
}

// Asker answers research questions. *research.Researcher implements it.
type Asker interface {
	Ask(ctx context.Context, question string, opts research.AskOptions) (*research.Answer, error)
}

// Server is the API server for the researcher.
type Server struct {
	config Config
	index  Index
	asker  Asker
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The MCP server is mounted at /mcp
// unless config.DisableMCP is set.
func NewServer(config Config, index Index, asker Asker, logger *slog.Logger) (*Server, error) {
	if index == nil {
		return nil, errors.New("index is required")
	}
	if asker == nil {
		return nil, errors.New("asker is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.TopK <= 0 {
		config.TopK = rag.DefaultTopK
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		index:  index,
		asker:  asker,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/stats", s.handleStats)
	app.Get("/v1/search", s.handleSearchEndpoint)
	app.Post("/v1/ask", s.handleAskEndpoint)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Searcher: index,
			Asker:    asker,
			TopK:     config.TopK,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		handler := adaptor.HTTPHandler(mcpServer.Handler())
		app.All("/mcp", handler)
		app.All("/mcp/*", handler)
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", !s.config.DisableMCP,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
