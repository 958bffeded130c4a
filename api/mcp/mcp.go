// Package mcp provides an MCP (Model Context Protocol) server exposing the
// researcher's search and ask operations as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/researcher/api/search"
	"github.com/papercomputeco/researcher/pkg/research"
	"github.com/papercomputeco/researcher/pkg/utils"
)

// Asker answers research questions. *research.Researcher implements it.
type Asker interface {
	Ask(ctx context.Context, question string, opts research.AskOptions) (*research.Answer, error)
}

type Config struct {
	// Searcher runs semantic search over indexed chunks
	Searcher search.Searcher

	// Asker answers questions; optional, enables the ask tool
	Asker Asker

	// TopK is the default number of results
	TopK int

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search tool, and the ask tool
// when an Asker is configured.
func NewServer(c Config) (*Server, error) {
	if c.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "researcher",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	if c.Asker != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        askToolName,
			Description: askDescription,
		}, s.handleAsk)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, for transports other than HTTP.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// errorResult reports a tool failure to the client instead of failing the
// protocol call.
func errorResult(format string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: format + ": " + err.Error()},
		},
	}
}
