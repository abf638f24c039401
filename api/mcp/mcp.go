// Package mcp provides an MCP (Model Context Protocol) server exposing the
// deepgate gateway operations as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/deepgate/pkg/llm/provider"
	"github.com/papercomputeco/deepgate/pkg/storage"
	"github.com/papercomputeco/deepgate/pkg/utils"
)

type Config struct {
	// Provider serves the chat, list_models and balance tools
	Provider provider.Provider

	// Driver serves the usage_summary tool
	Driver storage.Driver

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the gateway tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "deepgate",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// MCP capabilities are disabled: no tools and no HTTP handler
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        chatToolName,
		Description: chatDescription,
	}, s.handleChat)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listModelsToolName,
		Description: listModelsDescription,
	}, s.handleListModels)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        balanceToolName,
		Description: balanceDescription,
	}, s.handleBalance)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        usageSummaryToolName,
		Description: usageSummaryDescription,
	}, s.handleUsageSummary)

	s.mcpServer = mcpServer

	// Stateless streamable HTTP handler: every request gets the same server
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

// Handler returns the HTTP handler for the MCP server. It is nil for a Noop
// server.
func (s *Server) Handler() http.Handler {
	if s.handler == nil {
		return nil
	}
	return s.handler
}

// MCPServer returns the underlying MCP server, for in-process sessions.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
