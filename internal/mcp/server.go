// Package mcp exposes the retrieval engine as a Model Context Protocol server.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/tsunagu/internal/search"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server is the MCP server for tsunagu.
type Server struct {
	engine *search.Engine
	logger *zap.Logger
	server *mcp.Server
}

// NewServer creates an MCP server backed by the search engine.
func NewServer(engine *search.Engine, logger *zap.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    "tsunagu",
		Version: Version,
	}
	s := &Server{
		engine: engine,
		logger: logger,
		server: mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s
}

// Run serves the MCP protocol over stdio until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server (stdio)")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
