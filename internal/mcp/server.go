package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/internal/reference"
	"github.com/socraticlab/recall/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "recall-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server exposes the retrieval subsystem to MCP clients over stdio.
type Server struct {
	mcp      *server.MCPServer
	store    store.Store
	ranker   *ranker.Ranker
	detector *reference.Detector
}

// NewServer wraps the already-wired retrieval components in an MCP server.
func NewServer(st store.Store, rk *ranker.Ranker, det *reference.Detector) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    st,
		ranker:   rk,
		detector: det,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchMemoryTool(), s.handleSearchMemory)
	s.mcp.AddTool(fetchReferenceContextTool(), s.handleFetchReferenceContext)
	s.mcp.AddTool(exportMemoryTool(), s.handleExportMemory)
}
