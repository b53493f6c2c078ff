// Package mcp exposes the running daemon to MCP clients over stdio.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winrestore/internal/engine"
	"github.com/1broseidon/winrestore/internal/ipc"
)

const (
	ServerName    = "winrestore"
	ServerVersion = "0.1.0"
)

// DaemonClient is the part of the IPC client the tools need.
type DaemonClient interface {
	GetStatus() (*ipc.StatusData, error)
	GetCache() (*ipc.CacheData, error)
	RestoreNow() (*engine.RestoreReport, error)
}

// Server is the MCP server proxying daemon queries.
type Server struct {
	mcpServer *mcpsdk.Server
	client    DaemonClient
	logger    *slog.Logger
}

// NewServer creates a new MCP server backed by client.
func NewServer(client DaemonClient, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{client: client, logger: logger}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "layout_status",
		Description: "Report the live display arrangement signature, matcher, cache size and known virtual desktops of the running winrestore daemon.",
	}, s.handleLayoutStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_cached_layouts",
		Description: "List every display arrangement with a cached window layout, with process, window and placeholder counts.",
	}, s.handleListCachedLayouts)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "restore_now",
		Description: "Force a restore of the cached layout onto the active virtual desktop. Windows of processes whose window count changed are left alone.",
	}, s.handleRestoreNow)
}
