// Package mcp exposes the diagnosis pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/history"
	"github.com/dermascan-server/internal/service"
)

// Server represents the DermaScan MCP server
type Server struct {
	config    *domain.Config
	mcpServer *mcp.Server
	diagnosis *service.DiagnosisService
	history   history.Store
	exportDir string
	logger    *logrus.Logger
}

// Option is a functional option for Server.
type Option func(*Server)

// WithHistoryStore enables the history tools.
func WithHistoryStore(store history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithExportDir sets where export_history writes files. Without it exports
// are returned inline.
func WithExportDir(dir string) Option {
	return func(s *Server) { s.exportDir = dir }
}

// NewServer creates a new MCP server instance with every tool registered.
func NewServer(cfg *domain.Config, logger *logrus.Logger, diagnosis *service.DiagnosisService, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		diagnosis: diagnosis,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	name, version := cfg.MCP.ServerName, cfg.MCP.ServerVersion
	if name == "" {
		name = "dermascan-mcp-server"
	}
	if version == "" {
		version = "v0.1.0"
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	s.registerTools()
	return s
}

// Start runs the server over the configured transport until ctx is done or
// the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	transportType := s.config.MCP.TransportType
	if transportType != "" && transportType != "stdio" {
		return fmt.Errorf("unsupported transport type: %s", transportType)
	}

	s.logger.WithFields(logrus.Fields{
		"transport_type": "stdio",
		"history":        s.history != nil,
	}).Info("Starting DermaScan MCP Server...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "diagnose_skin",
		Description: "Rank the nine catalogued skin conditions for an image and optional symptom checklist. Returns the primary diagnosis, differential candidates, recommendations and an attention overlay.",
	}, s.handleDiagnoseSkin)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_recommendations",
		Description: "Return the care recommendations for a catalogued condition.",
	}, s.handleGetRecommendations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_conditions",
		Description: "List the condition catalog in index order and the symptom checklist.",
	}, s.handleListConditions)

	count := 3
	if s.history != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "list_history",
			Description: "List a user's saved diagnoses, newest first.",
		}, s.handleListHistory)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "export_history",
			Description: "Export saved diagnoses as JSON, for one user or all users.",
		}, s.handleExportHistory)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "import_history",
			Description: "Import diagnoses from a JSON export file. Existing IDs are skipped.",
		}, s.handleImportHistory)
		count += 3
	}

	s.logger.WithField("tool_count", count).Info("Successfully registered all tools")
}

// textResult wraps text in a tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// toolError reports a failure to the client as a tool-level error.
func toolError(code string, err error) *mcp.CallToolResult {
	res := textResult(fmt.Sprintf("%s: %v", code, err))
	res.IsError = true
	return res
}
