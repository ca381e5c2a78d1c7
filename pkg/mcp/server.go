package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/mcp/tools"
	"github.com/ekaya-inc/ideaflow/pkg/middleware"
	"github.com/ekaya-inc/ideaflow/pkg/services"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "ideaflow"

// Server exposes the idea pipeline to agents over MCP.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server with the health and idea tools registered.
// Every tool call is logged through a ToolCallLogger.
func NewServer(version string, ideaService services.IdeaService, logger *zap.Logger) *Server {
	logger = logger.Named("mcp")

	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(NewToolCallLogger(logger).Hooks()),
	)

	tools.RegisterHealthTool(s, version, ideaService)
	tools.RegisterIdeaTools(s, &tools.IdeaToolDeps{
		IdeaService: ideaService,
		Logger:      logger,
	})

	return &Server{mcp: s, logger: logger}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Handler returns the stateless streamable HTTP transport, wrapped in
// JSON-RPC request logging. Mount it at /mcp.
func (s *Server) Handler() http.Handler {
	transport := server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
	return middleware.MCPRequestLogger(s.logger.Named("http"))(transport)
}
