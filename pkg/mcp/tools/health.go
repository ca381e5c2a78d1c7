package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ideaflow/pkg/services"
	"github.com/ekaya-inc/ideaflow/pkg/services/workqueue"
)

type healthResult struct {
	Status  string              `json:"status"`
	Version string              `json:"version"`
	Ideas   int                 `json:"ideas,omitempty"`
	Tasks   *workqueue.Progress `json:"tasks,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status and version, plus pipeline counts
// when an idea service is supplied.
func RegisterHealthTool(s *server.MCPServer, version string, ideaService services.IdeaService) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}

		if ideaService != nil {
			stats, err := ideaService.GetStats(ctx)
			if err != nil {
				result.Status = "degraded"
			} else {
				result.Ideas = stats.Total
				result.Tasks = &stats.Tasks
			}
		}

		return jsonResult(result)
	})
}
