package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/models"
	"github.com/ekaya-inc/ideaflow/pkg/services"
	"github.com/ekaya-inc/ideaflow/pkg/services/workqueue"
)

// Pipeline stages accepted by run_pipeline.
const (
	stageEnrichment = "enrichment"
	stageEvaluation = "evaluation"
	stageFull       = "full"
)

const defaultListLimit = 20

// IdeaToolDeps contains dependencies for the idea tools.
type IdeaToolDeps struct {
	IdeaService services.IdeaService
	Logger      *zap.Logger
}

// RegisterIdeaTools registers create_idea, get_idea, list_ideas and run_pipeline.
func RegisterIdeaTools(s *server.MCPServer, deps *IdeaToolDeps) {
	registerCreateIdeaTool(s, deps)
	registerGetIdeaTool(s, deps)
	registerListIdeasTool(s, deps)
	registerRunPipelineTool(s, deps)
}

func registerCreateIdeaTool(s *server.MCPServer, deps *IdeaToolDeps) {
	tool := mcp.NewTool(
		"create_idea",
		mcp.WithDescription(
			"Capture a free-text idea. The idea starts in 'pending' status; "+
				"use run_pipeline to enrich and evaluate it.",
		),
		mcp.WithString(
			"raw_text",
			mcp.Required(),
			mcp.Description("The idea, in the submitter's own words"),
		),
		mcp.WithString(
			"context",
			mcp.Description("Optional background from the submitter"),
		),
		mcp.WithString(
			"project_hint",
			mcp.Description("Optional name of a related project"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawText, err := req.RequireString("raw_text")
		if err != nil {
			return NewErrorResult("invalid_parameters", "raw_text is required"), nil
		}

		idea, err := deps.IdeaService.CreateIdea(ctx, services.CreateIdeaRequest{
			RawText:     rawText,
			Context:     getOptionalString(req, "context"),
			ProjectHint: getOptionalString(req, "project_hint"),
		})
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to create idea: %w", err)
		}

		return jsonResult(idea)
	})
}

func registerGetIdeaTool(s *server.MCPServer, deps *IdeaToolDeps) {
	tool := mcp.NewTool(
		"get_idea",
		mcp.WithDescription("Get an idea with its enrichment and evaluation records, if any."),
		mcp.WithString(
			"idea_id",
			mcp.Required(),
			mcp.Description("UUID of the idea"),
		),
		mcp.WithBoolean(
			"include_history",
			mcp.Description("Also return the idea's status transitions"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireIdeaID(req)
		if errResult != nil {
			return errResult, nil
		}

		detail, err := deps.IdeaService.GetIdea(ctx, id)
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to get idea: %w", err)
		}

		if !getOptionalBool(req, "include_history") {
			return jsonResult(detail)
		}

		history, err := deps.IdeaService.GetHistory(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get idea history: %w", err)
		}
		return jsonResult(struct {
			*models.IdeaDetail
			History []*models.StatusTransition `json:"history"`
		}{detail, history})
	})
}

func registerListIdeasTool(s *server.MCPServer, deps *IdeaToolDeps) {
	statuses := make([]string, len(models.ValidIdeaStatuses))
	for i, st := range models.ValidIdeaStatuses {
		statuses[i] = string(st)
	}

	tool := mcp.NewTool(
		"list_ideas",
		mcp.WithDescription("List ideas, newest first, optionally filtered by status."),
		mcp.WithString(
			"status",
			mcp.Description("Only return ideas in this status"),
			mcp.Enum(statuses...),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description(fmt.Sprintf("Maximum ideas to return (default %d)", defaultListLimit)),
		),
		mcp.WithNumber(
			"offset",
			mcp.Description("Number of ideas to skip"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ideas, err := deps.IdeaService.ListIdeas(ctx, models.IdeaFilter{
			Status: models.IdeaStatus(getOptionalString(req, "status")),
			Limit:  getOptionalInt(req, "limit", defaultListLimit),
			Offset: getOptionalInt(req, "offset", 0),
		})
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to list ideas: %w", err)
		}

		return jsonResult(struct {
			Ideas []*models.IdeaDetail `json:"ideas"`
			Count int                  `json:"count"`
		}{ideas, len(ideas)})
	})
}

type runPipelineResult struct {
	IdeaID string `json:"idea_id"`
	TaskID string `json:"task_id"`
	Stage  string `json:"stage"`
	Status string `json:"status"`
}

func registerRunPipelineTool(s *server.MCPServer, deps *IdeaToolDeps) {
	tool := mcp.NewTool(
		"run_pipeline",
		mcp.WithDescription(
			"Schedule enrichment, evaluation, or both for an idea. Returns immediately; "+
				"poll get_idea to see the resulting status.",
		),
		mcp.WithString(
			"idea_id",
			mcp.Required(),
			mcp.Description("UUID of the idea"),
		),
		mcp.WithString(
			"stage",
			mcp.Description("Which stage to run (default full)"),
			mcp.Enum(stageEnrichment, stageEvaluation, stageFull),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireIdeaID(req)
		if errResult != nil {
			return errResult, nil
		}

		stage := getOptionalString(req, "stage")
		if stage == "" {
			stage = stageFull
		}

		var run func(context.Context, uuid.UUID) (*workqueue.Handle, error)
		switch stage {
		case stageEnrichment:
			run = deps.IdeaService.RunEnrichment
		case stageEvaluation:
			run = deps.IdeaService.RunEvaluation
		case stageFull:
			run = deps.IdeaService.RunFullPipeline
		default:
			return NewErrorResult("invalid_parameters",
				fmt.Sprintf("stage must be one of %s, %s, %s", stageEnrichment, stageEvaluation, stageFull)), nil
		}

		handle, err := run(ctx, id)
		if err != nil {
			if result := serviceErrorResult(err); result != nil {
				return result, nil
			}
			return nil, fmt.Errorf("failed to schedule %s: %w", stage, err)
		}

		deps.Logger.Info("Stage scheduled via MCP",
			zap.String("stage", stage),
			zap.String("idea_id", id.String()),
			zap.String("task_id", handle.ID()))

		return jsonResult(runPipelineResult{
			IdeaID: id.String(),
			TaskID: handle.ID(),
			Stage:  stage,
			Status: "scheduled",
		})
	})
}
