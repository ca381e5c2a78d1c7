package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/models"
	"github.com/ekaya-inc/ideaflow/pkg/services"
	"github.com/ekaya-inc/ideaflow/pkg/services/workqueue"
)

// Default page size when the list request does not carry a limit.
const defaultListLimit = 50

// StageAcceptedResponse is returned when a stage task has been scheduled.
type StageAcceptedResponse struct {
	IdeaID    string `json:"idea_id"`
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

// IdeasHandler serves the idea intake and pipeline endpoints.
type IdeasHandler struct {
	ideaService services.IdeaService
	logger      *zap.Logger
}

// NewIdeasHandler creates a new ideas handler.
func NewIdeasHandler(ideaService services.IdeaService, logger *zap.Logger) *IdeasHandler {
	return &IdeasHandler{
		ideaService: ideaService,
		logger:      logger,
	}
}

// RegisterRoutes registers the ideas handler's routes on the given mux.
func (h *IdeasHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/ideas"

	mux.HandleFunc("POST "+base, h.Create)
	mux.HandleFunc("GET "+base, h.List)
	mux.HandleFunc("GET "+base+"/{id}", h.Get)
	mux.HandleFunc("GET "+base+"/{id}/history", h.History)
	mux.HandleFunc("POST "+base+"/{id}/enrich", h.Enrich)
	mux.HandleFunc("POST "+base+"/{id}/evaluate", h.Evaluate)
	mux.HandleFunc("POST "+base+"/{id}/pipeline", h.Pipeline)
	mux.HandleFunc("GET /api/stats", h.Stats)
}

// Create handles POST /api/ideas
func (h *IdeasHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateIdeaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	idea, err := h.ideaService.CreateIdea(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to create idea")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: idea}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/ideas?status=&limit=&offset=
func (h *IdeasHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.IdeaFilter{Status: models.IdeaStatus(r.URL.Query().Get("status"))}

	var err error
	if filter.Limit, err = queryInt(r, "limit", defaultListLimit); err == nil {
		filter.Offset, err = queryInt(r, "offset", 0)
	}
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_query", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ideas, err := h.ideaService.ListIdeas(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to list ideas")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: ideas}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/ideas/{id}
func (h *IdeasHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.ideaService.GetIdea(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to get idea")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: detail}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/ideas/{id}/history
func (h *IdeasHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	transitions, err := h.ideaService.GetHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to get idea history")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: transitions}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/stats
func (h *IdeasHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ideaService.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger, "Failed to get pipeline stats")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: stats}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Enrich handles POST /api/ideas/{id}/enrich
func (h *IdeasHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	h.runStage(w, r, "enrichment", h.ideaService.RunEnrichment)
}

// Evaluate handles POST /api/ideas/{id}/evaluate
func (h *IdeasHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	h.runStage(w, r, "evaluation", h.ideaService.RunEvaluation)
}

// Pipeline handles POST /api/ideas/{id}/pipeline
func (h *IdeasHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	h.runStage(w, r, "pipeline", h.ideaService.RunFullPipeline)
}

// runStage schedules a stage task and answers 202 without waiting for it.
// The task outcome is observable through the idea's status and history.
func (h *IdeasHandler) runStage(
	w http.ResponseWriter,
	r *http.Request,
	stage string,
	run func(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error),
) {
	id, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	handle, err := run(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger, fmt.Sprintf("Failed to schedule %s", stage))
		return
	}

	resp := StageAcceptedResponse{
		IdeaID:    id.String(),
		TaskID:    handle.ID(),
		StatusURL: "/api/ideas/" + id.String(),
	}
	if err := WriteJSON(w, http.StatusAccepted, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
