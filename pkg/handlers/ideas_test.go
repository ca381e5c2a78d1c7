package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
	"github.com/ekaya-inc/ideaflow/pkg/models"
	"github.com/ekaya-inc/ideaflow/pkg/services"
	"github.com/ekaya-inc/ideaflow/pkg/services/workqueue"
)

func newTestMux(svc services.IdeaService) *http.ServeMux {
	mux := http.NewServeMux()
	NewIdeasHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func serve(t *testing.T, mux *http.ServeMux, method, target string, body any) (*httptest.ResponseRecorder, ApiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec, resp
}

// completedHandle returns a handle for a task that has already run.
func completedHandle(t *testing.T, name string) *workqueue.Handle {
	t.Helper()

	q := workqueue.New(zap.NewNop())
	h := q.Submit(workqueue.NewFuncTask(name, "", func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	return h
}

func TestIdeasHandler_Create(t *testing.T) {
	var got services.CreateIdeaRequest
	svc := &mockIdeaService{
		createFunc: func(ctx context.Context, req services.CreateIdeaRequest) (*models.Idea, error) {
			got = req
			return &models.Idea{ID: uuid.New(), RawText: req.RawText, Status: models.IdeaStatusPending}, nil
		},
	}

	rec, resp := serve(t, newTestMux(svc), http.MethodPost, "/api/ideas", map[string]string{
		"raw_text":     "Slack bot that summarizes threads",
		"project_hint": "chatops",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Slack bot that summarizes threads", got.RawText)
	assert.Equal(t, "chatops", got.ProjectHint)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "pending", data["status"])
}

func TestIdeasHandler_Create_InvalidBody(t *testing.T) {
	mux := newTestMux(&mockIdeaService{})

	req := httptest.NewRequest(http.MethodPost, "/api/ideas", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_request", resp.Error)
}

func TestIdeasHandler_Create_ValidationError(t *testing.T) {
	svc := &mockIdeaService{
		createFunc: func(ctx context.Context, req services.CreateIdeaRequest) (*models.Idea, error) {
			return nil, fmt.Errorf("raw_text is required: %w", apperrors.ErrValidation)
		},
	}

	rec, resp := serve(t, newTestMux(svc), http.MethodPost, "/api/ideas", map[string]string{"raw_text": " "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "validation_error", resp.Error)
	assert.Contains(t, resp.Message, "raw_text is required")
}

func TestIdeasHandler_List_Filter(t *testing.T) {
	var got models.IdeaFilter
	svc := &mockIdeaService{
		listFunc: func(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error) {
			got = filter
			return []*models.IdeaDetail{{Idea: &models.Idea{ID: uuid.New(), Status: models.IdeaStatusResearch}}}, nil
		},
	}

	rec, resp := serve(t, newTestMux(svc), http.MethodGet, "/api/ideas?status=research&limit=10&offset=20", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.IdeaFilter{Status: models.IdeaStatusResearch, Limit: 10, Offset: 20}, got)
	assert.Len(t, resp.Data, 1)
}

func TestIdeasHandler_List_Defaults(t *testing.T) {
	var got models.IdeaFilter
	svc := &mockIdeaService{
		listFunc: func(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error) {
			got = filter
			return []*models.IdeaDetail{}, nil
		},
	}

	rec, _ := serve(t, newTestMux(svc), http.MethodGet, "/api/ideas", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, got.Limit)
	assert.Equal(t, 0, got.Offset)
	assert.Empty(t, got.Status)
}

func TestIdeasHandler_List_BadQuery(t *testing.T) {
	called := false
	svc := &mockIdeaService{
		listFunc: func(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error) {
			called = true
			return nil, nil
		},
	}

	for _, target := range []string{"/api/ideas?limit=abc", "/api/ideas?offset=-1"} {
		rec, resp := serve(t, newTestMux(svc), http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "invalid_query", resp.Error, target)
	}
	assert.False(t, called)
}

func TestIdeasHandler_List_UnknownStatus(t *testing.T) {
	svc := &mockIdeaService{
		listFunc: func(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error) {
			return nil, fmt.Errorf("unknown status %q: %w", filter.Status, apperrors.ErrValidation)
		},
	}

	rec, _ := serve(t, newTestMux(svc), http.MethodGet, "/api/ideas?status=failed", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdeasHandler_Get(t *testing.T) {
	id := uuid.New()
	svc := &mockIdeaService{
		getFunc: func(ctx context.Context, got uuid.UUID) (*models.IdeaDetail, error) {
			if got != id {
				return nil, apperrors.ErrNotFound
			}
			return &models.IdeaDetail{
				Idea:       &models.Idea{ID: id, Status: models.IdeaStatusEnriched},
				Enrichment: &models.EnrichmentRecord{IdeaID: id, Category: models.CategoryProduct},
			}, nil
		},
	}
	mux := newTestMux(svc)

	rec, resp := serve(t, mux, http.MethodGet, "/api/ideas/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "enriched", data["idea"].(map[string]any)["status"])
	assert.NotNil(t, data["enrichment"])
	assert.Nil(t, data["evaluation"])

	rec, resp = serve(t, mux, http.MethodGet, "/api/ideas/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error)

	rec, resp = serve(t, mux, http.MethodGet, "/api/ideas/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_idea_id", resp.Error)
}

func TestIdeasHandler_RunStages_Accepted(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name  string
		path  string
		setup func(m *mockIdeaService, h *workqueue.Handle)
	}{
		{
			name: "enrich",
			path: "/enrich",
			setup: func(m *mockIdeaService, h *workqueue.Handle) {
				m.enrichFunc = func(ctx context.Context, got uuid.UUID) (*workqueue.Handle, error) { return h, nil }
			},
		},
		{
			name: "evaluate",
			path: "/evaluate",
			setup: func(m *mockIdeaService, h *workqueue.Handle) {
				m.evaluateFunc = func(ctx context.Context, got uuid.UUID) (*workqueue.Handle, error) { return h, nil }
			},
		},
		{
			name: "pipeline",
			path: "/pipeline",
			setup: func(m *mockIdeaService, h *workqueue.Handle) {
				m.fullPipelineFunc = func(ctx context.Context, got uuid.UUID) (*workqueue.Handle, error) { return h, nil }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := completedHandle(t, tt.name+":"+id.String())
			svc := &mockIdeaService{}
			tt.setup(svc, h)

			rec, resp := serve(t, newTestMux(svc), http.MethodPost, "/api/ideas/"+id.String()+tt.path, nil)

			assert.Equal(t, http.StatusAccepted, rec.Code)
			data := resp.Data.(map[string]any)
			assert.Equal(t, id.String(), data["idea_id"])
			assert.Equal(t, h.ID(), data["task_id"])
			assert.Equal(t, "/api/ideas/"+id.String(), data["status_url"])
		})
	}
}

func TestIdeasHandler_RunStages_DoesNotLogScheduling(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	id := uuid.New()
	h := completedHandle(t, "enrich:"+id.String())
	svc := &mockIdeaService{
		enrichFunc: func(ctx context.Context, got uuid.UUID) (*workqueue.Handle, error) { return h, nil },
	}

	mux := http.NewServeMux()
	NewIdeasHandler(svc, zap.New(core)).RegisterRoutes(mux)
	rec, _ := serve(t, mux, http.MethodPost, "/api/ideas/"+id.String()+"/enrich", nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, logs.FilterMessage("Stage scheduled").Len())
}

func TestIdeasHandler_RunStages_SyncErrors(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", fmt.Errorf("idea %s: %w", id, apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"no enrichment", fmt.Errorf("idea has not been enriched: %w", apperrors.ErrPrecondition), http.StatusConflict, "precondition_failed"},
		{"shutting down", fmt.Errorf("closed: %w", apperrors.ErrShuttingDown), http.StatusServiceUnavailable, "shutting_down"},
		{"unexpected", fmt.Errorf("database is on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockIdeaService{
				evaluateFunc: func(ctx context.Context, got uuid.UUID) (*workqueue.Handle, error) { return nil, tt.err },
			}

			rec, resp := serve(t, newTestMux(svc), http.MethodPost, "/api/ideas/"+id.String()+"/evaluate", nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.NotContains(t, resp.Message, "on fire")
		})
	}
}

func TestIdeasHandler_History(t *testing.T) {
	id := uuid.New()
	svc := &mockIdeaService{
		historyFunc: func(ctx context.Context, got uuid.UUID) ([]*models.StatusTransition, error) {
			return []*models.StatusTransition{
				{IdeaID: id, FromStatus: models.IdeaStatusPending, ToStatus: models.IdeaStatusEnriched, Trigger: models.TriggerEnrichment},
				{IdeaID: id, FromStatus: models.IdeaStatusEnriched, ToStatus: models.IdeaStatusDeferred, Trigger: models.TriggerEvaluation, RouteDecision: "DEFER_WITH_BLUEPRINT"},
			}, nil
		},
	}

	rec, resp := serve(t, newTestMux(svc), http.MethodGet, "/api/ideas/"+id.String()+"/history", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	items := resp.Data.([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "deferred", items[1].(map[string]any)["to_status"])
}

func TestIdeasHandler_Stats(t *testing.T) {
	svc := &mockIdeaService{
		statsFunc: func(ctx context.Context) (*services.PipelineStats, error) {
			return &services.PipelineStats{
				ByStatus: map[models.IdeaStatus]int{models.IdeaStatusPending: 2, models.IdeaStatusArchived: 1},
				Total:    3,
				Tasks:    workqueue.Progress{Submitted: 4, Completed: 3, Running: 1},
			}, nil
		},
	}

	rec, resp := serve(t, newTestMux(svc), http.MethodGet, "/api/stats", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 3, data["total"])
	assert.EqualValues(t, 2, data["by_status"].(map[string]any)["pending"])
}
