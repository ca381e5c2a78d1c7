package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ideaflow/pkg/models"
	"github.com/ekaya-inc/ideaflow/pkg/services"
	"github.com/ekaya-inc/ideaflow/pkg/services/workqueue"
)

// mockIdeaService is a configurable mock of services.IdeaService.
// Unset funcs return zero values.
type mockIdeaService struct {
	createFunc       func(ctx context.Context, req services.CreateIdeaRequest) (*models.Idea, error)
	getFunc          func(ctx context.Context, id uuid.UUID) (*models.IdeaDetail, error)
	listFunc         func(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error)
	historyFunc      func(ctx context.Context, id uuid.UUID) ([]*models.StatusTransition, error)
	statsFunc        func(ctx context.Context) (*services.PipelineStats, error)
	enrichFunc       func(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error)
	evaluateFunc     func(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error)
	fullPipelineFunc func(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error)
}

var _ services.IdeaService = (*mockIdeaService)(nil)

func (m *mockIdeaService) CreateIdea(ctx context.Context, req services.CreateIdeaRequest) (*models.Idea, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockIdeaService) GetIdea(ctx context.Context, id uuid.UUID) (*models.IdeaDetail, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockIdeaService) ListIdeas(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockIdeaService) GetHistory(ctx context.Context, id uuid.UUID) ([]*models.StatusTransition, error) {
	if m.historyFunc != nil {
		return m.historyFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockIdeaService) GetStats(ctx context.Context) (*services.PipelineStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return nil, nil
}

func (m *mockIdeaService) RunEnrichment(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error) {
	if m.enrichFunc != nil {
		return m.enrichFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockIdeaService) RunEvaluation(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error) {
	if m.evaluateFunc != nil {
		return m.evaluateFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockIdeaService) RunFullPipeline(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error) {
	if m.fullPipelineFunc != nil {
		return m.fullPipelineFunc(ctx, id)
	}
	return nil, nil
}
