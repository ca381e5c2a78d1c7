package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
	"github.com/ekaya-inc/ideaflow/pkg/models"
	"github.com/ekaya-inc/ideaflow/pkg/repositories"
	"github.com/ekaya-inc/ideaflow/pkg/routing"
	"github.com/ekaya-inc/ideaflow/pkg/services/workqueue"
	"github.com/ekaya-inc/ideaflow/pkg/stages"
)

// Upper bounds on idea text, in bytes.
const (
	MaxRawTextLength     = 10000
	MaxContextLength     = 10000
	MaxProjectHintLength = 200
)

// CreateIdeaRequest is the input to CreateIdea.
type CreateIdeaRequest struct {
	RawText     string `json:"raw_text"`
	Context     string `json:"context,omitempty"`
	ProjectHint string `json:"project_hint,omitempty"`
}

// PipelineStats summarizes idea statuses and stage task activity.
type PipelineStats struct {
	ByStatus map[models.IdeaStatus]int `json:"by_status"`
	Total    int                       `json:"total"`
	Tasks    workqueue.Progress        `json:"tasks"`
}

// IdeaService runs ideas through enrichment and evaluation.
//
// Run operations validate synchronously and then hand the stage work to the
// task runtime. Stage failures never change an idea's status; they are
// logged and reported on the returned handle only.
type IdeaService interface {
	CreateIdea(ctx context.Context, req CreateIdeaRequest) (*models.Idea, error)
	GetIdea(ctx context.Context, id uuid.UUID) (*models.IdeaDetail, error)
	ListIdeas(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]*models.StatusTransition, error)
	GetStats(ctx context.Context) (*PipelineStats, error)

	RunEnrichment(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error)
	RunEvaluation(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error)
	RunFullPipeline(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error)
}

// TaskRunner is the part of the task runtime the service needs.
type TaskRunner interface {
	Submit(task workqueue.Task) *workqueue.Handle
	Progress() workqueue.Progress
}

type ideaService struct {
	repo      repositories.IdeaRepository
	enricher  stages.EnrichmentExecutor
	evaluator stages.EvaluationExecutor
	tasks     TaskRunner
	logger    *zap.Logger
	now       func() time.Time
}

var _ IdeaService = (*ideaService)(nil)

// NewIdeaService creates an IdeaService.
func NewIdeaService(
	repo repositories.IdeaRepository,
	enricher stages.EnrichmentExecutor,
	evaluator stages.EvaluationExecutor,
	tasks TaskRunner,
	logger *zap.Logger,
) IdeaService {
	return &ideaService{
		repo:      repo,
		enricher:  enricher,
		evaluator: evaluator,
		tasks:     tasks,
		logger:    logger.Named("ideas"),
		now:       time.Now,
	}
}

func (s *ideaService) CreateIdea(ctx context.Context, req CreateIdeaRequest) (*models.Idea, error) {
	rawText := strings.TrimSpace(req.RawText)
	if rawText == "" {
		return nil, fmt.Errorf("%w: raw_text is required", apperrors.ErrValidation)
	}
	if len(rawText) > MaxRawTextLength {
		return nil, fmt.Errorf("%w: raw_text exceeds %d bytes", apperrors.ErrValidation, MaxRawTextLength)
	}
	ideaContext := strings.TrimSpace(req.Context)
	if len(ideaContext) > MaxContextLength {
		return nil, fmt.Errorf("%w: context exceeds %d bytes", apperrors.ErrValidation, MaxContextLength)
	}
	hint := strings.TrimSpace(req.ProjectHint)
	if len(hint) > MaxProjectHintLength {
		return nil, fmt.Errorf("%w: project_hint exceeds %d bytes", apperrors.ErrValidation, MaxProjectHintLength)
	}

	now := s.now().UTC()
	idea := &models.Idea{
		ID:          uuid.New(),
		RawText:     rawText,
		Context:     ideaContext,
		ProjectHint: hint,
		Status:      models.IdeaStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.UpsertIdea(ctx, idea); err != nil {
		return nil, fmt.Errorf("create idea: %w", err)
	}

	s.logger.Info("Idea created", zap.String("idea_id", idea.ID.String()))
	return idea, nil
}

func (s *ideaService) GetIdea(ctx context.Context, id uuid.UUID) (*models.IdeaDetail, error) {
	idea, err := s.requireIdea(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, idea)
}

func (s *ideaService) ListIdeas(ctx context.Context, filter models.IdeaFilter) ([]*models.IdeaDetail, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", apperrors.ErrValidation)
	}

	ideas, err := s.repo.ListIdeas(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}

	details := make([]*models.IdeaDetail, 0, len(ideas))
	for _, idea := range ideas {
		d, err := s.detail(ctx, idea)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *ideaService) GetHistory(ctx context.Context, id uuid.UUID) ([]*models.StatusTransition, error) {
	if _, err := s.requireIdea(ctx, id); err != nil {
		return nil, err
	}
	transitions, err := s.repo.ListTransitions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return transitions, nil
}

func (s *ideaService) GetStats(ctx context.Context) (*PipelineStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count ideas: %w", err)
	}

	stats := &PipelineStats{
		ByStatus: make(map[models.IdeaStatus]int, len(models.ValidIdeaStatuses)),
		Tasks:    s.tasks.Progress(),
	}
	for _, status := range models.ValidIdeaStatuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

func (s *ideaService) RunEnrichment(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error) {
	if _, err := s.requireIdea(ctx, id); err != nil {
		return nil, err
	}

	return s.submit("enrich", id, func(taskCtx context.Context) error {
		_, err := s.enrich(taskCtx, id, models.TriggerEnrichment)
		return err
	})
}

func (s *ideaService) RunEvaluation(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error) {
	if _, err := s.requireIdea(ctx, id); err != nil {
		return nil, err
	}
	enrichment, err := s.repo.GetEnrichment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get enrichment: %w", err)
	}
	if enrichment == nil {
		return nil, fmt.Errorf("%w: idea %s has not been enriched", apperrors.ErrPrecondition, id)
	}

	return s.submit("evaluate", id, func(taskCtx context.Context) error {
		return s.evaluate(taskCtx, id, nil, models.TriggerEvaluation)
	})
}

func (s *ideaService) RunFullPipeline(ctx context.Context, id uuid.UUID) (*workqueue.Handle, error) {
	if _, err := s.requireIdea(ctx, id); err != nil {
		return nil, err
	}

	return s.submit("pipeline", id, func(taskCtx context.Context) error {
		enrichment, err := s.enrich(taskCtx, id, models.TriggerPipeline)
		if err != nil {
			return err
		}
		return s.evaluate(taskCtx, id, enrichment, models.TriggerPipeline)
	})
}

// submit schedules fn keyed by the idea so the task runtime can sequence
// work per idea.
func (s *ideaService) submit(stage string, id uuid.UUID, fn func(ctx context.Context) error) (*workqueue.Handle, error) {
	name := fmt.Sprintf("%s:%s", stage, id)
	h := s.tasks.Submit(workqueue.NewFuncTask(name, id.String(), fn))

	if h.Status() == workqueue.TaskStatusRejected {
		return nil, h.Err()
	}

	s.logger.Info("Stage scheduled",
		zap.String("idea_id", id.String()),
		zap.String("stage", stage),
		zap.String("task_id", h.ID()))
	return h, nil
}

// enrich runs the enrichment executor and persists its result. The idea is
// re-read inside the task so the executor sees current content.
func (s *ideaService) enrich(ctx context.Context, id uuid.UUID, trigger models.TransitionTrigger) (*models.EnrichmentRecord, error) {
	logger := s.logger.With(zap.String("idea_id", id.String()), zap.String("trigger", string(trigger)))

	idea, err := s.requireIdea(ctx, id)
	if err != nil {
		logger.Error("Enrichment aborted", zap.Error(err))
		return nil, err
	}

	record, err := s.enricher.Enrich(ctx, stages.EnrichmentInput{
		RawText:     idea.RawText,
		Context:     idea.Context,
		ProjectHint: idea.ProjectHint,
	})
	if err != nil {
		logger.Error("Enrichment failed; status unchanged",
			zap.String("status", string(idea.Status)),
			zap.Error(err))
		return nil, err
	}
	record.IdeaID = id

	if err := s.repo.UpsertEnrichment(ctx, record); err != nil {
		logger.Error("Failed to persist enrichment", zap.Error(err))
		return nil, fmt.Errorf("persist enrichment: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, &models.StatusTransition{
		IdeaID:   id,
		ToStatus: models.IdeaStatusEnriched,
		Trigger:  trigger,
	}); err != nil {
		logger.Error("Failed to update status after enrichment", zap.Error(err))
		return nil, fmt.Errorf("update status: %w", err)
	}

	logger.Info("Idea enriched",
		zap.String("category", string(record.Category)),
		zap.Float64("complexity", record.ComplexityScore))
	return record, nil
}

// evaluate runs the evaluation executor against enrichment, or against the
// stored enrichment when nil, then routes the idea.
func (s *ideaService) evaluate(ctx context.Context, id uuid.UUID, enrichment *models.EnrichmentRecord, trigger models.TransitionTrigger) error {
	logger := s.logger.With(zap.String("idea_id", id.String()), zap.String("trigger", string(trigger)))

	idea, err := s.requireIdea(ctx, id)
	if err != nil {
		logger.Error("Evaluation aborted", zap.Error(err))
		return err
	}

	if enrichment == nil {
		enrichment, err = s.repo.GetEnrichment(ctx, id)
		if err != nil {
			logger.Error("Failed to load enrichment", zap.Error(err))
			return fmt.Errorf("get enrichment: %w", err)
		}
		if enrichment == nil {
			err := fmt.Errorf("%w: idea %s has not been enriched", apperrors.ErrPrecondition, id)
			logger.Error("Evaluation aborted", zap.Error(err))
			return err
		}
	}

	record, err := s.evaluator.Evaluate(ctx, stages.EvaluationInput{
		RawText:    idea.RawText,
		Context:    idea.Context,
		Enrichment: enrichment,
	})
	if err != nil {
		logger.Error("Evaluation failed; status unchanged",
			zap.String("status", string(idea.Status)),
			zap.Error(err))
		return err
	}
	record.IdeaID = id

	if err := s.repo.UpsertEvaluation(ctx, record); err != nil {
		logger.Error("Failed to persist evaluation", zap.Error(err))
		return fmt.Errorf("persist evaluation: %w", err)
	}

	decision := routing.RouteEvaluation(record)
	next := routing.StatusFor(decision)

	if err := s.repo.UpdateStatus(ctx, &models.StatusTransition{
		IdeaID:        id,
		ToStatus:      next,
		Trigger:       trigger,
		RouteDecision: string(decision),
	}); err != nil {
		logger.Error("Failed to update status after evaluation", zap.Error(err))
		return fmt.Errorf("update status: %w", err)
	}

	logger.Info("Idea evaluated",
		zap.Float64("score", record.EvaluationScore),
		zap.String("recommendation", string(record.Recommendation)),
		zap.String("decision", string(decision)),
		zap.String("status", string(next)))
	return nil
}

func (s *ideaService) requireIdea(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	idea, err := s.repo.GetIdea(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", err)
	}
	if idea == nil {
		return nil, fmt.Errorf("%w: idea %s", apperrors.ErrNotFound, id)
	}
	return idea, nil
}

func (s *ideaService) detail(ctx context.Context, idea *models.Idea) (*models.IdeaDetail, error) {
	enrichment, err := s.repo.GetEnrichment(ctx, idea.ID)
	if err != nil {
		return nil, fmt.Errorf("get enrichment: %w", err)
	}
	evaluation, err := s.repo.GetEvaluation(ctx, idea.ID)
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return &models.IdeaDetail{Idea: idea, Enrichment: enrichment, Evaluation: evaluation}, nil
}
