package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ideaflow/pkg/models"
)

// IdeaRepository is the record store for ideas and their stage records.
//
// Every write is a single atomic statement or transaction on one idea.
// Getters return (nil, nil) when the record does not exist.
type IdeaRepository interface {
	UpsertIdea(ctx context.Context, idea *models.Idea) error
	GetIdea(ctx context.Context, id uuid.UUID) (*models.Idea, error)
	ListIdeas(ctx context.Context, filter models.IdeaFilter) ([]*models.Idea, error)

	UpsertEnrichment(ctx context.Context, rec *models.EnrichmentRecord) error
	GetEnrichment(ctx context.Context, ideaID uuid.UUID) (*models.EnrichmentRecord, error)

	// UpsertEvaluation fails with apperrors.ErrPrecondition when the idea has
	// no enrichment record.
	UpsertEvaluation(ctx context.Context, rec *models.EvaluationRecord) error
	GetEvaluation(ctx context.Context, ideaID uuid.UUID) (*models.EvaluationRecord, error)

	// UpdateStatus moves an idea to t.ToStatus, refreshes updated_at and, when
	// the status actually changes, appends t to the audit trail. FromStatus,
	// ID and CreatedAt on t are filled in by the store. Returns
	// apperrors.ErrNotFound for unknown ideas.
	UpdateStatus(ctx context.Context, t *models.StatusTransition) error
	ListTransitions(ctx context.Context, ideaID uuid.UUID) ([]*models.StatusTransition, error)

	CountByStatus(ctx context.Context) (map[models.IdeaStatus]int, error)
}

const defaultListLimit = 100

func listLimit(filter models.IdeaFilter) int {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		return defaultListLimit
	}
	return filter.Limit
}

func prepareTransition(t *models.StatusTransition, from models.IdeaStatus) {
	t.FromStatus = from
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
