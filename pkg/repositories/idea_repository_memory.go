package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
	"github.com/ekaya-inc/ideaflow/pkg/models"
)

type memoryIdeaRepository struct {
	mu          sync.RWMutex
	ideas       map[uuid.UUID]*models.Idea
	enrichments map[uuid.UUID]*models.EnrichmentRecord
	evaluations map[uuid.UUID]*models.EvaluationRecord
	transitions map[uuid.UUID][]*models.StatusTransition
}

// NewMemoryIdeaRepository creates a process-local IdeaRepository. Records are
// copied on the way in and out so callers never share state with the store.
func NewMemoryIdeaRepository() IdeaRepository {
	return &memoryIdeaRepository{
		ideas:       make(map[uuid.UUID]*models.Idea),
		enrichments: make(map[uuid.UUID]*models.EnrichmentRecord),
		evaluations: make(map[uuid.UUID]*models.EvaluationRecord),
		transitions: make(map[uuid.UUID][]*models.StatusTransition),
	}
}

var _ IdeaRepository = (*memoryIdeaRepository)(nil)

func (r *memoryIdeaRepository) UpsertIdea(ctx context.Context, idea *models.Idea) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.ideas[idea.ID]; ok {
		existing.Status = idea.Status
		existing.UpdatedAt = idea.UpdatedAt
		idea.CreatedAt = existing.CreatedAt
		return nil
	}
	stored := *idea
	r.ideas[idea.ID] = &stored
	return nil
}

func (r *memoryIdeaRepository) GetIdea(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idea, ok := r.ideas[id]
	if !ok {
		return nil, nil
	}
	copied := *idea
	return &copied, nil
}

func (r *memoryIdeaRepository) ListIdeas(ctx context.Context, filter models.IdeaFilter) ([]*models.Idea, error) {
	r.mu.RLock()
	matched := make([]*models.Idea, 0, len(r.ideas))
	for _, idea := range r.ideas {
		if filter.Status != "" && idea.Status != filter.Status {
			continue
		}
		copied := *idea
		matched = append(matched, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if filter.Offset >= len(matched) {
		return []*models.Idea{}, nil
	}
	matched = matched[filter.Offset:]
	if limit := listLimit(filter); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *memoryIdeaRepository) UpsertEnrichment(ctx context.Context, rec *models.EnrichmentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ideas[rec.IdeaID]; !ok {
		return fmt.Errorf("enrichment for unknown idea %s: %w", rec.IdeaID, apperrors.ErrNotFound)
	}
	r.enrichments[rec.IdeaID] = copyEnrichment(rec)
	return nil
}

func (r *memoryIdeaRepository) GetEnrichment(ctx context.Context, ideaID uuid.UUID) (*models.EnrichmentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.enrichments[ideaID]
	if !ok {
		return nil, nil
	}
	return copyEnrichment(rec), nil
}

func (r *memoryIdeaRepository) UpsertEvaluation(ctx context.Context, rec *models.EvaluationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.enrichments[rec.IdeaID]; !ok {
		return fmt.Errorf("idea %s has no enrichment: %w", rec.IdeaID, apperrors.ErrPrecondition)
	}
	r.evaluations[rec.IdeaID] = copyEvaluation(rec)
	return nil
}

func (r *memoryIdeaRepository) GetEvaluation(ctx context.Context, ideaID uuid.UUID) (*models.EvaluationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.evaluations[ideaID]
	if !ok {
		return nil, nil
	}
	return copyEvaluation(rec), nil
}

func (r *memoryIdeaRepository) UpdateStatus(ctx context.Context, t *models.StatusTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idea, ok := r.ideas[t.IdeaID]
	if !ok {
		return apperrors.ErrNotFound
	}

	now := time.Now().UTC()
	prepareTransition(t, idea.Status)
	t.CreatedAt = now
	idea.Status = t.ToStatus
	idea.UpdatedAt = now

	if t.FromStatus != t.ToStatus {
		stored := *t
		r.transitions[t.IdeaID] = append(r.transitions[t.IdeaID], &stored)
	}
	return nil
}

func (r *memoryIdeaRepository) ListTransitions(ctx context.Context, ideaID uuid.UUID) ([]*models.StatusTransition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.StatusTransition, 0, len(r.transitions[ideaID]))
	for _, t := range r.transitions[ideaID] {
		copied := *t
		out = append(out, &copied)
	}
	return out, nil
}

func (r *memoryIdeaRepository) CountByStatus(ctx context.Context) (map[models.IdeaStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.IdeaStatus]int)
	for _, idea := range r.ideas {
		counts[idea.Status]++
	}
	return counts, nil
}

func copyEnrichment(rec *models.EnrichmentRecord) *models.EnrichmentRecord {
	c := *rec
	c.MarketValidation.Competitors = append([]string{}, rec.MarketValidation.Competitors...)
	c.TechnicalFeasibility.Dependencies = append([]string{}, rec.TechnicalFeasibility.Dependencies...)
	c.TechnicalFeasibility.RiskFactors = append([]string{}, rec.TechnicalFeasibility.RiskFactors...)
	c.ResourceEstimate.SkillsRequired = append([]string{}, rec.ResourceEstimate.SkillsRequired...)
	if rec.MarketValidation.SearchVolume != nil {
		v := *rec.MarketValidation.SearchVolume
		c.MarketValidation.SearchVolume = &v
	}
	if rec.ResourceEstimate.CostEstimate != nil {
		v := *rec.ResourceEstimate.CostEstimate
		c.ResourceEstimate.CostEstimate = &v
	}
	return &c
}

func copyEvaluation(rec *models.EvaluationRecord) *models.EvaluationRecord {
	c := *rec
	c.CaseStudyMatches = append([]string{}, rec.CaseStudyMatches...)
	return &c
}
