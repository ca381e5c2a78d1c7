package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
	"github.com/ekaya-inc/ideaflow/pkg/models"
)

// runIdeaRepositoryContract exercises behavior every IdeaRepository must share.
// newRepo must return an empty store.
func runIdeaRepositoryContract(t *testing.T, newRepo func(t *testing.T) IdeaRepository) {
	t.Run("upsert and get idea", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		idea := newTestIdea("offline mode for the mobile app")

		require.NoError(t, repo.UpsertIdea(ctx, idea))

		got, err := repo.GetIdea(ctx, idea.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, idea.RawText, got.RawText)
		assert.Equal(t, idea.Context, got.Context)
		assert.Equal(t, idea.ProjectHint, got.ProjectHint)
		assert.Equal(t, models.IdeaStatusPending, got.Status)
		assert.WithinDuration(t, idea.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("get missing idea returns nil", func(t *testing.T) {
		repo := newRepo(t)
		got, err := repo.GetIdea(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("list filters by status newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		older := newTestIdea("older")
		older.CreatedAt = older.CreatedAt.Add(-time.Hour)
		newer := newTestIdea("newer")
		enriched := newTestIdea("enriched")
		enriched.Status = models.IdeaStatusEnriched
		for _, idea := range []*models.Idea{older, newer, enriched} {
			require.NoError(t, repo.UpsertIdea(ctx, idea))
		}

		pending, err := repo.ListIdeas(ctx, models.IdeaFilter{Status: models.IdeaStatusPending})
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, newer.ID, pending[0].ID)
		assert.Equal(t, older.ID, pending[1].ID)

		all, err := repo.ListIdeas(ctx, models.IdeaFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		page, err := repo.ListIdeas(ctx, models.IdeaFilter{Limit: 1, Offset: 1, Status: models.IdeaStatusPending})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, older.ID, page[0].ID)
	})

	t.Run("enrichment upsert replaces", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		idea := newTestIdea("replace me")
		require.NoError(t, repo.UpsertIdea(ctx, idea))

		first := newTestEnrichment(idea.ID)
		require.NoError(t, repo.UpsertEnrichment(ctx, first))

		second := newTestEnrichment(idea.ID)
		second.Category = models.CategoryProduct
		second.ComplexityScore = 0.9
		volume := 1200
		second.MarketValidation.SearchVolume = &volume
		require.NoError(t, repo.UpsertEnrichment(ctx, second))

		got, err := repo.GetEnrichment(ctx, idea.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.CategoryProduct, got.Category)
		assert.InDelta(t, 0.9, got.ComplexityScore, 1e-9)
		require.NotNil(t, got.MarketValidation.SearchVolume)
		assert.Equal(t, 1200, *got.MarketValidation.SearchVolume)
		assert.Equal(t, []string{"Acme", "Globex"}, got.MarketValidation.Competitors)
		assert.Equal(t, models.StackFitGood, got.TechnicalFeasibility.StackFit)
		assert.Equal(t, []string{"go", "sql"}, got.ResourceEstimate.SkillsRequired)
	})

	t.Run("evaluation requires enrichment", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		idea := newTestIdea("evaluate too early")
		require.NoError(t, repo.UpsertIdea(ctx, idea))

		err := repo.UpsertEvaluation(ctx, newTestEvaluation(idea.ID, 70))
		assert.ErrorIs(t, err, apperrors.ErrPrecondition)

		got, err := repo.GetEvaluation(ctx, idea.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("evaluation upsert replaces", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		idea := newTestIdea("evaluate twice")
		require.NoError(t, repo.UpsertIdea(ctx, idea))
		require.NoError(t, repo.UpsertEnrichment(ctx, newTestEnrichment(idea.ID)))

		require.NoError(t, repo.UpsertEvaluation(ctx, newTestEvaluation(idea.ID, 30)))
		require.NoError(t, repo.UpsertEvaluation(ctx, newTestEvaluation(idea.ID, 88)))

		got, err := repo.GetEvaluation(ctx, idea.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.InDelta(t, 88, got.EvaluationScore, 1e-9)
		assert.Equal(t, models.RecommendationBuildNow, got.Recommendation)
		assert.Equal(t, []string{"Slack"}, got.CaseStudyMatches)
	})

	t.Run("empty lists read back as empty", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		idea := newTestIdea("nothing to compare against")
		require.NoError(t, repo.UpsertIdea(ctx, idea))

		enrichment := newTestEnrichment(idea.ID)
		enrichment.MarketValidation.Competitors = []string{}
		enrichment.TechnicalFeasibility.Dependencies = []string{}
		enrichment.TechnicalFeasibility.RiskFactors = []string{}
		enrichment.ResourceEstimate.SkillsRequired = []string{}
		require.NoError(t, repo.UpsertEnrichment(ctx, enrichment))

		evaluation := newTestEvaluation(idea.ID, 50)
		evaluation.CaseStudyMatches = nil
		require.NoError(t, repo.UpsertEvaluation(ctx, evaluation))

		gotEnrichment, err := repo.GetEnrichment(ctx, idea.ID)
		require.NoError(t, err)
		require.NotNil(t, gotEnrichment)
		for name, list := range map[string][]string{
			"competitors":     gotEnrichment.MarketValidation.Competitors,
			"dependencies":    gotEnrichment.TechnicalFeasibility.Dependencies,
			"risk_factors":    gotEnrichment.TechnicalFeasibility.RiskFactors,
			"skills_required": gotEnrichment.ResourceEstimate.SkillsRequired,
		} {
			assert.NotNil(t, list, name)
			assert.Empty(t, list, name)
		}

		gotEvaluation, err := repo.GetEvaluation(ctx, idea.ID)
		require.NoError(t, err)
		require.NotNil(t, gotEvaluation)
		assert.NotNil(t, gotEvaluation.CaseStudyMatches)
		assert.Empty(t, gotEvaluation.CaseStudyMatches)
	})

	t.Run("update status records transitions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		idea := newTestIdea("move me")
		require.NoError(t, repo.UpsertIdea(ctx, idea))

		require.NoError(t, repo.UpdateStatus(ctx, &models.StatusTransition{
			IdeaID: idea.ID, ToStatus: models.IdeaStatusEnriched, Trigger: models.TriggerEnrichment,
		}))
		// Same status again refreshes updated_at without a new audit row.
		require.NoError(t, repo.UpdateStatus(ctx, &models.StatusTransition{
			IdeaID: idea.ID, ToStatus: models.IdeaStatusEnriched, Trigger: models.TriggerEnrichment,
		}))
		tr := &models.StatusTransition{
			IdeaID: idea.ID, ToStatus: models.IdeaStatusArchived, Trigger: models.TriggerEvaluation,
			RouteDecision: "ARCHIVE_WITH_LEARNING",
		}
		require.NoError(t, repo.UpdateStatus(ctx, tr))
		assert.Equal(t, models.IdeaStatusEnriched, tr.FromStatus)
		assert.NotEqual(t, uuid.Nil, tr.ID)

		got, err := repo.GetIdea(ctx, idea.ID)
		require.NoError(t, err)
		assert.Equal(t, models.IdeaStatusArchived, got.Status)
		assert.False(t, got.UpdatedAt.Before(idea.UpdatedAt))

		history, err := repo.ListTransitions(ctx, idea.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, models.IdeaStatusPending, history[0].FromStatus)
		assert.Equal(t, models.IdeaStatusEnriched, history[0].ToStatus)
		assert.Equal(t, models.IdeaStatusArchived, history[1].ToStatus)
		assert.Equal(t, "ARCHIVE_WITH_LEARNING", history[1].RouteDecision)
	})

	t.Run("update status unknown idea", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.UpdateStatus(context.Background(), &models.StatusTransition{
			IdeaID: uuid.New(), ToStatus: models.IdeaStatusEnriched, Trigger: models.TriggerEnrichment,
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("count by status", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.UpsertIdea(ctx, newTestIdea("pending idea")))
		}
		archived := newTestIdea("archived idea")
		archived.Status = models.IdeaStatusArchived
		require.NoError(t, repo.UpsertIdea(ctx, archived))

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[models.IdeaStatusPending])
		assert.Equal(t, 1, counts[models.IdeaStatusArchived])
		assert.Equal(t, 0, counts[models.IdeaStatusDeferred])
	})

	t.Run("concurrent enrichment upserts leave one record", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		idea := newTestIdea("race")
		require.NoError(t, repo.UpsertIdea(ctx, idea))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(score float64) {
				defer wg.Done()
				rec := newTestEnrichment(idea.ID)
				rec.ComplexityScore = score
				assert.NoError(t, repo.UpsertEnrichment(ctx, rec))
			}(float64(i) / 10)
		}
		wg.Wait()

		got, err := repo.GetEnrichment(ctx, idea.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.GreaterOrEqual(t, got.ComplexityScore, 0.0)
		assert.LessOrEqual(t, got.ComplexityScore, 0.7)
	})
}

func newTestIdea(text string) *models.Idea {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Idea{
		ID:          uuid.New(),
		RawText:     text,
		Context:     "from the backlog review",
		ProjectHint: "ideaflow",
		Status:      models.IdeaStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newTestEnrichment(ideaID uuid.UUID) *models.EnrichmentRecord {
	return &models.EnrichmentRecord{
		IdeaID:          ideaID,
		Category:        models.CategoryFeature,
		ComplexityScore: 0.4,
		MarketValidation: models.MarketValidation{
			Competitors: []string{"Acme", "Globex"},
			MarketGap:   "nobody does offline sync well",
		},
		TechnicalFeasibility: models.TechnicalFeasibility{
			StackFit:     models.StackFitGood,
			Dependencies: []string{"sqlite"},
			RiskFactors:  []string{"conflict resolution"},
		},
		ResourceEstimate: models.ResourceEstimate{
			EstimatedHours: 120,
			SkillsRequired: []string{"go", "sql"},
		},
		EnrichedBy: "test-model",
		EnrichedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func newTestEvaluation(ideaID uuid.UUID, score float64) *models.EvaluationRecord {
	return &models.EvaluationRecord{
		IdeaID:           ideaID,
		JTBDAnalysis:     "users hire it to keep working on the train",
		DisruptionScore:  0.6,
		CapabilitiesFit:  models.CapabilitiesFitStrong,
		Recommendation:   models.RecommendationBuildNow,
		CaseStudyMatches: []string{"Slack"},
		EvaluationScore:  score,
		EvaluatedBy:      "test-model",
		EvaluatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}
