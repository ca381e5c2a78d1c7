package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/llm"
	"github.com/ekaya-inc/ideaflow/pkg/models"
)

const validEnrichmentJSON = `{
  "category": "product",
  "complexity_score": 0.45,
  "market_validation": {
    "competitors": ["Liquibase", "Atlas"],
    "market_gap": "no offline diffing",
    "search_volume": 1200
  },
  "technical_feasibility": {
    "stack_fit": "good",
    "dependencies": ["pgx"],
    "risk_factors": ["schema drift edge cases"]
  },
  "resource_estimate": {
    "estimated_hours": 160,
    "skills_required": ["Go", "SQL"],
    "cost_estimate": null
  }
}`

func TestLLMEnrichmentExecutor_Enrich(t *testing.T) {
	client := llm.NewStaticMockLLMClient("Here is the analysis:\n```json\n" + validEnrichmentJSON + "\n```")
	client.Model = "enricher-1"

	exec := NewLLMEnrichmentExecutor(client, ExecutorConfig{Temperature: 0.2}, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exec.now = func() time.Time { return fixed }

	rec, err := exec.Enrich(context.Background(), EnrichmentInput{RawText: "schema differ", ProjectHint: "tools"})
	require.NoError(t, err)

	assert.Equal(t, models.CategoryProduct, rec.Category)
	assert.InDelta(t, 0.45, rec.ComplexityScore, 1e-9)
	assert.Equal(t, []string{"Liquibase", "Atlas"}, rec.MarketValidation.Competitors)
	require.NotNil(t, rec.MarketValidation.SearchVolume)
	assert.Equal(t, 1200, *rec.MarketValidation.SearchVolume)
	assert.Equal(t, models.StackFitGood, rec.TechnicalFeasibility.StackFit)
	assert.Equal(t, 160.0, rec.ResourceEstimate.EstimatedHours)
	assert.Nil(t, rec.ResourceEstimate.CostEstimate)
	assert.Equal(t, "enricher-1", rec.EnrichedBy)
	assert.Equal(t, fixed, rec.EnrichedAt)

	require.Equal(t, 1, client.Calls())
	assert.Contains(t, client.Prompts()[0], "schema differ")
	assert.Contains(t, client.Prompts()[0], "Related project: tools")
}

func TestLLMEnrichmentExecutor_LenientValues(t *testing.T) {
	client := llm.NewStaticMockLLMClient(`{
		"Category": "New Product",
		"complexity_score": "70%",
		"market_validation": {"competitors": "Notion", "market_gap": 42},
		"technical_feasibility": {"stack_fit": "Requires_Learning"},
		"resource_estimate": {"estimated_hours": "80", "skills_required": null, "cost_estimate": "5,000"}
	}`)

	rec, err := NewLLMEnrichmentExecutor(client, ExecutorConfig{}, zap.NewNop()).Enrich(context.Background(), EnrichmentInput{RawText: "x"})
	require.NoError(t, err)

	assert.Equal(t, models.CategoryProduct, rec.Category)
	assert.InDelta(t, 0.7, rec.ComplexityScore, 1e-9)
	assert.Equal(t, []string{"Notion"}, rec.MarketValidation.Competitors)
	assert.Equal(t, "42", rec.MarketValidation.MarketGap)
	assert.Equal(t, models.StackFitRequiresLearning, rec.TechnicalFeasibility.StackFit)
	assert.Equal(t, []string{}, rec.TechnicalFeasibility.Dependencies)
	assert.Equal(t, 80.0, rec.ResourceEstimate.EstimatedHours)
	require.NotNil(t, rec.ResourceEstimate.CostEstimate)
	assert.Equal(t, 5000.0, *rec.ResourceEstimate.CostEstimate)
}

func TestLLMEnrichmentExecutor_GenerationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"prose only", "I think this is a great idea!", "no JSON object"},
		{"unknown category", `{"category": "vibes", "complexity_score": 0.5}`, "unknown category"},
		{"missing complexity", `{"category": "feature"}`, "missing complexity_score"},
		{"unknown stack fit", `{"category": "feature", "complexity_score": 0.5, "technical_feasibility": {"stack_fit": "meh"}}`, "unknown stack_fit"},
		{"missing hours", `{"category": "feature", "complexity_score": 0.5, "technical_feasibility": {"stack_fit": "good"}}`, "missing estimated_hours"},
		{"complexity out of range", `{"category": "feature", "complexity_score": 3, "technical_feasibility": {"stack_fit": "good"}, "resource_estimate": {"estimated_hours": 1}}`, "out of range"},
		{"negative hours", `{"category": "feature", "complexity_score": 0.1, "technical_feasibility": {"stack_fit": "good"}, "resource_estimate": {"estimated_hours": -4}}`, "out of range"},
		{"nan complexity", `{"category": "feature", "complexity_score": "NaN", "technical_feasibility": {"stack_fit": "good"}, "resource_estimate": {"estimated_hours": 1}}`, "missing complexity_score"},
		{"nan hours", `{"category": "feature", "complexity_score": 0.1, "technical_feasibility": {"stack_fit": "good"}, "resource_estimate": {"estimated_hours": "NaN"}}`, "missing estimated_hours"},
		{"huge search volume", `{"category": "feature", "complexity_score": 0.1, "market_validation": {"search_volume": 1e30}, "technical_feasibility": {"stack_fit": "good"}, "resource_estimate": {"estimated_hours": 1}}`, "search_volume out of range"},
		{"negative search volume", `{"category": "feature", "complexity_score": 0.1, "market_validation": {"search_volume": -10}, "technical_feasibility": {"stack_fit": "good"}, "resource_estimate": {"estimated_hours": 1}}`, "search_volume out of range"},
		{"bad list", `{"category": "feature", "complexity_score": 0.1, "market_validation": {"competitors": {"a": 1}}}`, "bad competitors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewLLMEnrichmentExecutor(llm.NewStaticMockLLMClient(tt.content), ExecutorConfig{}, zap.NewNop())

			_, err := exec.Enrich(context.Background(), EnrichmentInput{RawText: "x"})
			require.Error(t, err)

			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, StageEnrichment, genErr.Stage)
			assert.Contains(t, genErr.Reason, tt.reason)
			assert.False(t, IsTransportError(err))
		})
	}
}

func TestLLMEnrichmentExecutor_ClientErrors(t *testing.T) {
	client := llm.NewMockLLMClient()
	var next error
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error) {
		return nil, next
	}
	exec := NewLLMEnrichmentExecutor(client, ExecutorConfig{}, zap.NewNop())

	next = llm.ClassifyError(errors.New("connection refused"), 0)
	_, err := exec.Enrich(context.Background(), EnrichmentInput{RawText: "x"})
	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, next)

	next = &llm.Error{Type: llm.ErrorTypeResponse, Message: "empty completion"}
	_, err = exec.Enrich(context.Background(), EnrichmentInput{RawText: "x"})
	assert.True(t, IsGenerationError(err))
}

func TestEnrichmentFunc(t *testing.T) {
	var exec EnrichmentExecutor = EnrichmentFunc(func(_ context.Context, in EnrichmentInput) (*models.EnrichmentRecord, error) {
		return &models.EnrichmentRecord{
			Category:         models.CategoryResearch,
			MarketValidation: models.MarketValidation{MarketGap: in.RawText},
		}, nil
	})

	rec, err := exec.Enrich(context.Background(), EnrichmentInput{RawText: "gap"})
	require.NoError(t, err)
	assert.Equal(t, "gap", rec.MarketValidation.MarketGap)
}
