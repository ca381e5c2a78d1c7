package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/llm"
	"github.com/ekaya-inc/ideaflow/pkg/models"
)

func testEnrichment() *models.EnrichmentRecord {
	return &models.EnrichmentRecord{
		IdeaID:               uuid.New(),
		Category:             models.CategoryFeature,
		ComplexityScore:      0.3,
		TechnicalFeasibility: models.TechnicalFeasibility{StackFit: models.StackFitPerfect},
		ResourceEstimate:     models.ResourceEstimate{EstimatedHours: 20},
	}
}

func TestLLMEvaluationExecutor_Evaluate(t *testing.T) {
	client := llm.NewStaticMockLLMClient(`<think>scoring...</think>{
		"jtbd_analysis": "Teams hire this to avoid broken deploys.",
		"disruption_score": 0.6,
		"capabilities_fit": "strong",
		"recommendation": "build-now",
		"case_study_matches": ["Flyway"],
		"evaluation_score": 90
	}`)
	client.Model = "evaluator-1"

	exec := NewLLMEvaluationExecutor(client, ExecutorConfig{SystemPrompt: "custom system"}, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exec.now = func() time.Time { return fixed }

	var gotSystem string
	client.GenerateResponseFunc = wrapSystemCapture(client.GenerateResponseFunc, &gotSystem)

	rec, err := exec.Evaluate(context.Background(), EvaluationInput{RawText: "idea", Enrichment: testEnrichment()})
	require.NoError(t, err)

	assert.Equal(t, "Teams hire this to avoid broken deploys.", rec.JTBDAnalysis)
	assert.InDelta(t, 0.6, rec.DisruptionScore, 1e-9)
	assert.Equal(t, models.CapabilitiesFitStrong, rec.CapabilitiesFit)
	assert.Equal(t, models.RecommendationBuildNow, rec.Recommendation)
	assert.Equal(t, []string{"Flyway"}, rec.CaseStudyMatches)
	assert.Equal(t, 90.0, rec.EvaluationScore)
	assert.Equal(t, "evaluator-1", rec.EvaluatedBy)
	assert.Equal(t, fixed, rec.EvaluatedAt)
	assert.Equal(t, "custom system", gotSystem)
	assert.Contains(t, client.Prompts()[0], "- Category: feature")
}

func wrapSystemCapture(
	next func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error),
	captured *string,
) func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error) {
	return func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
		*captured = system
		return next(ctx, prompt, system, temp)
	}
}

func TestLLMEvaluationExecutor_AlternateSpellings(t *testing.T) {
	client := llm.NewStaticMockLLMClient(`{
		"jobs_to_be_done": "job",
		"disruption_score": "35%",
		"fit": "Moderate",
		"action": "Build Later",
		"case_studies": "Heroku",
		"overall_score": "62"
	}`)

	rec, err := NewLLMEvaluationExecutor(client, ExecutorConfig{}, zap.NewNop()).
		Evaluate(context.Background(), EvaluationInput{RawText: "x", Enrichment: testEnrichment()})
	require.NoError(t, err)

	assert.Equal(t, "job", rec.JTBDAnalysis)
	assert.InDelta(t, 0.35, rec.DisruptionScore, 1e-9)
	assert.Equal(t, models.CapabilitiesFitDeveloping, rec.CapabilitiesFit)
	assert.Equal(t, models.RecommendationBuildLater, rec.Recommendation)
	assert.Equal(t, []string{"Heroku"}, rec.CaseStudyMatches)
	assert.Equal(t, 62.0, rec.EvaluationScore)
}

func TestLLMEvaluationExecutor_GenerationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"no json", "Looks promising.", "no JSON object"},
		{"missing score", `{"disruption_score": 0.5}`, "missing evaluation_score"},
		{"missing disruption", `{"evaluation_score": 50}`, "missing disruption_score"},
		{"unknown recommendation", `{"evaluation_score": 50, "disruption_score": 0.5, "recommendation": "maybe"}`, "unknown recommendation"},
		{"unknown fit", `{"evaluation_score": 50, "disruption_score": 0.5, "recommendation": "skip", "capabilities_fit": "?"}`, "unknown capabilities_fit"},
		{"score out of range", `{"evaluation_score": 150, "disruption_score": 0.5, "recommendation": "skip", "capabilities_fit": "strong"}`, "out of range"},
		{"nan score", `{"evaluation_score": "NaN", "disruption_score": 0.5, "recommendation": "skip", "capabilities_fit": "strong"}`, "missing evaluation_score"},
		{"nan disruption", `{"evaluation_score": 50, "disruption_score": "NaN", "recommendation": "skip", "capabilities_fit": "strong"}`, "missing disruption_score"},
		{"disruption out of range", `{"evaluation_score": 50, "disruption_score": 1.5, "recommendation": "skip", "capabilities_fit": "strong"}`, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewLLMEvaluationExecutor(llm.NewStaticMockLLMClient(tt.content), ExecutorConfig{}, zap.NewNop())

			_, err := exec.Evaluate(context.Background(), EvaluationInput{RawText: "x", Enrichment: testEnrichment()})

			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, StageEvaluation, genErr.Stage)
			assert.Contains(t, genErr.Reason, tt.reason)
		})
	}
}

func TestLLMEvaluationExecutor_RequiresEnrichment(t *testing.T) {
	client := llm.NewMockLLMClient()
	_, err := NewLLMEvaluationExecutor(client, ExecutorConfig{}, zap.NewNop()).
		Evaluate(context.Background(), EvaluationInput{RawText: "x"})

	assert.True(t, IsGenerationError(err))
	assert.Equal(t, 0, client.Calls())
}

func TestLLMEvaluationExecutor_TransportError(t *testing.T) {
	client := llm.NewMockLLMClient()
	client.GenerateResponseFunc = func(context.Context, string, string, float64) (*llm.GenerateResponseResult, error) {
		return nil, llm.ClassifyError(errors.New("status code: 503"), 0)
	}

	_, err := NewLLMEvaluationExecutor(client, ExecutorConfig{}, zap.NewNop()).
		Evaluate(context.Background(), EvaluationInput{RawText: "x", Enrichment: testEnrichment()})

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, StageEvaluation, tErr.Stage)
	assert.Contains(t, err.Error(), "evaluation transport error")
}

func TestToken(t *testing.T) {
	assert.Equal(t, "build-now", token("  Build Now "))
	assert.Equal(t, "build-now", token("BUILD_NOW."))
	assert.Equal(t, "", token(""))
}
