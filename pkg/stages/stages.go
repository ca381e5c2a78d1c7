// Package stages holds the enrichment and evaluation executors the pipeline
// calls. Executors are stateless; persistence and routing belong to the caller.
package stages

import (
	"context"

	"github.com/ekaya-inc/ideaflow/pkg/models"
)

// EnrichmentInput is the idea content handed to the enrichment stage.
type EnrichmentInput struct {
	RawText     string
	Context     string
	ProjectHint string
}

// EvaluationInput is the idea content plus its enrichment.
type EvaluationInput struct {
	RawText    string
	Context    string
	Enrichment *models.EnrichmentRecord
}

// EnrichmentExecutor produces an EnrichmentRecord for a raw idea. The
// returned record's IdeaID is left for the caller to set.
type EnrichmentExecutor interface {
	Enrich(ctx context.Context, in EnrichmentInput) (*models.EnrichmentRecord, error)
}

// EvaluationExecutor produces an EvaluationRecord for an enriched idea.
type EvaluationExecutor interface {
	Evaluate(ctx context.Context, in EvaluationInput) (*models.EvaluationRecord, error)
}

// EnrichmentFunc adapts a function to EnrichmentExecutor.
type EnrichmentFunc func(ctx context.Context, in EnrichmentInput) (*models.EnrichmentRecord, error)

func (f EnrichmentFunc) Enrich(ctx context.Context, in EnrichmentInput) (*models.EnrichmentRecord, error) {
	return f(ctx, in)
}

// EvaluationFunc adapts a function to EvaluationExecutor.
type EvaluationFunc func(ctx context.Context, in EvaluationInput) (*models.EvaluationRecord, error)

func (f EvaluationFunc) Evaluate(ctx context.Context, in EvaluationInput) (*models.EvaluationRecord, error) {
	return f(ctx, in)
}

// Stage names used in errors and logs.
const (
	StageEnrichment = "enrichment"
	StageEvaluation = "evaluation"
)
