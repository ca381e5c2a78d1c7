// Package routing decides where an evaluated idea goes next.
package routing

import "github.com/ekaya-inc/ideaflow/pkg/models"

// Decision is the outcome of routing an evaluation.
type Decision string

const (
	GenerateBlueprint   Decision = "GENERATE_BLUEPRINT"
	DeferWithBlueprint  Decision = "DEFER_WITH_BLUEPRINT"
	NeedsValidation     Decision = "NEEDS_VALIDATION"
	ArchiveWithLearning Decision = "ARCHIVE_WITH_LEARNING"
)

// Score thresholds. These are cascading minimums checked in order, not
// disjoint ranges.
const (
	BuildThreshold      = 80.0
	DeferThreshold      = 60.0
	ValidationThreshold = 40.0
)

// Route maps an evaluation score and recommendation to a decision.
// The first matching rule wins.
func Route(score float64, recommendation models.Recommendation) Decision {
	switch {
	case score >= BuildThreshold && recommendation == models.RecommendationBuildNow:
		return GenerateBlueprint
	case score >= DeferThreshold:
		return DeferWithBlueprint
	case score >= ValidationThreshold:
		return NeedsValidation
	default:
		return ArchiveWithLearning
	}
}

// RouteEvaluation routes a stored evaluation record.
func RouteEvaluation(rec *models.EvaluationRecord) Decision {
	return Route(rec.EvaluationScore, rec.Recommendation)
}

// StatusFor returns the idea status a decision moves the idea to.
func StatusFor(d Decision) models.IdeaStatus {
	switch d {
	case GenerateBlueprint:
		return models.IdeaStatusEvaluatedReady
	case DeferWithBlueprint:
		return models.IdeaStatusDeferred
	case NeedsValidation:
		return models.IdeaStatusResearch
	default:
		return models.IdeaStatusArchived
	}
}
