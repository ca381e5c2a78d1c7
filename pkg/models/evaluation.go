package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CapabilitiesFit grades how well current capabilities cover an idea.
type CapabilitiesFit string

const (
	CapabilitiesFitStrong     CapabilitiesFit = "strong"
	CapabilitiesFitDeveloping CapabilitiesFit = "developing"
	CapabilitiesFitMissing    CapabilitiesFit = "missing"
)

var ValidCapabilitiesFits = []CapabilitiesFit{
	CapabilitiesFitStrong,
	CapabilitiesFitDeveloping,
	CapabilitiesFitMissing,
}

// Recommendation is the evaluator's suggested course of action.
type Recommendation string

const (
	RecommendationBuildNow   Recommendation = "build-now"
	RecommendationBuildLater Recommendation = "build-later"
	RecommendationPartner    Recommendation = "partner"
	RecommendationSkip       Recommendation = "skip"
)

var ValidRecommendations = []Recommendation{
	RecommendationBuildNow,
	RecommendationBuildLater,
	RecommendationPartner,
	RecommendationSkip,
}

// IsValid reports whether r is a known recommendation.
func (r Recommendation) IsValid() bool {
	return contains(ValidRecommendations, r)
}

// EvaluationRecord is the structured output of the evaluation stage.
// It only exists for ideas that already have an EnrichmentRecord.
type EvaluationRecord struct {
	IdeaID           uuid.UUID       `json:"idea_id"`
	JTBDAnalysis     string          `json:"jtbd_analysis"`
	DisruptionScore  float64         `json:"disruption_score"` // 0.0-1.0
	CapabilitiesFit  CapabilitiesFit `json:"capabilities_fit"`
	Recommendation   Recommendation  `json:"recommendation"`
	CaseStudyMatches []string        `json:"case_study_matches"`
	EvaluationScore  float64         `json:"evaluation_score"` // 0-100
	EvaluatedBy      string          `json:"evaluated_by,omitempty"`
	EvaluatedAt      time.Time       `json:"evaluated_at"`
}

// Validate checks enumerations and numeric ranges.
func (r *EvaluationRecord) Validate() error {
	if !inRange(r.DisruptionScore, 0, 1) {
		return fmt.Errorf("disruption score %v outside [0,1]", r.DisruptionScore)
	}
	if !inRange(r.EvaluationScore, 0, 100) {
		return fmt.Errorf("evaluation score %v outside [0,100]", r.EvaluationScore)
	}
	if !contains(ValidCapabilitiesFits, r.CapabilitiesFit) {
		return fmt.Errorf("invalid capabilities fit %q", r.CapabilitiesFit)
	}
	if !r.Recommendation.IsValid() {
		return fmt.Errorf("invalid recommendation %q", r.Recommendation)
	}
	return nil
}
