package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// IdeaCategory classifies what kind of work an idea represents.
type IdeaCategory string

const (
	CategoryFeature     IdeaCategory = "feature"
	CategoryProduct     IdeaCategory = "product"
	CategoryIntegration IdeaCategory = "integration"
	CategoryResearch    IdeaCategory = "research"
)

var ValidIdeaCategories = []IdeaCategory{
	CategoryFeature,
	CategoryProduct,
	CategoryIntegration,
	CategoryResearch,
}

// StackFit grades how well an idea fits the existing technology stack.
type StackFit string

const (
	StackFitPerfect          StackFit = "perfect"
	StackFitGood             StackFit = "good"
	StackFitRequiresLearning StackFit = "requires-learning"
	StackFitBlocker          StackFit = "blocker"
)

var ValidStackFits = []StackFit{
	StackFitPerfect,
	StackFitGood,
	StackFitRequiresLearning,
	StackFitBlocker,
}

type MarketValidation struct {
	Competitors  []string `json:"competitors"`
	MarketGap    string   `json:"market_gap"`
	SearchVolume *int     `json:"search_volume,omitempty"`
}

type TechnicalFeasibility struct {
	StackFit     StackFit `json:"stack_fit"`
	Dependencies []string `json:"dependencies"`
	RiskFactors  []string `json:"risk_factors"`
}

type ResourceEstimate struct {
	EstimatedHours float64  `json:"estimated_hours"`
	SkillsRequired []string `json:"skills_required"`
	CostEstimate   *float64 `json:"cost_estimate,omitempty"`
}

// EnrichmentRecord is the structured output of the enrichment stage.
// At most one exists per idea; re-running enrichment replaces it.
type EnrichmentRecord struct {
	IdeaID               uuid.UUID            `json:"idea_id"`
	Category             IdeaCategory         `json:"category"`
	ComplexityScore      float64              `json:"complexity_score"` // 0.0-1.0
	MarketValidation     MarketValidation     `json:"market_validation"`
	TechnicalFeasibility TechnicalFeasibility `json:"technical_feasibility"`
	ResourceEstimate     ResourceEstimate     `json:"resource_estimate"`
	EnrichedBy           string               `json:"enriched_by,omitempty"` // generator model
	EnrichedAt           time.Time            `json:"enriched_at"`
}

// Validate checks enumerations and numeric ranges.
func (r *EnrichmentRecord) Validate() error {
	if !contains(ValidIdeaCategories, r.Category) {
		return fmt.Errorf("invalid category %q", r.Category)
	}
	if !inRange(r.ComplexityScore, 0, 1) {
		return fmt.Errorf("complexity score %v outside [0,1]", r.ComplexityScore)
	}
	if !contains(ValidStackFits, r.TechnicalFeasibility.StackFit) {
		return fmt.Errorf("invalid stack fit %q", r.TechnicalFeasibility.StackFit)
	}
	if !inRange(r.ResourceEstimate.EstimatedHours, 0, math.MaxFloat64) {
		return fmt.Errorf("estimated hours %v is negative or not finite", r.ResourceEstimate.EstimatedHours)
	}
	if r.MarketValidation.SearchVolume != nil && *r.MarketValidation.SearchVolume < 0 {
		return fmt.Errorf("search volume %d is negative", *r.MarketValidation.SearchVolume)
	}
	if r.ResourceEstimate.CostEstimate != nil && !inRange(*r.ResourceEstimate.CostEstimate, 0, math.MaxFloat64) {
		return fmt.Errorf("cost estimate %v is negative or not finite", *r.ResourceEstimate.CostEstimate)
	}
	return nil
}

// inRange reports whether v lies in [lo, hi]. NaN is never in range.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
