package models

import (
	"time"

	"github.com/google/uuid"
)

// TransitionTrigger names the operation that moved an idea.
type TransitionTrigger string

const (
	TriggerEnrichment TransitionTrigger = "enrichment"
	TriggerEvaluation TransitionTrigger = "evaluation"
	TriggerPipeline   TransitionTrigger = "pipeline"
)

// StatusTransition is one append-only audit row for a status change.
type StatusTransition struct {
	ID            uuid.UUID         `json:"id"`
	IdeaID        uuid.UUID         `json:"idea_id"`
	FromStatus    IdeaStatus        `json:"from_status"`
	ToStatus      IdeaStatus        `json:"to_status"`
	Trigger       TransitionTrigger `json:"trigger"`
	RouteDecision string            `json:"route_decision,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
