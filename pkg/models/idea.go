package models

import (
	"time"

	"github.com/google/uuid"
)

// IdeaStatus is the pipeline position of an idea.
//
//	pending → enriched → evaluated-ready | deferred | research | archived
//
// Evaluation may be re-run from any post-enrichment status; the route of the
// latest evaluation wins.
type IdeaStatus string

const (
	IdeaStatusPending        IdeaStatus = "pending"
	IdeaStatusEnriched       IdeaStatus = "enriched"
	IdeaStatusEvaluatedReady IdeaStatus = "evaluated-ready"
	IdeaStatusDeferred       IdeaStatus = "deferred"
	IdeaStatusResearch       IdeaStatus = "research"
	IdeaStatusArchived       IdeaStatus = "archived"
)

// ValidIdeaStatuses contains all valid status values in pipeline order.
var ValidIdeaStatuses = []IdeaStatus{
	IdeaStatusPending,
	IdeaStatusEnriched,
	IdeaStatusEvaluatedReady,
	IdeaStatusDeferred,
	IdeaStatusResearch,
	IdeaStatusArchived,
}

// IsValid reports whether s is a known status.
func (s IdeaStatus) IsValid() bool {
	for _, v := range ValidIdeaStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Idea is a captured free-text idea. RawText, Context and ProjectHint never
// change after creation; only Status and UpdatedAt move.
type Idea struct {
	ID          uuid.UUID  `json:"id"`
	RawText     string     `json:"raw_text"`
	Context     string     `json:"context,omitempty"`
	ProjectHint string     `json:"project_hint,omitempty"`
	Status      IdeaStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IdeaFilter narrows ListIdeas. A zero Status means every status.
type IdeaFilter struct {
	Status IdeaStatus
	Limit  int
	Offset int
}

// IdeaDetail is an idea together with whatever stage records exist for it.
type IdeaDetail struct {
	Idea       *Idea             `json:"idea"`
	Enrichment *EnrichmentRecord `json:"enrichment,omitempty"`
	Evaluation *EvaluationRecord `json:"evaluation,omitempty"`
}
