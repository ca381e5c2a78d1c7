package prompts

import (
	"fmt"
	"strings"
)

// EnrichmentContext is what the enrichment stage knows about an idea.
type EnrichmentContext struct {
	RawText     string
	Context     string
	ProjectHint string
}

// DefaultEnrichmentSystem is the system message for the enrichment stage.
const DefaultEnrichmentSystem = `You are an expert product analyst and innovation strategist.
You turn rough product ideas into structured, comparable assessments.
Respond with a single JSON object and nothing else.`

// BuildEnrichmentPrompt creates the user prompt for enriching a raw idea.
func BuildEnrichmentPrompt(in EnrichmentContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Idea Enrichment\n\n")
	prompt.WriteString("Analyze the idea below and estimate its category, complexity, market position, technical feasibility and required resources.\n\n")

	prompt.WriteString("## Idea\n\n")
	prompt.WriteString(strings.TrimSpace(in.RawText))
	prompt.WriteString("\n\n")

	if c := strings.TrimSpace(in.Context); c != "" {
		prompt.WriteString("## Submitter Context\n\n")
		prompt.WriteString(c)
		prompt.WriteString("\n\n")
	}
	if in.ProjectHint != "" {
		prompt.WriteString(fmt.Sprintf("Related project: %s\n\n", in.ProjectHint))
	}

	prompt.WriteString("## Scoring Guide\n\n")
	prompt.WriteString("- `complexity_score`: 0.0 (trivial, a few hours) to 1.0 (multi-quarter effort)\n")
	prompt.WriteString("- `category`: feature (extends something existing), product (standalone offering), integration (connects existing systems), research (needs investigation before building)\n")
	prompt.WriteString("- `stack_fit`: perfect, good, requires-learning, blocker\n")
	prompt.WriteString("- Use null for `search_volume` or `cost_estimate` when you cannot estimate them\n\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "category": "feature|product|integration|research",
  "complexity_score": 0.0,
  "market_validation": {
    "competitors": ["<name>"],
    "market_gap": "<what existing offerings miss>",
    "search_volume": null
  },
  "technical_feasibility": {
    "stack_fit": "perfect|good|requires-learning|blocker",
    "dependencies": ["<library, service or system>"],
    "risk_factors": ["<risk>"]
  },
  "resource_estimate": {
    "estimated_hours": 0,
    "skills_required": ["<skill>"],
    "cost_estimate": null
  }
}`)
	prompt.WriteString("\n```\n")

	return prompt.String()
}
