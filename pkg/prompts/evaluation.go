package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ideaflow/pkg/models"
)

// EvaluationContext is what the evaluation stage knows about an enriched idea.
type EvaluationContext struct {
	RawText    string
	Context    string
	Enrichment *models.EnrichmentRecord
}

// DefaultEvaluationSystem is the system message for the evaluation stage.
const DefaultEvaluationSystem = `You are a strategy advisor applying Jobs-to-be-Done and disruptive innovation theory.
You decide whether an enriched idea deserves to be built now.
Respond with a single JSON object and nothing else.`

// BuildEvaluationPrompt creates the user prompt for evaluating an enriched idea.
func BuildEvaluationPrompt(in EvaluationContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Strategic Evaluation\n\n")

	prompt.WriteString("## Idea\n\n")
	prompt.WriteString(strings.TrimSpace(in.RawText))
	prompt.WriteString("\n\n")

	if c := strings.TrimSpace(in.Context); c != "" {
		prompt.WriteString("## Submitter Context\n\n")
		prompt.WriteString(c)
		prompt.WriteString("\n\n")
	}

	if e := in.Enrichment; e != nil {
		prompt.WriteString("## Enrichment\n\n")
		prompt.WriteString(fmt.Sprintf("- Category: %s\n", e.Category))
		prompt.WriteString(fmt.Sprintf("- Complexity: %.2f\n", e.ComplexityScore))
		prompt.WriteString(fmt.Sprintf("- Stack fit: %s\n", e.TechnicalFeasibility.StackFit))
		prompt.WriteString(fmt.Sprintf("- Estimated hours: %.0f\n", e.ResourceEstimate.EstimatedHours))
		writeList(&prompt, "Competitors", e.MarketValidation.Competitors)
		if e.MarketValidation.MarketGap != "" {
			prompt.WriteString(fmt.Sprintf("- Market gap: %s\n", e.MarketValidation.MarketGap))
		}
		writeList(&prompt, "Dependencies", e.TechnicalFeasibility.Dependencies)
		writeList(&prompt, "Risk factors", e.TechnicalFeasibility.RiskFactors)
		writeList(&prompt, "Skills required", e.ResourceEstimate.SkillsRequired)
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Scoring Guide\n\n")
	prompt.WriteString("- `evaluation_score`: 0-100 overall attractiveness. 80+ means build immediately, 60-79 worth planning, 40-59 needs validation, below 40 should be archived\n")
	prompt.WriteString("- `disruption_score`: 0.0-1.0 likelihood the idea disrupts incumbents\n")
	prompt.WriteString("- `capabilities_fit`: strong, developing or missing\n")
	prompt.WriteString("- `recommendation`: build-now, build-later, partner or skip\n\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "jtbd_analysis": "<the job customers hire this for, and how well it is served today>",
  "disruption_score": 0.0,
  "capabilities_fit": "strong|developing|missing",
  "recommendation": "build-now|build-later|partner|skip",
  "case_study_matches": ["<comparable company or product>"],
  "evaluation_score": 0
}`)
	prompt.WriteString("\n```\n")

	return prompt.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("- %s: %s\n", label, strings.Join(items, ", ")))
}
