package stages

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/jsonutil"
	"github.com/ekaya-inc/ideaflow/pkg/llm"
	"github.com/ekaya-inc/ideaflow/pkg/logging"
	"github.com/ekaya-inc/ideaflow/pkg/models"
	"github.com/ekaya-inc/ideaflow/pkg/prompts"
)

// ExecutorConfig tunes an LLM-backed executor.
type ExecutorConfig struct {
	SystemPrompt string
	Temperature  float64
}

// LLMEnrichmentExecutor enriches ideas with a text generator.
type LLMEnrichmentExecutor struct {
	client llm.LLMClient
	cfg    ExecutorConfig
	logger *zap.Logger
	now    func() time.Time
}

var _ EnrichmentExecutor = (*LLMEnrichmentExecutor)(nil)

func NewLLMEnrichmentExecutor(client llm.LLMClient, cfg ExecutorConfig, logger *zap.Logger) *LLMEnrichmentExecutor {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompts.DefaultEnrichmentSystem
	}
	return &LLMEnrichmentExecutor{
		client: client,
		cfg:    cfg,
		logger: logger.Named("enrichment"),
		now:    time.Now,
	}
}

// Enrich asks the generator for an enrichment and validates the answer.
func (e *LLMEnrichmentExecutor) Enrich(ctx context.Context, in EnrichmentInput) (*models.EnrichmentRecord, error) {
	prompt := prompts.BuildEnrichmentPrompt(prompts.EnrichmentContext{
		RawText:     in.RawText,
		Context:     in.Context,
		ProjectHint: in.ProjectHint,
	})

	result, err := e.client.GenerateResponse(ctx, prompt, e.cfg.SystemPrompt, e.cfg.Temperature)
	if err != nil {
		return nil, classifyClientError(StageEnrichment, err)
	}

	record, err := parseEnrichment(result.Content)
	if err != nil {
		e.logger.Warn("Rejected enrichment output",
			zap.Error(err),
			zap.String("preview", logging.Preview(result.Content)))
		return nil, err
	}

	record.EnrichedBy = e.client.GetModel()
	record.EnrichedAt = e.now().UTC()

	e.logger.Debug("Enrichment generated",
		zap.String("category", string(record.Category)),
		zap.Float64("complexity", record.ComplexityScore),
		zap.Int("total_tokens", result.TotalTokens))

	return record, nil
}

func parseEnrichment(content string) (*models.EnrichmentRecord, error) {
	fail := func(reason string, err error) error {
		return &GenerationError{Stage: StageEnrichment, Reason: reason, Preview: logging.Preview(content), Err: err}
	}

	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return nil, fail("no JSON object in output", err)
	}
	root := decodeFields([]byte(raw))

	category, got, ok := lookup(categorySynonyms, root.get("category", "idea_category"))
	if !ok {
		return nil, fail(fmt.Sprintf("unknown category %q", got), nil)
	}

	complexity, ok := jsonutil.FlexibleFloat(root.get("complexity_score", "complexity"), true)
	if !ok {
		return nil, fail("missing complexity_score", nil)
	}

	market := root.object("market_validation", "market")
	competitors, err := jsonutil.FlexibleStringList(market.get("competitors"))
	if err != nil {
		return nil, fail("bad competitors", err)
	}

	tech := root.object("technical_feasibility", "feasibility")
	stackFit, got, ok := lookup(stackFitSynonyms, tech.get("stack_fit"))
	if !ok {
		return nil, fail(fmt.Sprintf("unknown stack_fit %q", got), nil)
	}
	dependencies, err := jsonutil.FlexibleStringList(tech.get("dependencies"))
	if err != nil {
		return nil, fail("bad dependencies", err)
	}
	risks, err := jsonutil.FlexibleStringList(tech.get("risk_factors", "risks"))
	if err != nil {
		return nil, fail("bad risk_factors", err)
	}

	resources := root.object("resource_estimate", "resources")
	hours, ok := jsonutil.FlexibleFloat(resources.get("estimated_hours", "hours"), false)
	if !ok {
		return nil, fail("missing estimated_hours", nil)
	}
	skills, err := jsonutil.FlexibleStringList(resources.get("skills_required", "skills"))
	if err != nil {
		return nil, fail("bad skills_required", err)
	}

	record := &models.EnrichmentRecord{
		Category:        category,
		ComplexityScore: complexity,
		MarketValidation: models.MarketValidation{
			Competitors: competitors,
			MarketGap:   jsonutil.FlexibleStringValue(market.get("market_gap", "gap")),
		},
		TechnicalFeasibility: models.TechnicalFeasibility{
			StackFit:     stackFit,
			Dependencies: dependencies,
			RiskFactors:  risks,
		},
		ResourceEstimate: models.ResourceEstimate{
			EstimatedHours: hours,
			SkillsRequired: skills,
			CostEstimate:   jsonutil.FlexibleOptionalFloat(resources.get("cost_estimate", "cost")),
		},
	}
	if v := jsonutil.FlexibleOptionalFloat(market.get("search_volume")); v != nil {
		if *v < 0 || *v >= math.MaxInt32 {
			return nil, fail("search_volume out of range", fmt.Errorf("search volume %v", *v))
		}
		volume := int(math.Round(*v))
		record.MarketValidation.SearchVolume = &volume
	}

	if err := record.Validate(); err != nil {
		return nil, fail("out of range", err)
	}
	return record, nil
}
