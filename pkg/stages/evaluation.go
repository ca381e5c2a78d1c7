package stages

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/jsonutil"
	"github.com/ekaya-inc/ideaflow/pkg/llm"
	"github.com/ekaya-inc/ideaflow/pkg/logging"
	"github.com/ekaya-inc/ideaflow/pkg/models"
	"github.com/ekaya-inc/ideaflow/pkg/prompts"
)

// LLMEvaluationExecutor scores enriched ideas with a text generator.
type LLMEvaluationExecutor struct {
	client llm.LLMClient
	cfg    ExecutorConfig
	logger *zap.Logger
	now    func() time.Time
}

var _ EvaluationExecutor = (*LLMEvaluationExecutor)(nil)

func NewLLMEvaluationExecutor(client llm.LLMClient, cfg ExecutorConfig, logger *zap.Logger) *LLMEvaluationExecutor {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompts.DefaultEvaluationSystem
	}
	return &LLMEvaluationExecutor{
		client: client,
		cfg:    cfg,
		logger: logger.Named("evaluation"),
		now:    time.Now,
	}
}

// Evaluate asks the generator for a strategic evaluation and validates it.
func (e *LLMEvaluationExecutor) Evaluate(ctx context.Context, in EvaluationInput) (*models.EvaluationRecord, error) {
	if in.Enrichment == nil {
		return nil, &GenerationError{Stage: StageEvaluation, Reason: "evaluation requires an enrichment"}
	}

	prompt := prompts.BuildEvaluationPrompt(prompts.EvaluationContext{
		RawText:    in.RawText,
		Context:    in.Context,
		Enrichment: in.Enrichment,
	})

	result, err := e.client.GenerateResponse(ctx, prompt, e.cfg.SystemPrompt, e.cfg.Temperature)
	if err != nil {
		return nil, classifyClientError(StageEvaluation, err)
	}

	record, err := parseEvaluation(result.Content)
	if err != nil {
		e.logger.Warn("Rejected evaluation output",
			zap.Error(err),
			zap.String("preview", logging.Preview(result.Content)))
		return nil, err
	}

	record.EvaluatedBy = e.client.GetModel()
	record.EvaluatedAt = e.now().UTC()

	e.logger.Debug("Evaluation generated",
		zap.Float64("score", record.EvaluationScore),
		zap.String("recommendation", string(record.Recommendation)),
		zap.Int("total_tokens", result.TotalTokens))

	return record, nil
}

func parseEvaluation(content string) (*models.EvaluationRecord, error) {
	fail := func(reason string, err error) error {
		return &GenerationError{Stage: StageEvaluation, Reason: reason, Preview: logging.Preview(content), Err: err}
	}

	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return nil, fail("no JSON object in output", err)
	}
	root := decodeFields([]byte(raw))

	score, ok := jsonutil.FlexibleFloat(root.get("evaluation_score", "overall_score", "score"), false)
	if !ok {
		return nil, fail("missing evaluation_score", nil)
	}

	disruption, ok := jsonutil.FlexibleFloat(root.get("disruption_score"), true)
	if !ok {
		return nil, fail("missing disruption_score", nil)
	}

	recommendation, got, ok := lookup(recommendationSynonyms, root.get("recommendation", "action"))
	if !ok {
		return nil, fail(fmt.Sprintf("unknown recommendation %q", got), nil)
	}

	capabilities, got, ok := lookup(capabilitiesSynonyms, root.get("capabilities_fit", "fit"))
	if !ok {
		return nil, fail(fmt.Sprintf("unknown capabilities_fit %q", got), nil)
	}

	caseStudies, err := jsonutil.FlexibleStringList(root.get("case_study_matches", "case_studies"))
	if err != nil {
		return nil, fail("bad case_study_matches", err)
	}

	record := &models.EvaluationRecord{
		JTBDAnalysis:     jsonutil.FlexibleStringValue(root.get("jtbd_analysis", "jobs_to_be_done")),
		DisruptionScore:  disruption,
		CapabilitiesFit:  capabilities,
		Recommendation:   recommendation,
		CaseStudyMatches: caseStudies,
		EvaluationScore:  score,
	}

	if err := record.Validate(); err != nil {
		return nil, fail("out of range", err)
	}
	return record, nil
}
