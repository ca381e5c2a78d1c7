// test-stage-outputs runs one idea through the configured enrichment and
// evaluation generators without touching the record store. It prints each
// parsed record and the routing decision, which makes it the quickest way to
// check a new model or prompt override.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/config"
	"github.com/ekaya-inc/ideaflow/pkg/llm"
	"github.com/ekaya-inc/ideaflow/pkg/prompts"
	"github.com/ekaya-inc/ideaflow/pkg/routing"
	"github.com/ekaya-inc/ideaflow/pkg/stages"
)

const sampleIdea = `A Slack bot that watches incident channels and drafts the postmortem
timeline automatically from messages, deploy events and pager alerts.`

func main() {
	ideaText := flag.String("idea", sampleIdea, "Idea text to run through the stages")
	ideaContext := flag.String("context", "", "Optional submitter context")
	timeout := flag.Duration("timeout", 3*time.Minute, "Timeout for the whole run")
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load("test-stage-outputs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, strings.TrimSpace(*ideaText), *ideaContext, logger); err != nil {
		fmt.Printf("\n✗ FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n✓ PASS")
}

func run(ctx context.Context, cfg *config.Config, ideaText, ideaContext string, logger *zap.Logger) error {
	systemPrompts, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return err
	}

	enrichClient, err := llm.NewClientFromConfig(stages.StageEnrichment, cfg.Enrichment, config.CircuitBreakerConfig{}, logger)
	if err != nil {
		return err
	}
	evalClient, err := llm.NewClientFromConfig(stages.StageEvaluation, cfg.Evaluation, config.CircuitBreakerConfig{}, logger)
	if err != nil {
		return err
	}

	enricher := stages.NewLLMEnrichmentExecutor(enrichClient, stages.ExecutorConfig{
		SystemPrompt: systemPrompts.Enrichment,
		Temperature:  cfg.Enrichment.Temperature,
	}, logger)
	evaluator := stages.NewLLMEvaluationExecutor(evalClient, stages.ExecutorConfig{
		SystemPrompt: systemPrompts.Evaluation,
		Temperature:  cfg.Evaluation.Temperature,
	}, logger)

	header(fmt.Sprintf("Enrichment (%s @ %s)", enrichClient.GetModel(), enrichClient.GetEndpoint()))
	start := time.Now()
	enrichment, err := enricher.Enrich(ctx, stages.EnrichmentInput{
		RawText: ideaText,
		Context: ideaContext,
	})
	if err != nil {
		return describe("enrichment", err)
	}
	printJSON(enrichment)
	fmt.Printf("Duration: %s\n", time.Since(start).Round(time.Millisecond))

	header(fmt.Sprintf("Evaluation (%s @ %s)", evalClient.GetModel(), evalClient.GetEndpoint()))
	start = time.Now()
	evaluation, err := evaluator.Evaluate(ctx, stages.EvaluationInput{
		RawText:    ideaText,
		Context:    ideaContext,
		Enrichment: enrichment,
	})
	if err != nil {
		return describe("evaluation", err)
	}
	printJSON(evaluation)
	fmt.Printf("Duration: %s\n", time.Since(start).Round(time.Millisecond))

	decision := routing.RouteEvaluation(evaluation)
	header("Routing")
	fmt.Printf("Score: %.1f  Recommendation: %s\n", evaluation.EvaluationScore, evaluation.Recommendation)
	fmt.Printf("Decision: %s -> status %s\n", decision, routing.StatusFor(decision))
	return nil
}

func describe(stage string, err error) error {
	switch {
	case stages.IsGenerationError(err):
		return fmt.Errorf("%s output could not be used: %w", stage, err)
	case stages.IsTransportError(err):
		return fmt.Errorf("%s generator unreachable: %w", stage, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func header(title string) {
	fmt.Printf("\n%s\n%s\n%s\n", strings.Repeat("-", 80), title, strings.Repeat("-", 80))
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("(unprintable: %v)\n", err)
		return
	}
	fmt.Println(string(b))
}
