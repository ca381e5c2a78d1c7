package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaflow/pkg/config"
)

// NewClientFromConfig builds the client for one stage's generator. When the
// breaker threshold is positive the client is wrapped in a GuardedClient.
func NewClientFromConfig(stage string, cfg config.LLMConfig, cb config.CircuitBreakerConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:  cfg.BaseURL,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	}
	stageLogger := logger.With(zap.String("stage", stage))

	var (
		client LLMClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		client, err = NewClient(clientCfg, stageLogger)
	case config.ProviderAnthropic:
		client, err = NewAnthropicClient(clientCfg, stageLogger)
	default:
		return nil, fmt.Errorf("%s: unknown provider %q", stage, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", stage, err)
	}

	if cb.Threshold > 0 {
		breaker := NewCircuitBreaker(CircuitBreakerConfig{Threshold: cb.Threshold, ResetAfter: cb.ResetAfter})
		client = NewGuardedClient(client, breaker, stageLogger.Named("llm"))
	}

	stageLogger.Info("LLM client configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", client.GetModel()),
		zap.String("endpoint", client.GetEndpoint()))

	return client, nil
}
