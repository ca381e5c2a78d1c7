package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SystemPrompts holds the system message for each stage.
type SystemPrompts struct {
	Enrichment string `yaml:"enrichment_system"`
	Evaluation string `yaml:"evaluation_system"`
}

// Defaults returns the built-in system prompts.
func Defaults() SystemPrompts {
	return SystemPrompts{
		Enrichment: DefaultEnrichmentSystem,
		Evaluation: DefaultEvaluationSystem,
	}
}

// Load returns the built-in prompts overlaid with any non-empty values from
// the YAML file at path. An empty path yields the defaults.
func Load(path string) (SystemPrompts, error) {
	prompts := Defaults()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return prompts, fmt.Errorf("read prompts file: %w", err)
	}

	var overrides SystemPrompts
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return prompts, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	if s := strings.TrimSpace(overrides.Enrichment); s != "" {
		prompts.Enrichment = s
	}
	if s := strings.TrimSpace(overrides.Evaluation); s != "" {
		prompts.Evaluation = s
	}
	return prompts, nil
}
