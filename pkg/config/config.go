package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for ideaflow.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`

	// Each stage talks to its own generator so they can use different providers.
	Enrichment LLMConfig `yaml:"enrichment" env-prefix:"ENRICHMENT_"`
	Evaluation LLMConfig `yaml:"evaluation" env-prefix:"EVALUATION_"`

	Pipeline       PipelineConfig       `yaml:"pipeline"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	MCP            MCPConfig            `yaml:"mcp"`

	// PromptsFile optionally points at a YAML file overriding the stage system prompts.
	PromptsFile string `yaml:"prompts_file" env:"PROMPTS_FILE" env-default:""`
}

// DatabaseConfig selects and configures the record store.
type DatabaseConfig struct {
	// Driver is one of postgres, sqlite or memory.
	Driver string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`

	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ideaflow"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ideaflow"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"ideaflow.db"`

	// RunMigrations applies embedded migrations at startup.
	RunMigrations bool `yaml:"run_migrations" env:"DB_RUN_MIGRATIONS" env-default:"true"`
}

// LLMConfig configures one text-generation collaborator.
type LLMConfig struct {
	// Provider is openai (any OpenAI-compatible endpoint) or anthropic.
	Provider    string        `yaml:"provider" env:"PROVIDER" env-default:"openai"`
	BaseURL     string        `yaml:"base_url" env:"BASE_URL" env-default:""` // Provider default when empty
	Model       string        `yaml:"model" env:"MODEL" env-default:""`
	APIKey      string        `yaml:"-" env:"API_KEY"` // Secret - not in YAML
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE" env-default:"0.3"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS" env-default:"4096"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT" env-default:"2m"`
}

// PipelineConfig controls how detached stage tasks are scheduled.
type PipelineConfig struct {
	// MaxConcurrent caps how many stage tasks run at once across all ideas.
	MaxConcurrent int `yaml:"max_concurrent" env:"PIPELINE_MAX_CONCURRENT" env-default:"4"`
	// SerializePerIdea runs stage tasks for the same idea one at a time, in submission order.
	SerializePerIdea bool `yaml:"serialize_per_idea" env:"PIPELINE_SERIALIZE_PER_IDEA" env-default:"true"`
	// ShutdownTimeout bounds how long shutdown waits for in-flight tasks.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PIPELINE_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// CircuitBreakerConfig guards the generators against repeated failures.
type CircuitBreakerConfig struct {
	Threshold  int           `yaml:"threshold" env:"CIRCUIT_BREAKER_THRESHOLD" env-default:"5"`
	ResetAfter time.Duration `yaml:"reset_after" env:"CIRCUIT_BREAKER_RESET_AFTER" env-default:"30s"`
}

// MCPConfig toggles the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Load reads configuration from config.yaml with environment variable overrides.
// A .env file in the working directory is loaded first if present.
// When config.yaml does not exist, configuration comes from the environment alone.
func Load(version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Enrichment.BaseURL = ResolveURLForDocker(cfg.Enrichment.BaseURL)
	cfg.Evaluation.BaseURL = ResolveURLForDocker(cfg.Evaluation.BaseURL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks enumerated settings and required fields.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if err := c.Enrichment.validate("enrichment"); err != nil {
		return err
	}
	if err := c.Evaluation.validate("evaluation"); err != nil {
		return err
	}

	if c.Pipeline.MaxConcurrent < 1 {
		return fmt.Errorf("pipeline.max_concurrent must be at least 1, got %d", c.Pipeline.MaxConcurrent)
	}
	return nil
}

func (l *LLMConfig) validate(stage string) error {
	switch l.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("%s: unknown provider %q", stage, l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("%s: model is required", stage)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
