package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ideaflow/migrations"
	"github.com/ekaya-inc/ideaflow/pkg/config"
	"github.com/ekaya-inc/ideaflow/pkg/database"
	"github.com/ekaya-inc/ideaflow/pkg/handlers"
	"github.com/ekaya-inc/ideaflow/pkg/llm"
	"github.com/ekaya-inc/ideaflow/pkg/logging"
	"github.com/ekaya-inc/ideaflow/pkg/mcp"
	"github.com/ekaya-inc/ideaflow/pkg/middleware"
	"github.com/ekaya-inc/ideaflow/pkg/prompts"
	"github.com/ekaya-inc/ideaflow/pkg/repositories"
	"github.com/ekaya-inc/ideaflow/pkg/services"
	"github.com/ekaya-inc/ideaflow/pkg/services/workqueue"
	"github.com/ekaya-inc/ideaflow/pkg/stages"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ideaflow exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Env),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("enrichment_provider", cfg.Enrichment.Provider),
		zap.String("enrichment_model", cfg.Enrichment.Model),
		zap.String("evaluation_provider", cfg.Evaluation.Provider),
		zap.String("evaluation_model", cfg.Evaluation.Model),
		zap.Int("max_concurrent", cfg.Pipeline.MaxConcurrent),
		zap.Bool("serialize_per_idea", cfg.Pipeline.SerializePerIdea))

	repo, dbPinger, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	enricher, evaluator, err := newExecutors(cfg, logger)
	if err != nil {
		return err
	}

	queue := newQueue(cfg.Pipeline, logger)
	ideaService := services.NewIdeaService(repo, enricher, evaluator, queue, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, dbPinger, logger).RegisterRoutes(mux)
	handlers.NewIdeasHandler(ideaService, logger).RegisterRoutes(mux)

	if cfg.MCP.Enabled {
		mux.Handle("/mcp", mcp.NewServer(cfg.Version, ideaService, logger).Handler())
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting ideaflow", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first so no new stage tasks are scheduled.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
		}
		if err := queue.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Stage tasks still running at shutdown", zap.Error(err))
		}
		logger.Info("Shutdown complete", zap.Any("tasks", queue.Progress()))
		return nil
	})

	return g.Wait()
}

// openStore opens the configured record store and applies migrations.
// The returned pinger is nil for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.IdeaRepository, handlers.Pinger, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory store; ideas are lost on restart")
		return repositories.NewMemoryIdeaRepository(), nil, func() {}, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		if cfg.Database.RunMigrations {
			migrationDB, err := database.OpenSQLite(ctx, cfg.Database.SQLitePath, logger)
			if err != nil {
				db.Close()
				return nil, nil, nil, fmt.Errorf("failed to open sqlite store for migrations: %w", err)
			}
			if err := database.RunMigrations(migrationDB, config.DriverSQLite, migrations.FS, logger); err != nil {
				db.Close()
				return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		pinger := handlers.PingFunc(db.PingContext)
		return repositories.NewSQLiteIdeaRepository(db), pinger, func() { db.Close() }, nil

	default:
		connStr := cfg.Database.ConnectionString()
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: cfg.Database.MaxConnections,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to %s: %w",
				logging.SanitizeConnectionString(connStr), err)
		}
		if cfg.Database.RunMigrations {
			if err := database.RunMigrations(db.SQLDB(), config.DriverPostgres, migrations.FS, logger); err != nil {
				db.Close()
				return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return repositories.NewPostgresIdeaRepository(db), db, db.Close, nil
	}
}

// newExecutors builds one generator client per stage and wraps each in its
// stage executor.
func newExecutors(cfg *config.Config, logger *zap.Logger) (stages.EnrichmentExecutor, stages.EvaluationExecutor, error) {
	systemPrompts, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	enrichmentClient, err := llm.NewClientFromConfig(stages.StageEnrichment, cfg.Enrichment, cfg.CircuitBreaker, logger)
	if err != nil {
		return nil, nil, err
	}
	evaluationClient, err := llm.NewClientFromConfig(stages.StageEvaluation, cfg.Evaluation, cfg.CircuitBreaker, logger)
	if err != nil {
		return nil, nil, err
	}

	enricher := stages.NewLLMEnrichmentExecutor(enrichmentClient, stages.ExecutorConfig{
		SystemPrompt: systemPrompts.Enrichment,
		Temperature:  cfg.Enrichment.Temperature,
	}, logger)
	evaluator := stages.NewLLMEvaluationExecutor(evaluationClient, stages.ExecutorConfig{
		SystemPrompt: systemPrompts.Evaluation,
		Temperature:  cfg.Evaluation.Temperature,
	}, logger)

	return enricher, evaluator, nil
}

func newQueue(cfg config.PipelineConfig, logger *zap.Logger) *workqueue.Queue {
	var strategy workqueue.ConcurrencyStrategy = workqueue.NewThrottledStrategy(cfg.MaxConcurrent)
	if cfg.SerializePerIdea {
		strategy = workqueue.NewKeyedStrategy(strategy)
	}
	return workqueue.New(logger, workqueue.WithStrategy(strategy))
}
