package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
	"github.com/ekaya-inc/ideaflow/pkg/database"
	"github.com/ekaya-inc/ideaflow/pkg/models"
)

const pgForeignKeyViolation = "23503"

type postgresIdeaRepository struct {
	db *database.DB
}

// NewPostgresIdeaRepository creates an IdeaRepository backed by PostgreSQL.
func NewPostgresIdeaRepository(db *database.DB) IdeaRepository {
	return &postgresIdeaRepository{db: db}
}

var _ IdeaRepository = (*postgresIdeaRepository)(nil)

// ============================================================================
// Ideas
// ============================================================================

func (r *postgresIdeaRepository) UpsertIdea(ctx context.Context, idea *models.Idea) error {
	query := `
		INSERT INTO ideas (id, raw_text, context, project_hint, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		idea.ID,
		idea.RawText,
		idea.Context,
		idea.ProjectHint,
		idea.Status,
		idea.CreatedAt,
		idea.UpdatedAt,
	).Scan(&idea.CreatedAt, &idea.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert idea: %w", err)
	}
	return nil
}

func (r *postgresIdeaRepository) GetIdea(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	query := `
		SELECT id, raw_text, context, project_hint, status, created_at, updated_at
		FROM ideas
		WHERE id = $1`

	idea, err := scanPostgresIdea(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idea: %w", err)
	}
	return idea, nil
}

func (r *postgresIdeaRepository) ListIdeas(ctx context.Context, filter models.IdeaFilter) ([]*models.Idea, error) {
	query := `
		SELECT id, raw_text, context, project_hint, status, created_at, updated_at
		FROM ideas
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, string(filter.Status), listLimit(filter), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	ideas := make([]*models.Idea, 0)
	for rows.Next() {
		idea, err := scanPostgresIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ideas: %w", err)
	}
	return ideas, nil
}

func scanPostgresIdea(row pgx.Row) (*models.Idea, error) {
	var idea models.Idea
	err := row.Scan(
		&idea.ID,
		&idea.RawText,
		&idea.Context,
		&idea.ProjectHint,
		&idea.Status,
		&idea.CreatedAt,
		&idea.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &idea, nil
}

// ============================================================================
// Stage records
// ============================================================================

func (r *postgresIdeaRepository) UpsertEnrichment(ctx context.Context, rec *models.EnrichmentRecord) error {
	query := `
		INSERT INTO idea_enrichments (
			idea_id, category, complexity_score, market_validation,
			technical_feasibility, resource_estimate, enriched_by, enriched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idea_id) DO UPDATE
		SET category = EXCLUDED.category,
		    complexity_score = EXCLUDED.complexity_score,
		    market_validation = EXCLUDED.market_validation,
		    technical_feasibility = EXCLUDED.technical_feasibility,
		    resource_estimate = EXCLUDED.resource_estimate,
		    enriched_by = EXCLUDED.enriched_by,
		    enriched_at = EXCLUDED.enriched_at`

	_, err := r.db.Exec(ctx, query,
		rec.IdeaID,
		rec.Category,
		rec.ComplexityScore,
		rec.MarketValidation,
		rec.TechnicalFeasibility,
		rec.ResourceEstimate,
		rec.EnrichedBy,
		rec.EnrichedAt,
	)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return fmt.Errorf("enrichment for unknown idea %s: %w", rec.IdeaID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to upsert enrichment: %w", err)
	}
	return nil
}

func (r *postgresIdeaRepository) GetEnrichment(ctx context.Context, ideaID uuid.UUID) (*models.EnrichmentRecord, error) {
	query := `
		SELECT idea_id, category, complexity_score, market_validation,
		       technical_feasibility, resource_estimate, enriched_by, enriched_at
		FROM idea_enrichments
		WHERE idea_id = $1`

	var rec models.EnrichmentRecord
	err := r.db.QueryRow(ctx, query, ideaID).Scan(
		&rec.IdeaID,
		&rec.Category,
		&rec.ComplexityScore,
		&rec.MarketValidation,
		&rec.TechnicalFeasibility,
		&rec.ResourceEstimate,
		&rec.EnrichedBy,
		&rec.EnrichedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}
	return &rec, nil
}

func (r *postgresIdeaRepository) UpsertEvaluation(ctx context.Context, rec *models.EvaluationRecord) error {
	query := `
		INSERT INTO idea_evaluations (
			idea_id, jtbd_analysis, disruption_score, capabilities_fit,
			recommendation, case_study_matches, evaluation_score, evaluated_by, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idea_id) DO UPDATE
		SET jtbd_analysis = EXCLUDED.jtbd_analysis,
		    disruption_score = EXCLUDED.disruption_score,
		    capabilities_fit = EXCLUDED.capabilities_fit,
		    recommendation = EXCLUDED.recommendation,
		    case_study_matches = EXCLUDED.case_study_matches,
		    evaluation_score = EXCLUDED.evaluation_score,
		    evaluated_by = EXCLUDED.evaluated_by,
		    evaluated_at = EXCLUDED.evaluated_at`

	_, err := r.db.Exec(ctx, query,
		rec.IdeaID,
		rec.JTBDAnalysis,
		rec.DisruptionScore,
		rec.CapabilitiesFit,
		rec.Recommendation,
		nonNil(rec.CaseStudyMatches),
		rec.EvaluationScore,
		rec.EvaluatedBy,
		rec.EvaluatedAt,
	)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return fmt.Errorf("idea %s has no enrichment: %w", rec.IdeaID, apperrors.ErrPrecondition)
		}
		return fmt.Errorf("failed to upsert evaluation: %w", err)
	}
	return nil
}

func (r *postgresIdeaRepository) GetEvaluation(ctx context.Context, ideaID uuid.UUID) (*models.EvaluationRecord, error) {
	query := `
		SELECT idea_id, jtbd_analysis, disruption_score, capabilities_fit,
		       recommendation, case_study_matches, evaluation_score, evaluated_by, evaluated_at
		FROM idea_evaluations
		WHERE idea_id = $1`

	var rec models.EvaluationRecord
	err := r.db.QueryRow(ctx, query, ideaID).Scan(
		&rec.IdeaID,
		&rec.JTBDAnalysis,
		&rec.DisruptionScore,
		&rec.CapabilitiesFit,
		&rec.Recommendation,
		&rec.CaseStudyMatches,
		&rec.EvaluationScore,
		&rec.EvaluatedBy,
		&rec.EvaluatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return &rec, nil
}

// ============================================================================
// Status and audit
// ============================================================================

func (r *postgresIdeaRepository) UpdateStatus(ctx context.Context, t *models.StatusTransition) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from models.IdeaStatus
	err = tx.QueryRow(ctx, `SELECT status FROM ideas WHERE id = $1 FOR UPDATE`, t.IdeaID).Scan(&from)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock idea: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE ideas SET status = $2, updated_at = $3 WHERE id = $1`,
		t.IdeaID, t.ToStatus, now,
	); err != nil {
		return fmt.Errorf("failed to update idea status: %w", err)
	}

	prepareTransition(t, from)
	t.CreatedAt = now
	if from != t.ToStatus {
		if _, err := tx.Exec(ctx, `
			INSERT INTO idea_status_transitions (id, idea_id, from_status, to_status, triggered_by, route_decision, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.IdeaID, t.FromStatus, t.ToStatus, t.Trigger, t.RouteDecision, t.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to record status transition: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}
	return nil
}

func (r *postgresIdeaRepository) ListTransitions(ctx context.Context, ideaID uuid.UUID) ([]*models.StatusTransition, error) {
	query := `
		SELECT id, idea_id, from_status, to_status, triggered_by, route_decision, created_at
		FROM idea_status_transitions
		WHERE idea_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, ideaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]*models.StatusTransition, 0)
	for rows.Next() {
		var t models.StatusTransition
		if err := rows.Scan(&t.ID, &t.IdeaID, &t.FromStatus, &t.ToStatus, &t.Trigger, &t.RouteDecision, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return transitions, nil
}

func (r *postgresIdeaRepository) CountByStatus(ctx context.Context) (map[models.IdeaStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM ideas GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count ideas: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.IdeaStatus]int)
	for rows.Next() {
		var status models.IdeaStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
