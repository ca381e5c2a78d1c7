package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ideaflow/pkg/apperrors"
	"github.com/ekaya-inc/ideaflow/pkg/database"
	"github.com/ekaya-inc/ideaflow/pkg/models"
)

type sqliteIdeaRepository struct {
	db *sql.DB
}

// NewSQLiteIdeaRepository creates an IdeaRepository backed by a SQLite
// database opened with database.OpenSQLite.
func NewSQLiteIdeaRepository(db *sql.DB) IdeaRepository {
	return &sqliteIdeaRepository{db: db}
}

var _ IdeaRepository = (*sqliteIdeaRepository)(nil)

// Fixed-width so lexical ORDER BY matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ============================================================================
// Ideas
// ============================================================================

func (r *sqliteIdeaRepository) UpsertIdea(ctx context.Context, idea *models.Idea) error {
	return database.RetryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO ideas (id, raw_text, context, project_hint, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE
			SET status = excluded.status, updated_at = excluded.updated_at`,
			idea.ID.String(),
			idea.RawText,
			idea.Context,
			idea.ProjectHint,
			string(idea.Status),
			formatTime(idea.CreatedAt),
			formatTime(idea.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert idea: %w", err)
		}
		return nil
	})
}

func (r *sqliteIdeaRepository) GetIdea(ctx context.Context, id uuid.UUID) (*models.Idea, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, raw_text, context, project_hint, status, created_at, updated_at
		FROM ideas WHERE id = ?`, id.String())

	idea, err := scanSQLiteIdea(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idea: %w", err)
	}
	return idea, nil
}

func (r *sqliteIdeaRepository) ListIdeas(ctx context.Context, filter models.IdeaFilter) ([]*models.Idea, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, raw_text, context, project_hint, status, created_at, updated_at
		FROM ideas
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`,
		string(filter.Status), string(filter.Status), listLimit(filter), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	ideas := make([]*models.Idea, 0)
	for rows.Next() {
		idea, err := scanSQLiteIdea(rows)
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

func scanSQLiteIdea(row rowScanner) (*models.Idea, error) {
	var idea models.Idea
	var id, status, createdAt, updatedAt string
	if err := row.Scan(&id, &idea.RawText, &idea.Context, &idea.ProjectHint, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if idea.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid idea id %q: %w", id, err)
	}
	idea.Status = models.IdeaStatus(status)
	if idea.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if idea.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}
	return &idea, nil
}

// ============================================================================
// Stage records
// ============================================================================

func (r *sqliteIdeaRepository) UpsertEnrichment(ctx context.Context, rec *models.EnrichmentRecord) error {
	market, err := json.Marshal(rec.MarketValidation)
	if err != nil {
		return fmt.Errorf("marshal market validation: %w", err)
	}
	feasibility, err := json.Marshal(rec.TechnicalFeasibility)
	if err != nil {
		return fmt.Errorf("marshal technical feasibility: %w", err)
	}
	estimate, err := json.Marshal(rec.ResourceEstimate)
	if err != nil {
		return fmt.Errorf("marshal resource estimate: %w", err)
	}

	return database.RetryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO idea_enrichments (
				idea_id, category, complexity_score, market_validation,
				technical_feasibility, resource_estimate, enriched_by, enriched_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (idea_id) DO UPDATE
			SET category = excluded.category,
			    complexity_score = excluded.complexity_score,
			    market_validation = excluded.market_validation,
			    technical_feasibility = excluded.technical_feasibility,
			    resource_estimate = excluded.resource_estimate,
			    enriched_by = excluded.enriched_by,
			    enriched_at = excluded.enriched_at`,
			rec.IdeaID.String(),
			string(rec.Category),
			rec.ComplexityScore,
			string(market),
			string(feasibility),
			string(estimate),
			rec.EnrichedBy,
			formatTime(rec.EnrichedAt),
		)
		if err != nil {
			if isSQLiteForeignKeyViolation(err) {
				return fmt.Errorf("enrichment for unknown idea %s: %w", rec.IdeaID, apperrors.ErrNotFound)
			}
			return fmt.Errorf("failed to upsert enrichment: %w", err)
		}
		return nil
	})
}

func (r *sqliteIdeaRepository) GetEnrichment(ctx context.Context, ideaID uuid.UUID) (*models.EnrichmentRecord, error) {
	var rec models.EnrichmentRecord
	var category, enrichedAt, market, feasibility, estimate string
	err := r.db.QueryRowContext(ctx, `
		SELECT category, complexity_score, market_validation,
		       technical_feasibility, resource_estimate, enriched_by, enriched_at
		FROM idea_enrichments WHERE idea_id = ?`, ideaID.String(),
	).Scan(&category, &rec.ComplexityScore, &market, &feasibility, &estimate, &rec.EnrichedBy, &enrichedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get enrichment: %w", err)
	}

	rec.IdeaID = ideaID
	rec.Category = models.IdeaCategory(category)
	if err := json.Unmarshal([]byte(market), &rec.MarketValidation); err != nil {
		return nil, fmt.Errorf("decode market validation: %w", err)
	}
	if err := json.Unmarshal([]byte(feasibility), &rec.TechnicalFeasibility); err != nil {
		return nil, fmt.Errorf("decode technical feasibility: %w", err)
	}
	if err := json.Unmarshal([]byte(estimate), &rec.ResourceEstimate); err != nil {
		return nil, fmt.Errorf("decode resource estimate: %w", err)
	}
	if rec.EnrichedAt, err = parseTime(enrichedAt); err != nil {
		return nil, fmt.Errorf("invalid enriched_at: %w", err)
	}
	return &rec, nil
}

func (r *sqliteIdeaRepository) UpsertEvaluation(ctx context.Context, rec *models.EvaluationRecord) error {
	matches, err := json.Marshal(nonNil(rec.CaseStudyMatches))
	if err != nil {
		return fmt.Errorf("marshal case study matches: %w", err)
	}

	return database.RetryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO idea_evaluations (
				idea_id, jtbd_analysis, disruption_score, capabilities_fit,
				recommendation, case_study_matches, evaluation_score, evaluated_by, evaluated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (idea_id) DO UPDATE
			SET jtbd_analysis = excluded.jtbd_analysis,
			    disruption_score = excluded.disruption_score,
			    capabilities_fit = excluded.capabilities_fit,
			    recommendation = excluded.recommendation,
			    case_study_matches = excluded.case_study_matches,
			    evaluation_score = excluded.evaluation_score,
			    evaluated_by = excluded.evaluated_by,
			    evaluated_at = excluded.evaluated_at`,
			rec.IdeaID.String(),
			rec.JTBDAnalysis,
			rec.DisruptionScore,
			string(rec.CapabilitiesFit),
			string(rec.Recommendation),
			string(matches),
			rec.EvaluationScore,
			rec.EvaluatedBy,
			formatTime(rec.EvaluatedAt),
		)
		if err != nil {
			if isSQLiteForeignKeyViolation(err) {
				return fmt.Errorf("idea %s has no enrichment: %w", rec.IdeaID, apperrors.ErrPrecondition)
			}
			return fmt.Errorf("failed to upsert evaluation: %w", err)
		}
		return nil
	})
}

func (r *sqliteIdeaRepository) GetEvaluation(ctx context.Context, ideaID uuid.UUID) (*models.EvaluationRecord, error) {
	var rec models.EvaluationRecord
	var fit, recommendation, matches, evaluatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT jtbd_analysis, disruption_score, capabilities_fit, recommendation,
		       case_study_matches, evaluation_score, evaluated_by, evaluated_at
		FROM idea_evaluations WHERE idea_id = ?`, ideaID.String(),
	).Scan(&rec.JTBDAnalysis, &rec.DisruptionScore, &fit, &recommendation, &matches, &rec.EvaluationScore, &rec.EvaluatedBy, &evaluatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	rec.IdeaID = ideaID
	rec.CapabilitiesFit = models.CapabilitiesFit(fit)
	rec.Recommendation = models.Recommendation(recommendation)
	if err := json.Unmarshal([]byte(matches), &rec.CaseStudyMatches); err != nil {
		return nil, fmt.Errorf("decode case study matches: %w", err)
	}
	if rec.EvaluatedAt, err = parseTime(evaluatedAt); err != nil {
		return nil, fmt.Errorf("invalid evaluated_at: %w", err)
	}
	return &rec, nil
}

// ============================================================================
// Status and audit
// ============================================================================

func (r *sqliteIdeaRepository) UpdateStatus(ctx context.Context, t *models.StatusTransition) error {
	return database.RetryOnBusy(ctx, func() error {
		return r.updateStatusTx(ctx, t)
	})
}

func (r *sqliteIdeaRepository) updateStatusTx(ctx context.Context, t *models.StatusTransition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var from string
	err = tx.QueryRowContext(ctx, `SELECT status FROM ideas WHERE id = ?`, t.IdeaID.String()).Scan(&from)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to read idea status: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE ideas SET status = ?, updated_at = ? WHERE id = ?`,
		string(t.ToStatus), formatTime(now), t.IdeaID.String(),
	); err != nil {
		return fmt.Errorf("failed to update idea status: %w", err)
	}

	prepareTransition(t, models.IdeaStatus(from))
	t.CreatedAt = now
	if t.FromStatus != t.ToStatus {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO idea_status_transitions (id, idea_id, from_status, to_status, triggered_by, route_decision, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID.String(), t.IdeaID.String(), string(t.FromStatus), string(t.ToStatus),
			string(t.Trigger), t.RouteDecision, formatTime(t.CreatedAt),
		); err != nil {
			return fmt.Errorf("failed to record status transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}
	return nil
}

func (r *sqliteIdeaRepository) ListTransitions(ctx context.Context, ideaID uuid.UUID) ([]*models.StatusTransition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_status, to_status, triggered_by, route_decision, created_at
		FROM idea_status_transitions
		WHERE idea_id = ?
		ORDER BY created_at, rowid`, ideaID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	transitions := make([]*models.StatusTransition, 0)
	for rows.Next() {
		var t models.StatusTransition
		var id, from, to, trigger, at string
		if err := rows.Scan(&id, &from, &to, &trigger, &t.RouteDecision, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid transition id %q: %w", id, err)
		}
		if t.CreatedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("invalid transition created_at: %w", err)
		}
		t.IdeaID = ideaID
		t.FromStatus = models.IdeaStatus(from)
		t.ToStatus = models.IdeaStatus(to)
		t.Trigger = models.TransitionTrigger(trigger)
		transitions = append(transitions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}
	return transitions, nil
}

func (r *sqliteIdeaRepository) CountByStatus(ctx context.Context) (map[models.IdeaStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM ideas GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count ideas: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.IdeaStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.IdeaStatus(status)] = n
	}
	return counts, rows.Err()
}

func isSQLiteForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
