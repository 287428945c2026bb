// Package postgres holds the run history repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/pkg/database"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
)

// RunRepository persists itinerary runs in PostgreSQL.
type RunRepository struct {
	db *database.PostgresDB
}

// NewRunRepository creates a run repository.
func NewRunRepository(db *database.PostgresDB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, session_id, video_key, days, status, error_stage, error_message,
	city, country, region, aggregate_confidence, unconverged, iterations,
	itinerary_markdown, created_at, updated_at, completed_at`

// Create inserts a new run record.
func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, session_id, video_key, days, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now()
	run.CreatedAt = now
	run.UpdatedAt = now
	_, err := r.db.Pool.Exec(ctx, query,
		run.ID,
		run.SessionID,
		run.VideoKey,
		run.Days,
		run.Status,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// MarkRunning flips a run to the running state.
func (r *RunRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE runs SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, domain.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("run")
	}
	return nil
}

// SaveResult records a completed run's outcome.
func (r *RunRepository) SaveResult(ctx context.Context, id uuid.UUID, result *domain.ItineraryResult) error {
	query := `
		UPDATE runs
		SET status = $2, city = $3, country = $4, region = $5,
			aggregate_confidence = $6, unconverged = $7, iterations = $8,
			itinerary_markdown = $9, updated_at = NOW(), completed_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		id,
		domain.RunStatusCompleted,
		result.Estimate.City,
		result.Estimate.Country,
		result.Estimate.Region,
		result.Estimate.AggregateConfidence,
		result.Unconverged,
		result.Iterations,
		result.Itinerary.Markdown,
	)
	if err != nil {
		return fmt.Errorf("failed to save run result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("run")
	}
	return nil
}

// MarkFailed records a failed run with the failing stage and message.
func (r *RunRepository) MarkFailed(ctx context.Context, id uuid.UUID, stage, message string) error {
	query := `
		UPDATE runs
		SET status = $2, error_stage = $3, error_message = $4,
			updated_at = NOW(), completed_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, domain.RunStatusFailed, stage, message)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("run")
	}
	return nil
}

// GetByID retrieves one run.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("run")
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListBySession returns a page of a session's runs, newest first.
func (r *RunRepository) ListBySession(ctx context.Context, sessionID string, limit, offset int) (*domain.RunList, error) {
	if limit < 1 {
		limit = 20
	}

	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit+1, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	hasMore := len(runs) > limit
	if hasMore {
		runs = runs[:limit]
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM runs WHERE session_id = $1`
	if err := r.db.Pool.QueryRow(ctx, countQuery, sessionID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	return &domain.RunList{Runs: runs, TotalCount: total, HasMore: hasMore}, nil
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID,
		&run.SessionID,
		&run.VideoKey,
		&run.Days,
		&run.Status,
		&run.ErrorStage,
		&run.ErrorMessage,
		&run.City,
		&run.Country,
		&run.Region,
		&run.AggregateConfidence,
		&run.Unconverged,
		&run.Iterations,
		&run.ItineraryMarkdown,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
