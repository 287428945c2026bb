// Package clickhouse holds the per-run stage timing repository used for
// latency dashboards.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reeltrip/reeltrip/internal/domain"
	"github.com/reeltrip/reeltrip/internal/pkg/database"
)

// StageSampleRepository persists stage duration samples in ClickHouse.
type StageSampleRepository struct {
	db *database.ClickHouseDB
}

// NewStageSampleRepository creates a stage sample repository.
func NewStageSampleRepository(db *database.ClickHouseDB) *StageSampleRepository {
	return &StageSampleRepository{db: db}
}

// CreateBatch inserts one run's stage samples in a single batch.
func (r *StageSampleRepository) CreateBatch(ctx context.Context, samples []domain.StageSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, `
		INSERT INTO stage_samples (run_id, stage, duration_ms, recorded_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, sample := range samples {
		recordedAt := sample.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now()
		}
		durationMs := sample.DurationMs
		if durationMs == 0 && sample.Duration > 0 {
			durationMs = float64(sample.Duration.Milliseconds())
		}
		if err := batch.Append(
			sample.RunID,
			sample.Stage,
			durationMs,
			recordedAt,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// ListByRun returns a run's stage samples in recording order.
func (r *StageSampleRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StageSample, error) {
	query := `
		SELECT run_id, stage, duration_ms, recorded_at
		FROM stage_samples
		WHERE run_id = ?
		ORDER BY recorded_at ASC
	`

	var samples []domain.StageSample
	if err := r.db.Select(ctx, &samples, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list stage samples: %w", err)
	}
	return samples, nil
}

// AverageDurations returns the mean duration per stage over a window,
// for the latency dashboard.
func (r *StageSampleRepository) AverageDurations(ctx context.Context, since time.Time) (map[string]float64, error) {
	query := `
		SELECT stage, avg(duration_ms) AS avg_ms
		FROM stage_samples
		WHERE recorded_at >= ?
		GROUP BY stage
	`

	rows, err := r.db.Conn.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage averages: %w", err)
	}
	defer rows.Close()

	averages := make(map[string]float64)
	for rows.Next() {
		var stage string
		var avgMs float64
		if err := rows.Scan(&stage, &avgMs); err != nil {
			return nil, fmt.Errorf("failed to scan stage average: %w", err)
		}
		averages[stage] = avgMs
	}
	return averages, nil
}
