package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an itinerary run.
type RunStatus string

const (
	// RunStatusQueued means the run is enqueued and not yet picked up.
	RunStatusQueued RunStatus = "queued"
	// RunStatusRunning means the pipeline is executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted means the pipeline produced a result.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed means a pipeline stage failed.
	RunStatusFailed RunStatus = "failed"
)

// ItineraryResult is the terminal output of one pipeline run: the final
// location estimate, the places found for it and the composed itinerary.
// Unconverged flags a best-effort estimate from an exhausted refinement
// loop so downstream consumers can treat it with caution.
type ItineraryResult struct {
	RunID       uuid.UUID      `json:"runId"`
	Estimate    MergedEstimate `json:"estimate"`
	Places      []Place        `json:"places"`
	Itinerary   Itinerary      `json:"itinerary"`
	Unconverged bool           `json:"unconverged"`
	Iterations  int            `json:"iterations"`
}

// Run is the persisted record of one itinerary run, kept for audit and
// polling of queued runs.
type Run struct {
	ID                  uuid.UUID  `json:"id"`
	SessionID           string     `json:"sessionId"`
	VideoKey            string     `json:"videoKey"`
	Days                int        `json:"days"`
	Status              RunStatus  `json:"status"`
	ErrorStage          string     `json:"errorStage,omitempty"`
	ErrorMessage        string     `json:"errorMessage,omitempty"`
	City                string     `json:"city,omitempty"`
	Country             string     `json:"country,omitempty"`
	Region              string     `json:"region,omitempty"`
	AggregateConfidence float64    `json:"aggregateConfidence,omitempty"`
	Unconverged         bool       `json:"unconverged"`
	Iterations          int        `json:"iterations"`
	ItineraryMarkdown   string     `json:"itineraryMarkdown,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
}

// RunList is a page of runs.
type RunList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	HasMore    bool  `json:"hasMore"`
}

// StageSample is one recorded stage timing for a run, persisted to
// ClickHouse for dashboards.
type StageSample struct {
	RunID      uuid.UUID     `json:"runId" ch:"run_id"`
	Stage      string        `json:"stage" ch:"stage"`
	Duration   time.Duration `json:"duration" ch:"-"`
	DurationMs float64       `json:"durationMs" ch:"duration_ms"`
	RecordedAt time.Time     `json:"recordedAt" ch:"recorded_at"`
}
