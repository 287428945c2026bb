package pipeline

import (
	"context"

	"github.com/reeltrip/reeltrip/internal/domain"
)

// Estimator produces one location guess with confidence from the full
// frame set. The pool calls it N times concurrently per run.
type Estimator interface {
	Estimate(ctx context.Context, frames []domain.Frame, memoryContext string) (domain.LocationEstimate, error)
}

// Refiner re-evaluates a merged estimate against session context and
// returns a new candidate. Called sequentially, once per loop iteration.
type Refiner interface {
	Refine(ctx context.Context, current domain.MergedEstimate, memoryContext string) (domain.MergedEstimate, error)
}

// PlaceProvider looks up points of interest for a located city.
type PlaceProvider interface {
	LookupPlaces(ctx context.Context, city, country string) ([]domain.Place, error)
}

// Composer writes the final itinerary from the located estimate and the
// places found for it.
type Composer interface {
	Compose(ctx context.Context, estimate domain.MergedEstimate, places []domain.Place, memoryContext string, days int) (domain.Itinerary, error)
}

// ProgressPublisher receives stage progress notifications during a run.
// Implementations must not block; publishing is best-effort.
type ProgressPublisher interface {
	PublishStage(runID, stage, status string)
}
