package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
)

// Loop is the iterative refinement state machine. Each iteration asks the
// refiner for a new candidate from the current estimate plus session
// context, then evaluates the stopping condition: aggregate confidence at
// or above the threshold, or a candidate identical in (city, country,
// region) to its predecessor. Running out of iterations is not an error;
// the last candidate is returned flagged unconverged.
type Loop struct {
	refiner   Refiner
	threshold float64
	maxIters  int
	recorder  *metrics.Recorder
	logger    *zap.Logger
}

// NewLoop creates a refinement loop with the given convergence threshold
// and iteration budget.
func NewLoop(refiner Refiner, threshold float64, maxIters int, recorder *metrics.Recorder, logger *zap.Logger) *Loop {
	return &Loop{
		refiner:   refiner,
		threshold: threshold,
		maxIters:  maxIters,
		recorder:  recorder,
		logger:    logger,
	}
}

// Run refines the initial estimate until convergence or exhaustion. The
// returned state carries the full append-only history; the final estimate
// is state.Current. Refinement call failures are retried once; a second
// consecutive failure degrades the loop to EXHAUSTED with the last good
// estimate rather than failing the run.
func (l *Loop) Run(ctx context.Context, initial domain.MergedEstimate, memoryContext string) *domain.RefinementState {
	start := time.Now()
	defer func() {
		l.recorder.RecordDuration(apperrors.StageRefinement, time.Since(start))
	}()

	state := &domain.RefinementState{
		Iteration: 0,
		Current:   initial,
		History:   []domain.MergedEstimate{initial},
		Status:    domain.RefinementRunning,
	}

	l.logger.Info("starting refinement loop",
		zap.Float64("threshold", l.threshold),
		zap.Int("max_iterations", l.maxIters),
		zap.Float64("initial_confidence", initial.AggregateConfidence),
	)

	// The initial estimate may already satisfy the confidence cutoff.
	if initial.AggregateConfidence >= l.threshold {
		state.Status = domain.RefinementConverged
		l.logger.Info("initial estimate already above threshold")
		return l.finish(state)
	}

	for state.Iteration < l.maxIters {
		candidate, err := l.refineOnce(ctx, state.Current, memoryContext)
		if err != nil {
			l.logger.Warn("refinement call failed twice, stopping loop",
				zap.Int("iteration", state.Iteration),
				zap.Error(err),
			)
			l.recorder.Increment(apperrors.StageRefinement, "refine_failure", 1)
			state.Status = domain.RefinementExhausted
			return l.finish(state)
		}

		previous := state.Current
		state.History = append(state.History, candidate)
		state.Current = candidate
		state.Iteration++
		l.recorder.Increment(apperrors.StageRefinement, "iterations", 1)

		l.logger.Info("refinement iteration completed",
			zap.Int("iteration", state.Iteration),
			zap.Float64("confidence", candidate.AggregateConfidence),
		)

		if candidate.AggregateConfidence >= l.threshold {
			l.logger.Info("confidence threshold met, converged")
			state.Status = domain.RefinementConverged
			return l.finish(state)
		}
		if candidate.SameLocation(previous) {
			l.logger.Info("estimate stable across iterations, converged")
			state.Status = domain.RefinementConverged
			return l.finish(state)
		}
	}

	l.logger.Info("iteration budget exhausted, returning best-effort estimate",
		zap.Int("iterations", state.Iteration),
	)
	state.Status = domain.RefinementExhausted
	return l.finish(state)
}

// refineOnce calls the refiner, retrying once on failure with identical
// inputs.
func (l *Loop) refineOnce(ctx context.Context, current domain.MergedEstimate, memoryContext string) (domain.MergedEstimate, error) {
	candidate, err := l.refiner.Refine(ctx, current, memoryContext)
	if err == nil {
		return candidate, nil
	}
	l.logger.Warn("refinement call failed, retrying once", zap.Error(err))
	l.recorder.Increment(apperrors.StageRefinement, "refine_retry", 1)
	return l.refiner.Refine(ctx, current, memoryContext)
}

func (l *Loop) finish(state *domain.RefinementState) *domain.RefinementState {
	metrics.RecordRefinementIterations(state.Iteration)
	return state
}
