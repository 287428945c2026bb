package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
)

// Pool fans the same frame set out to N independent estimator calls and
// joins on all of them. Completion is a join barrier: every call has
// either returned or failed before the pool reports back. The pool
// tolerates up to N-1 failures; only an all-failed pool fails the run.
type Pool struct {
	size      int
	estimator Estimator
	recorder  *metrics.Recorder
	logger    *zap.Logger
}

// NewPool creates an estimator pool of the given size.
func NewPool(size int, estimator Estimator, recorder *metrics.Recorder, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:      size,
		estimator: estimator,
		recorder:  recorder,
		logger:    logger,
	}
}

type poolResult struct {
	estimate domain.LocationEstimate
	err      error
}

// Run executes all estimator calls concurrently and collects their
// results. If ctx expires during the join, outstanding calls are
// abandoned and the pool proceeds with whatever arrived, subject to the
// all-failed rule.
func (p *Pool) Run(ctx context.Context, frames []domain.Frame, memoryContext string) ([]domain.LocationEstimate, error) {
	start := time.Now()
	defer func() {
		p.recorder.RecordDuration(apperrors.StageEstimation, time.Since(start))
	}()

	p.logger.Info("starting estimator pool",
		zap.Int("pool_size", p.size),
		zap.Int("frames", len(frames)),
	)

	// Buffered so abandoned goroutines never block on send.
	results := make(chan poolResult, p.size)
	for i := 0; i < p.size; i++ {
		sourceID := fmt.Sprintf("estimator-%d", i)
		go func() {
			results <- poolResult{estimate: p.callOne(ctx, sourceID, frames, memoryContext)}
		}()
	}

	estimates := make([]domain.LocationEstimate, 0, p.size)
	var failures int
	deadline := ctx.Done()

join:
	for received := 0; received < p.size; received++ {
		select {
		case r := <-results:
			if r.estimate.Valid() {
				estimates = append(estimates, r.estimate)
			} else {
				failures++
			}
		case <-deadline:
			p.logger.Warn("deadline hit during pool join, abandoning outstanding estimators",
				zap.Int("received", received),
				zap.Int("outstanding", p.size-received),
			)
			break join
		}
	}

	p.logger.Info("estimator pool completed",
		zap.Int("successes", len(estimates)),
		zap.Int("failures", failures),
	)

	if len(estimates) == 0 {
		return nil, apperrors.ErrAllEstimatorsFailed
	}
	return estimates, nil
}

// callOne runs a single estimator and absorbs its failure into metrics.
// An invalid estimate (zero value) signals failure to the collector.
func (p *Pool) callOne(ctx context.Context, sourceID string, frames []domain.Frame, memoryContext string) domain.LocationEstimate {
	estimate, err := p.estimator.Estimate(ctx, frames, memoryContext)
	if err == nil && !estimate.Valid() {
		err = fmt.Errorf("estimate failed validation: city=%q country=%q confidence=%v",
			estimate.City, estimate.Country, estimate.Confidence)
	}
	if err != nil {
		estErr := &apperrors.EstimationError{SourceID: sourceID, Err: err}
		p.logger.Warn("estimator call failed", zap.String("source_id", sourceID), zap.Error(estErr))
		p.recorder.Increment(apperrors.StageEstimation, "estimator_failure", 1)
		metrics.RecordEstimatorCall("failure")
		return domain.LocationEstimate{}
	}

	estimate.SourceID = sourceID
	p.recorder.Increment(apperrors.StageEstimation, "estimator_success", 1)
	metrics.RecordEstimatorCall("success")
	return estimate
}
