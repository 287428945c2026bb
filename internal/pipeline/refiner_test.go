package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
)

// scriptedRefiner returns one scripted candidate per call, in call order.
type scriptedRefiner struct {
	calls   int
	results []func() (domain.MergedEstimate, error)
}

func (s *scriptedRefiner) Refine(_ context.Context, _ domain.MergedEstimate, _ string) (domain.MergedEstimate, error) {
	r := s.results[s.calls%len(s.results)]
	s.calls++
	return r()
}

func candidate(city, country string, confidence float64) func() (domain.MergedEstimate, error) {
	return func() (domain.MergedEstimate, error) {
		return domain.MergedEstimate{City: city, Country: country, AggregateConfidence: confidence}, nil
	}
}

func refineFail(msg string) func() (domain.MergedEstimate, error) {
	return func() (domain.MergedEstimate, error) {
		return domain.MergedEstimate{}, errors.New(msg)
	}
}

func merged(city, country string, confidence float64) domain.MergedEstimate {
	return domain.MergedEstimate{City: city, Country: country, AggregateConfidence: confidence}
}

func TestLoopInitialEstimateAlreadyConverged(t *testing.T) {
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		refineFail("must not be called"),
	}}
	loop := NewLoop(refiner, 0.85, 3, metrics.NewRecorder(), zap.NewNop())

	state := loop.Run(context.Background(), merged("Lisbon", "Portugal", 0.9), "")

	assert.Equal(t, domain.RefinementConverged, state.Status)
	assert.Equal(t, 0, state.Iteration)
	assert.Len(t, state.History, 1)
	assert.Equal(t, 0, refiner.calls)
}

func TestLoopConvergesOnThreshold(t *testing.T) {
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		candidate("Lisbon", "Portugal", 0.6),
		candidate("Lisbon", "Portugal", 0.9),
	}}
	loop := NewLoop(refiner, 0.85, 3, metrics.NewRecorder(), zap.NewNop())

	state := loop.Run(context.Background(), merged("Porto", "Portugal", 0.4), "")

	assert.Equal(t, domain.RefinementConverged, state.Status)
	assert.Equal(t, 2, state.Iteration)
	assert.Len(t, state.History, 3)
	assert.Equal(t, 0.9, state.Current.AggregateConfidence)
}

func TestLoopConvergesOnStability(t *testing.T) {
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		candidate("Lisbon", "Portugal", 0.5),
		candidate("Lisbon", "Portugal", 0.55),
	}}
	loop := NewLoop(refiner, 0.85, 5, metrics.NewRecorder(), zap.NewNop())

	state := loop.Run(context.Background(), merged("Porto", "Portugal", 0.4), "")

	// Second candidate names the same location as the first, so the loop
	// stops on stability even though confidence stays below threshold.
	assert.Equal(t, domain.RefinementConverged, state.Status)
	assert.Equal(t, 2, state.Iteration)
	assert.Equal(t, "Lisbon", state.Current.City)
}

func TestLoopExhaustsIterationBudget(t *testing.T) {
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		candidate("Lisbon", "Portugal", 0.5),
		candidate("Porto", "Portugal", 0.6),
		candidate("Faro", "Portugal", 0.7),
	}}
	loop := NewLoop(refiner, 0.95, 3, metrics.NewRecorder(), zap.NewNop())

	state := loop.Run(context.Background(), merged("Braga", "Portugal", 0.3), "")

	// Running out of iterations is not an error; the last candidate is
	// returned flagged unconverged.
	assert.Equal(t, domain.RefinementExhausted, state.Status)
	assert.False(t, state.Converged())
	assert.Equal(t, 3, state.Iteration)
	assert.Equal(t, "Faro", state.Current.City)
	assert.Len(t, state.History, 4)
}

func TestLoopRetriesOnceThenContinues(t *testing.T) {
	recorder := metrics.NewRecorder()
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		refineFail("transient"),
		candidate("Lisbon", "Portugal", 0.9),
	}}
	loop := NewLoop(refiner, 0.85, 3, recorder, zap.NewNop())

	state := loop.Run(context.Background(), merged("Porto", "Portugal", 0.4), "")

	assert.Equal(t, domain.RefinementConverged, state.Status)
	assert.Equal(t, 1, state.Iteration)
	assert.Equal(t, 2, refiner.calls)

	snap := recorder.Snapshot()
	assert.EqualValues(t, 1, snap[apperrors.StageRefinement].CustomCounters["refine_retry"])
}

func TestLoopSecondConsecutiveFailureExhausts(t *testing.T) {
	recorder := metrics.NewRecorder()
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		refineFail("down"),
	}}
	loop := NewLoop(refiner, 0.85, 3, recorder, zap.NewNop())

	initial := merged("Porto", "Portugal", 0.4)
	state := loop.Run(context.Background(), initial, "")

	// The loop degrades instead of failing: last good estimate survives.
	assert.Equal(t, domain.RefinementExhausted, state.Status)
	assert.Equal(t, initial, state.Current)
	assert.Equal(t, 2, refiner.calls)

	snap := recorder.Snapshot()
	assert.EqualValues(t, 1, snap[apperrors.StageRefinement].CustomCounters["refine_failure"])
}

func TestLoopZeroMaxIterations(t *testing.T) {
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		refineFail("must not be called"),
	}}
	loop := NewLoop(refiner, 0.95, 0, metrics.NewRecorder(), zap.NewNop())

	state := loop.Run(context.Background(), merged("Porto", "Portugal", 0.4), "")

	assert.Equal(t, domain.RefinementExhausted, state.Status)
	assert.Equal(t, 0, state.Iteration)
	assert.Equal(t, 0, refiner.calls)
}

func TestLoopHistoryIsAppendOnly(t *testing.T) {
	refiner := &scriptedRefiner{results: []func() (domain.MergedEstimate, error){
		candidate("Lisbon", "Portugal", 0.5),
		candidate("Porto", "Portugal", 0.6),
	}}
	loop := NewLoop(refiner, 0.99, 2, metrics.NewRecorder(), zap.NewNop())

	initial := merged("Braga", "Portugal", 0.3)
	state := loop.Run(context.Background(), initial, "")

	require.Len(t, state.History, 3)
	assert.Equal(t, initial, state.History[0])
	assert.Equal(t, "Lisbon", state.History[1].City)
	assert.Equal(t, "Porto", state.History[2].City)
	assert.Equal(t, state.History[2], state.Current)
}
