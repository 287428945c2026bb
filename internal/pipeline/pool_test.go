package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reeltrip/reeltrip/internal/domain"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
	"github.com/reeltrip/reeltrip/internal/pkg/metrics"
)

// scriptedEstimator returns one scripted result per call, in call order.
type scriptedEstimator struct {
	calls   atomic.Int64
	results []func() (domain.LocationEstimate, error)
}

func (s *scriptedEstimator) Estimate(_ context.Context, _ []domain.Frame, _ string) (domain.LocationEstimate, error) {
	n := s.calls.Add(1) - 1
	return s.results[int(n)%len(s.results)]()
}

func ok(city, country string, confidence float64) func() (domain.LocationEstimate, error) {
	return func() (domain.LocationEstimate, error) {
		return domain.LocationEstimate{City: city, Country: country, Confidence: confidence}, nil
	}
}

func fail(msg string) func() (domain.LocationEstimate, error) {
	return func() (domain.LocationEstimate, error) {
		return domain.LocationEstimate{}, errors.New(msg)
	}
}

func TestPoolAllSucceed(t *testing.T) {
	estimator := &scriptedEstimator{results: []func() (domain.LocationEstimate, error){
		ok("Lisbon", "Portugal", 0.8),
	}}
	recorder := metrics.NewRecorder()
	pool := NewPool(3, estimator, recorder, zap.NewNop())

	estimates, err := pool.Run(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Len(t, estimates, 3)
	assert.EqualValues(t, 3, estimator.calls.Load())

	// Every estimate carries a distinct source ID.
	seen := make(map[string]bool)
	for _, e := range estimates {
		assert.NotEmpty(t, e.SourceID)
		seen[e.SourceID] = true
	}
	assert.Len(t, seen, 3)

	snap := recorder.Snapshot()
	assert.EqualValues(t, 3, snap[apperrors.StageEstimation].CustomCounters["estimator_success"])
}

func TestPoolToleratesPartialFailure(t *testing.T) {
	estimator := &scriptedEstimator{results: []func() (domain.LocationEstimate, error){
		ok("Lisbon", "Portugal", 0.8),
		fail("model overloaded"),
		ok("Lisbon", "Portugal", 0.7),
	}}
	recorder := metrics.NewRecorder()
	pool := NewPool(3, estimator, recorder, zap.NewNop())

	estimates, err := pool.Run(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Len(t, estimates, 2)

	snap := recorder.Snapshot()
	assert.EqualValues(t, 2, snap[apperrors.StageEstimation].CustomCounters["estimator_success"])
	assert.EqualValues(t, 1, snap[apperrors.StageEstimation].CustomCounters["estimator_failure"])
}

func TestPoolAllFailed(t *testing.T) {
	estimator := &scriptedEstimator{results: []func() (domain.LocationEstimate, error){
		fail("model overloaded"),
	}}
	pool := NewPool(3, estimator, metrics.NewRecorder(), zap.NewNop())

	_, err := pool.Run(context.Background(), nil, "")
	assert.ErrorIs(t, err, apperrors.ErrAllEstimatorsFailed)
}

func TestPoolRejectsInvalidEstimates(t *testing.T) {
	estimator := &scriptedEstimator{results: []func() (domain.LocationEstimate, error){
		// Missing country and out-of-range confidence both fail validation.
		func() (domain.LocationEstimate, error) {
			return domain.LocationEstimate{City: "Lisbon", Confidence: 0.8}, nil
		},
		func() (domain.LocationEstimate, error) {
			return domain.LocationEstimate{City: "Lisbon", Country: "Portugal", Confidence: 1.7}, nil
		},
		ok("Lisbon", "Portugal", 0.9),
	}}
	recorder := metrics.NewRecorder()
	pool := NewPool(3, estimator, recorder, zap.NewNop())

	estimates, err := pool.Run(context.Background(), nil, "")
	require.NoError(t, err)
	require.Len(t, estimates, 1)
	assert.Equal(t, 0.9, estimates[0].Confidence)

	snap := recorder.Snapshot()
	assert.EqualValues(t, 2, snap[apperrors.StageEstimation].CustomCounters["estimator_failure"])
}

func TestPoolJoinBarrierWaitsForSlowCalls(t *testing.T) {
	release := make(chan struct{})
	estimator := &scriptedEstimator{results: []func() (domain.LocationEstimate, error){
		ok("Lisbon", "Portugal", 0.8),
		func() (domain.LocationEstimate, error) {
			<-release
			return domain.LocationEstimate{City: "Porto", Country: "Portugal", Confidence: 0.6}, nil
		},
	}}
	pool := NewPool(2, estimator, metrics.NewRecorder(), zap.NewNop())

	done := make(chan []domain.LocationEstimate, 1)
	go func() {
		estimates, err := pool.Run(context.Background(), nil, "")
		require.NoError(t, err)
		done <- estimates
	}()

	select {
	case <-done:
		t.Fatal("pool returned before the slow estimator finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case estimates := <-done:
		assert.Len(t, estimates, 2)
	case <-time.After(time.Second):
		t.Fatal("pool did not complete after slow estimator finished")
	}
}

func TestPoolAbandonsOutstandingOnDeadline(t *testing.T) {
	estimator := &scriptedEstimator{results: []func() (domain.LocationEstimate, error){
		ok("Lisbon", "Portugal", 0.8),
		func() (domain.LocationEstimate, error) {
			time.Sleep(5 * time.Second)
			return domain.LocationEstimate{City: "Porto", Country: "Portugal", Confidence: 0.6}, nil
		},
	}}
	pool := NewPool(2, estimator, metrics.NewRecorder(), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	estimates, err := pool.Run(ctx, nil, "")
	require.NoError(t, err)
	assert.Len(t, estimates, 1)
	assert.Less(t, time.Since(start), time.Second)
}
