package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtStage(t *testing.T) {
	t.Run("tags an error with its stage", func(t *testing.T) {
		err := AtStage(StagePlaceLookup, fmt.Errorf("places api returned 500"))

		require.Error(t, err)
		assert.Equal(t, StagePlaceLookup, FailedStage(err))
		assert.Contains(t, err.Error(), "place_lookup")
	})

	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, AtStage(StageEstimation, nil))
	})

	t.Run("already tagged errors keep their original stage", func(t *testing.T) {
		inner := AtStage(StageRefinement, fmt.Errorf("model unavailable"))
		outer := AtStage(StageComposition, inner)

		assert.Equal(t, StageRefinement, FailedStage(outer))
	})

	t.Run("wrapped sentinels remain matchable", func(t *testing.T) {
		err := AtStage(StageEstimation, ErrAllEstimatorsFailed)

		assert.True(t, Is(err, ErrAllEstimatorsFailed))
	})
}

func TestFailedStage(t *testing.T) {
	t.Run("untagged errors have no stage", func(t *testing.T) {
		assert.Empty(t, FailedStage(fmt.Errorf("plain error")))
	})

	t.Run("finds the tag through wrapping", func(t *testing.T) {
		err := fmt.Errorf("run aborted: %w", AtStage(StageMerge, ErrNoEstimatesToMerge))

		assert.Equal(t, StageMerge, FailedStage(err))
	})
}

func TestEstimationError(t *testing.T) {
	err := &EstimationError{SourceID: "estimator-2", Err: fmt.Errorf("timeout")}

	assert.Contains(t, err.Error(), "estimator-2")
	assert.Contains(t, err.Error(), "timeout")

	var ee *EstimationError
	require.True(t, As(fmt.Errorf("wrapped: %w", err), &ee))
	assert.Equal(t, "estimator-2", ee.SourceID)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"not found", NotFound("run"), http.StatusNotFound},
		{"all estimators failed", AtStage(StageEstimation, ErrAllEstimatorsFailed), http.StatusBadGateway},
		{"stage failure", AtStage(StageComposition, fmt.Errorf("boom")), http.StatusBadGateway},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusCode(tt.err))
		})
	}
}
