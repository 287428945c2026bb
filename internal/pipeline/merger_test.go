package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reeltrip/reeltrip/internal/domain"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
)

func est(city, country string, confidence float64) domain.LocationEstimate {
	return domain.LocationEstimate{City: city, Country: country, Confidence: confidence}
}

func TestMergeEmptyInput(t *testing.T) {
	_, err := Merge(nil)
	assert.ErrorIs(t, err, apperrors.ErrNoEstimatesToMerge)
}

func TestMergeSingleEstimate(t *testing.T) {
	e := est("Lisbon", "Portugal", 0.6)
	e.SourceID = "estimator-0"
	e.Region = "Lisboa"

	merged, err := Merge([]domain.LocationEstimate{e})
	require.NoError(t, err)

	assert.Equal(t, "Lisbon", merged.City)
	assert.Equal(t, "Portugal", merged.Country)
	assert.Equal(t, "Lisboa", merged.Region)
	assert.Equal(t, 1.0, merged.AggregateConfidence)
	assert.Equal(t, []string{"estimator-0"}, merged.ContributingSources)
}

func TestMergeMajorityWins(t *testing.T) {
	estimates := []domain.LocationEstimate{
		est("Paris", "France", 0.8),
		est("Paris", "France", 0.7),
		est("Lyon", "France", 0.9),
	}

	merged, err := Merge(estimates)
	require.NoError(t, err)

	assert.Equal(t, "Paris", merged.City)
	assert.InDelta(t, 1.5/2.4, merged.AggregateConfidence, 1e-9)
}

func TestMergeGroupsCaseInsensitively(t *testing.T) {
	estimates := []domain.LocationEstimate{
		est("  paris ", "FRANCE", 0.5),
		est("Paris", "France", 0.9),
	}

	merged, err := Merge(estimates)
	require.NoError(t, err)

	// Spelling comes from the highest-confidence member of the group.
	assert.Equal(t, "Paris", merged.City)
	assert.Equal(t, "France", merged.Country)
	assert.Equal(t, 1.0, merged.AggregateConfidence)
}

func TestMergeTieBreaksLexicographically(t *testing.T) {
	estimates := []domain.LocationEstimate{
		est("Rome", "Italy", 0.5),
		est("Paris", "France", 0.5),
	}

	merged, err := Merge(estimates)
	require.NoError(t, err)

	// "paris|france" < "rome|italy", so Paris wins the tie regardless of
	// input order.
	assert.Equal(t, "Paris", merged.City)
	assert.Equal(t, "France", merged.Country)
	assert.Equal(t, 0.5, merged.AggregateConfidence)
}

func TestMergeDeterministicAcrossOrderings(t *testing.T) {
	a := est("Tokyo", "Japan", 0.7)
	b := est("Kyoto", "Japan", 0.6)
	c := est("Tokyo", "Japan", 0.4)

	first, err := Merge([]domain.LocationEstimate{a, b, c})
	require.NoError(t, err)
	second, err := Merge([]domain.LocationEstimate{c, a, b})
	require.NoError(t, err)

	assert.Equal(t, first.City, second.City)
	assert.Equal(t, first.Country, second.Country)
	assert.Equal(t, first.AggregateConfidence, second.AggregateConfidence)
}

func TestMergeRegionFromBestDonor(t *testing.T) {
	a := est("Barcelona", "Spain", 0.9)
	b := est("Barcelona", "Spain", 0.5)
	b.Region = "Catalonia"

	merged, err := Merge([]domain.LocationEstimate{a, b})
	require.NoError(t, err)

	// The highest-confidence member has no region; the donor with one
	// still supplies it.
	assert.Equal(t, "Barcelona", merged.City)
	assert.Equal(t, "Catalonia", merged.Region)
}

func TestMergeLandmarksFromBestMember(t *testing.T) {
	a := est("Agra", "India", 0.95)
	a.Landmarks = []domain.Landmark{{Name: "Taj Mahal", Confidence: 0.99}}
	b := est("Agra", "India", 0.4)

	merged, err := Merge([]domain.LocationEstimate{b, a})
	require.NoError(t, err)

	require.Len(t, merged.Landmarks, 1)
	assert.Equal(t, "Taj Mahal", merged.Landmarks[0].Name)
}

func TestMergeContributingSourcesInInputOrder(t *testing.T) {
	a := est("Oslo", "Norway", 0.3)
	a.SourceID = "estimator-0"
	b := est("Oslo", "Norway", 0.8)
	b.SourceID = "estimator-2"

	merged, err := Merge([]domain.LocationEstimate{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"estimator-0", "estimator-2"}, merged.ContributingSources)
}

func TestMergeZeroConfidenceTotal(t *testing.T) {
	merged, err := Merge([]domain.LocationEstimate{est("Oslo", "Norway", 0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, merged.AggregateConfidence)
}
