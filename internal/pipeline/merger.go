package pipeline

import (
	"sort"
	"strings"

	"github.com/reeltrip/reeltrip/internal/domain"
	apperrors "github.com/reeltrip/reeltrip/internal/pkg/errors"
)

// MergeFunc aggregates estimator outputs into one merged estimate. The
// orchestrator takes it as a field so the weighting rule stays swappable;
// Merge is the default.
type MergeFunc func(estimates []domain.LocationEstimate) (domain.MergedEstimate, error)

// Merge combines estimates by summed confidence per normalized
// (city, country) group. The winning group is the one with the highest
// confidence sum; ties break on the lexicographically smallest group key
// so identical inputs always merge identically. The aggregate confidence
// is the winner's share of the total confidence mass, normalized to [0,1].
//
// Merge is pure: no side effects, deterministic for any input ordering of
// equal content, and idempotent when re-applied to its own winners.
func Merge(estimates []domain.LocationEstimate) (domain.MergedEstimate, error) {
	if len(estimates) == 0 {
		return domain.MergedEstimate{}, apperrors.ErrNoEstimatesToMerge
	}

	type group struct {
		sum     float64
		members []domain.LocationEstimate
	}

	groups := make(map[string]*group)
	keys := make([]string, 0, len(estimates))
	var total float64

	for _, e := range estimates {
		key := e.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			keys = append(keys, key)
		}
		g.sum += e.Confidence
		g.members = append(g.members, e)
		total += e.Confidence
	}

	// Highest confidence sum wins; lexicographic key order breaks ties.
	sort.Strings(keys)
	winnerKey := keys[0]
	for _, key := range keys[1:] {
		if groups[key].sum > groups[winnerKey].sum {
			winnerKey = key
		}
	}
	winner := groups[winnerKey]

	aggregate := 0.0
	if total > 0 {
		aggregate = winner.sum / total
	}

	// City/country spelling comes from the group's highest-confidence
	// member; region from the highest-confidence member that has one.
	best := winner.members[0]
	var regionDonor *domain.LocationEstimate
	for i := range winner.members {
		m := winner.members[i]
		if m.Confidence > best.Confidence {
			best = m
		}
		if strings.TrimSpace(m.Region) != "" &&
			(regionDonor == nil || m.Confidence > regionDonor.Confidence) {
			regionDonor = &winner.members[i]
		}
	}

	merged := domain.MergedEstimate{
		City:                strings.TrimSpace(best.City),
		Country:             strings.TrimSpace(best.Country),
		AggregateConfidence: aggregate,
		Landmarks:           best.Landmarks,
	}
	if regionDonor != nil {
		merged.Region = strings.TrimSpace(regionDonor.Region)
	}
	for _, m := range winner.members {
		merged.ContributingSources = append(merged.ContributingSources, m.SourceID)
	}

	return merged, nil
}
