package domain

import "strings"

// Landmark is a single recognized landmark with the model's self-reported
// confidence and a short evidence string.
type Landmark struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
}

// LocationEstimate is the output of one vision estimator call. Confidence
// is self-reported by the estimator and not independently validated beyond
// range checks.
type LocationEstimate struct {
	City       string     `json:"city"`
	Country    string     `json:"country"`
	Region     string     `json:"region,omitempty"`
	Confidence float64    `json:"confidence"`
	SourceID   string     `json:"sourceId"`
	Landmarks  []Landmark `json:"landmarks,omitempty"`
}

// Valid reports whether the estimate satisfies the success invariants:
// non-empty city and country, confidence within [0,1].
func (e LocationEstimate) Valid() bool {
	return strings.TrimSpace(e.City) != "" &&
		strings.TrimSpace(e.Country) != "" &&
		e.Confidence >= 0 && e.Confidence <= 1
}

// GroupKey returns the case-insensitive, whitespace-trimmed (city, country)
// key used to group estimates during merging.
func (e LocationEstimate) GroupKey() string {
	return strings.ToLower(strings.TrimSpace(e.City)) + "|" +
		strings.ToLower(strings.TrimSpace(e.Country))
}

// MergedEstimate is the deterministic aggregation of one or more location
// estimates. It is never mutated after creation; refinement produces a new
// MergedEstimate per iteration.
type MergedEstimate struct {
	City                string     `json:"city"`
	Country             string     `json:"country"`
	Region              string     `json:"region,omitempty"`
	AggregateConfidence float64    `json:"aggregateConfidence"`
	ContributingSources []string   `json:"contributingSources"`
	Landmarks           []Landmark `json:"landmarks,omitempty"`
}

// SameLocation reports whether two merged estimates agree on
// (city, country, region). Used as the refinement stability signal.
func (m MergedEstimate) SameLocation(other MergedEstimate) bool {
	return strings.EqualFold(strings.TrimSpace(m.City), strings.TrimSpace(other.City)) &&
		strings.EqualFold(strings.TrimSpace(m.Country), strings.TrimSpace(other.Country)) &&
		strings.EqualFold(strings.TrimSpace(m.Region), strings.TrimSpace(other.Region))
}

// DisplayName returns "City, Country" for place queries and summaries.
func (m MergedEstimate) DisplayName() string {
	if m.Country == "" {
		return m.City
	}
	return m.City + ", " + m.Country
}
