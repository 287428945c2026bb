package domain

// RefinementStatus is the state of the refinement loop.
type RefinementStatus string

const (
	// RefinementRunning means the loop is still iterating.
	RefinementRunning RefinementStatus = "RUNNING"
	// RefinementConverged means the stopping condition was met.
	RefinementConverged RefinementStatus = "CONVERGED"
	// RefinementExhausted means the iteration budget ran out (or refinement
	// calls kept failing); the last estimate is still usable, just
	// unconverged.
	RefinementExhausted RefinementStatus = "EXHAUSTED"
)

// RefinementState tracks one refinement loop run. History is append-only:
// it starts with the initial merged estimate and gains one entry per
// iteration, so callers can inspect confidence monotonicity (or its
// absence) after the fact.
type RefinementState struct {
	Iteration int              `json:"iteration"`
	Current   MergedEstimate   `json:"current"`
	History   []MergedEstimate `json:"history"`
	Status    RefinementStatus `json:"status"`
}

// Converged reports whether the loop stopped because the stopping
// condition was met, as opposed to running out of iterations.
func (s *RefinementState) Converged() bool {
	return s.Status == RefinementConverged
}
