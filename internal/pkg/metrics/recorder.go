// Package metrics implements the process-wide stage metrics recorder.
//
// Every pipeline stage records its wall-clock duration and custom counters
// here, keyed by stage name. Values accumulate for the lifetime of the
// process and reset only on explicit operator action. The recorder also
// mirrors samples into Prometheus vectors for /metrics scraping.
package metrics

import (
	"sync"
	"time"
)

// StageMetrics is the accumulated record for one named stage.
type StageMetrics struct {
	StageName       string         `json:"stageName"`
	Duration        time.Duration  `json:"-"`
	DurationSeconds float64        `json:"durationSeconds"`
	InvocationCount int64          `json:"invocationCount"`
	CustomCounters  map[string]int `json:"customCounters,omitempty"`
}

// Recorder accumulates per-stage timings and counters. It is safe for
// concurrent use; the critical section covers only the map update, so
// unrelated stages are not serialized beyond the increment itself.
type Recorder struct {
	mu     sync.Mutex
	stages map[string]*StageMetrics
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{stages: make(map[string]*StageMetrics)}
}

func (r *Recorder) stage(name string) *StageMetrics {
	s, ok := r.stages[name]
	if !ok {
		s = &StageMetrics{StageName: name, CustomCounters: make(map[string]int)}
		r.stages[name] = s
	}
	return s
}

// RecordDuration adds one timer sample for the stage and counts the
// invocation.
func (r *Recorder) RecordDuration(stageName string, d time.Duration) {
	r.mu.Lock()
	s := r.stage(stageName)
	s.Duration += d
	s.DurationSeconds = s.Duration.Seconds()
	s.InvocationCount++
	r.mu.Unlock()

	observeStageDuration(stageName, d)
}

// Increment adds delta to a named counter under the stage.
func (r *Recorder) Increment(stageName, counterName string, delta int) {
	r.mu.Lock()
	r.stage(stageName).CustomCounters[counterName] += delta
	r.mu.Unlock()

	incrementStageCounter(stageName, counterName, delta)
}

// Time runs fn and records its duration under the stage, invocation
// included, whether fn succeeds or not.
func (r *Recorder) Time(stageName string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.RecordDuration(stageName, time.Since(start))
	return err
}

// Snapshot returns a deep copy of all accumulated values. The copy is
// detached: later recording never changes an already-taken snapshot.
func (r *Recorder) Snapshot() map[string]StageMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]StageMetrics, len(r.stages))
	for name, s := range r.stages {
		counters := make(map[string]int, len(s.CustomCounters))
		for k, v := range s.CustomCounters {
			counters[k] = v
		}
		out[name] = StageMetrics{
			StageName:       s.StageName,
			Duration:        s.Duration,
			DurationSeconds: s.DurationSeconds,
			InvocationCount: s.InvocationCount,
			CustomCounters:  counters,
		}
	}
	return out
}

// Reset clears all accumulated values. Operator action only; nothing in
// the pipeline calls this.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = make(map[string]*StageMetrics)
}
