// Package circuitbreaker guards outbound provider calls (vision model,
// places API) so a failing upstream sheds load quickly instead of burning
// the run deadline on doomed requests.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	// Closed passes calls through and counts failures.
	Closed State = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// Probing lets a single call through to test recovery.
	Probing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Probing:
		return "probing"
	default:
		return "unknown"
	}
}

// Config tunes one breaker.
type Config struct {
	Name          string
	FailureLimit  int
	Cooldown      time.Duration
	OnStateChange func(name string, from, to State)
}

// Breaker trips to Open after FailureLimit consecutive failures, rejects
// calls for Cooldown, then probes with one call. A successful probe closes
// the breaker; a failed one re-opens it.
type Breaker struct {
	cfg Config

	mu         sync.Mutex
	state      State
	failures   int
	openedAt   time.Time
	probeInUse bool
}

// New creates a breaker. Zero config fields get conservative defaults.
func New(cfg Config) *Breaker {
	if cfg.FailureLimit < 1 {
		cfg.FailureLimit = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, state: Closed}
}

// Do runs fn under breaker protection and returns its result.
func Do[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.admit(); err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		b.record(err)
		return zero, err
	}
	result, err := fn()
	b.record(err)
	return result, err
}

// Execute runs fn under breaker protection.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	_, err := Do(ctx, b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.transition(Probing)
		b.probeInUse = true
		return nil
	default: // Probing
		if b.probeInUse {
			return ErrOpen
		}
		b.probeInUse = true
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Probing {
		b.probeInUse = false
		if err != nil {
			b.openedAt = time.Now()
			b.transition(Open)
		} else {
			b.transition(Closed)
		}
		return
	}

	if err != nil {
		b.failures++
		if b.state == Closed && b.failures >= b.cfg.FailureLimit {
			b.openedAt = time.Now()
			b.transition(Open)
		}
		return
	}
	b.failures = 0
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	if b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
