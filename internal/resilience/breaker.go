package resilience

import (
	"sync"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
)

// BreakerState is one of the three circuit breaker states.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the failure/success thresholds and timeout
// of a Breaker.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
}

// Breaker is a per-model circuit breaker. Closed -> Open after
// FailureThreshold consecutive failures. Open -> HalfOpen after
// Timeout elapses. HalfOpen -> Closed after SuccessThreshold
// consecutive successes; HalfOpen -> Open on any single failure.
// Errors marked non-transient (see NonTransient) never count toward
// the failure threshold and never change state.
type Breaker struct {
	name string
	cfg  BreakerConfig
	clk  clock.Clock
	log  bool

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	openedAt    time.Time
}

// NewBreaker creates a Breaker for the given model name.
func NewBreaker(name string, cfg BreakerConfig, clk clock.Clock) *Breaker {
	if clk == nil {
		clk = clock.New()
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		clk:   clk,
		state: StateClosed,
	}
}

// Allow reports whether a call should be attempted right now. When
// the circuit is open and the timeout has not elapsed, it returns
// ErrCircuitOpen. When the timeout has elapsed, it transitions to
// half-open and allows the call through as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if b.clk.Now().Sub(b.openedAt) >= b.cfg.Timeout {
			b.transition(StateHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

// RecordFailure reports a failed call. Non-transient errors should
// not be passed here at all by the caller (see Run), but RecordFailure
// itself has no way to distinguish, so callers are responsible for
// only calling it for transient failures.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker back to Closed, clearing counters. Used by
// the `reset-circuit` CLI command.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.clk.Now()
	}
	if from != to {
		logctx.For("resilience.breaker").WithField("model", b.name).
			WithField("from", from.String()).WithField("to", to.String()).
			Debug("circuit breaker transition")
	}
}

// Run executes fn, respecting the breaker's current state, and
// records the outcome. If the circuit is open, fn is not called and
// ErrCircuitOpen is returned. Errors wrapped with NonTransient are
// returned as-is without being recorded against the breaker.
func (b *Breaker) Run(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	if err == nil {
		b.RecordSuccess()
		return nil
	}
	if IsNonTransient(err) {
		return err
	}
	b.RecordFailure()
	return err
}
