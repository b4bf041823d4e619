package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/config"
)

// Registry owns one Breaker per model name, created lazily on first
// use. ModelRuntime looks up (or creates) a model's breaker before
// every call; the CLI's reset-circuit command looks one up to force
// it closed.
type Registry struct {
	cfg BreakerConfig
	clk clock.Clock

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry builds a Registry from the circuit breaker settings in
// cfg. A nil clk uses the real clock.
func NewRegistry(cfg config.CircuitConfig, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		cfg: BreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			SuccessThreshold: cfg.SuccessThreshold,
			Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		clk:      clk,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for modelName, creating it if necessary.
func (r *Registry) Get(modelName string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[modelName]
	if !ok {
		b = NewBreaker(modelName, r.cfg, r.clk)
		r.breakers[modelName] = b
	}
	return b
}

// Reset forces the named model's breaker to Closed. Returns an error
// if the model has no breaker yet (never called).
func (r *Registry) Reset(modelName string) error {
	r.mu.Lock()
	b, ok := r.breakers[modelName]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("resilience: no circuit breaker recorded for model %q", modelName)
	}
	b.Reset()
	return nil
}

// Snapshot returns the current state of every known breaker, keyed by
// model name.
func (r *Registry) Snapshot() map[string]BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]BreakerState, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}
