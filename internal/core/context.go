// Package core provides CoreContext, the explicit service container
// that holds the configuration, the clock and the per-model circuit
// breakers, plus a name-keyed registry of Services shut down together.
// The other long-lived collaborators (caches, the embedding queues, the
// model runtime) are built once in cmd/wiring.go and passed down by
// handle instead of reached for as package-level vars.
package core

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/config"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
	"github.com/ziadkadry99/localsort-core/internal/resilience"
)

// Service is implemented by anything CoreContext manages the lifecycle
// of. Shutdown must be idempotent.
type Service interface {
	Shutdown(ctx context.Context) error
}

// CoreContext is the composition root. It owns the configuration, the
// clock, the per-model circuit breaker registry, and a registry of
// named Services that callers add with Register. No package registers
// itself; CoreContext doesn't enforce any construction order, it just
// gives callers a single place to register against instead of
// inventing their own global.
type CoreContext struct {
	Config   *config.Config
	Clock    clock.Clock
	Breakers *resilience.Registry

	mu       sync.Mutex
	services map[string]Service
	closed   bool
}

// New builds a CoreContext from a loaded, validated Config. Pass a nil
// clk to use the real wall clock (tests pass a clock.Fake).
func New(cfg *config.Config, clk clock.Clock, logOut io.Writer, verbose bool) (*CoreContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("core: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("core: invalid config: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}

	logctx.Configure(verbose, logOut)

	return &CoreContext{
		Config:   cfg,
		Clock:    clk,
		Breakers: resilience.NewRegistry(cfg.Circuit, clk),
		services: make(map[string]Service),
	}, nil
}

// Register attaches a named Service to the container so Shutdown can
// tear it down. Registering the same name twice replaces the prior
// entry without shutting it down — callers are expected to register
// each singleton exactly once during startup.
func (c *CoreContext) Register(name string, svc Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = svc
}

// Service looks up a previously registered service by name. ok is
// false if nothing was registered under that name.
func (c *CoreContext) Service(name string) (Service, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	svc, ok := c.services[name]
	return svc, ok
}

// Shutdown tears down every registered service. It collects and
// returns every error encountered rather than stopping at the first,
// since a partial shutdown should still give every service a chance
// to flush. Safe to call more than once.
func (c *CoreContext) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	services := make(map[string]Service, len(c.services))
	for k, v := range c.services {
		services[k] = v
	}
	c.mu.Unlock()

	var errs []error
	for name, svc := range services {
		if err := svc.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down %q: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("core: %d service(s) failed to shut down cleanly: %v", len(errs), errs)
	}
	return nil
}
