package modelruntime

import (
	"context"
	"sync"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
)

const preflightTTL = 15 * time.Second

// Preflight is {health, vision_model_name, available_models} memoized
// for preflightTTL. A forced refresh is required
// after an unhealthy response, so Get always re-queries when the
// cached snapshot was unhealthy regardless of TTL.
type Preflight struct {
	backend        Backend
	visionModel    string
	clk            clock.Clock

	mu       sync.Mutex
	snapshot *PreflightSnapshot
	at       time.Time
}

// PreflightSnapshot is the cached preflight result.
type PreflightSnapshot struct {
	Healthy          bool
	Status           string
	VisionModelName  string
	AvailableModels  []string
}

// NewPreflight builds a Preflight cache in front of backend.
func NewPreflight(backend Backend, visionModel string, clk clock.Clock) *Preflight {
	if clk == nil {
		clk = clock.New()
	}
	return &Preflight{backend: backend, visionModel: visionModel, clk: clk}
}

// Get returns the cached snapshot if it is fresh and was healthy,
// otherwise re-queries the backend's health_check and list_models.
func (p *Preflight) Get(ctx context.Context) (*PreflightSnapshot, error) {
	p.mu.Lock()
	if p.snapshot != nil && p.snapshot.Healthy && p.clk.Now().Sub(p.at) < preflightTTL {
		snap := p.snapshot
		p.mu.Unlock()
		return snap, nil
	}
	p.mu.Unlock()

	health, err := p.backend.HealthCheck(ctx)
	if err != nil {
		return nil, err
	}

	snap := &PreflightSnapshot{Healthy: health.Healthy, Status: health.Status}
	if health.Healthy {
		models, err := p.backend.ListModels(ctx)
		if err == nil {
			snap.AvailableModels = models
		}
		if p.backend.SupportsVision() {
			snap.VisionModelName = p.visionModel
		}
	}

	p.mu.Lock()
	p.snapshot = snap
	p.at = p.clk.Now()
	p.mu.Unlock()

	return snap, nil
}

// Invalidate forces the next Get to re-query regardless of TTL.
func (p *Preflight) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = nil
}
