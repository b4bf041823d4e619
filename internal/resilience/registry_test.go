package resilience

import (
	"testing"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/config"
)

func TestRegistryGetCreatesLazily(t *testing.T) {
	r := NewRegistry(config.CircuitConfig{FailureThreshold: 5, SuccessThreshold: 2, TimeoutSeconds: 300}, clock.NewFake(time.Now()))
	b1 := r.Get("llama3")
	b2 := r.Get("llama3")
	if b1 != b2 {
		t.Error("expected same breaker instance for the same model name")
	}
	if len(r.Snapshot()) != 1 {
		t.Errorf("expected 1 tracked breaker, got %d", len(r.Snapshot()))
	}
}

func TestRegistryResetUnknownModel(t *testing.T) {
	r := NewRegistry(config.CircuitConfig{FailureThreshold: 5, SuccessThreshold: 2, TimeoutSeconds: 300}, clock.NewFake(time.Now()))
	if err := r.Reset("never-seen"); err == nil {
		t.Error("expected error resetting a model with no recorded breaker")
	}
}

func TestRegistryResetKnownModel(t *testing.T) {
	r := NewRegistry(config.CircuitConfig{FailureThreshold: 2, SuccessThreshold: 2, TimeoutSeconds: 300}, clock.NewFake(time.Now()))
	b := r.Get("llava")
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}
	if err := r.Reset("llava"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after registry reset, got %v", b.State())
	}
}
