package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/config"
)

type fakeService struct {
	shutdownErr error
	shutdowns   int
}

func (f *fakeService) Shutdown(ctx context.Context) error {
	f.shutdowns++
	return f.shutdownErr
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil, nil, nil, false)
	if err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "bogus"
	_, err := New(cfg, nil, nil, false)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestNewUsesRealClockWhenNil(t *testing.T) {
	cc, err := New(config.DefaultConfig(), nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc.Clock == nil {
		t.Fatal("expected a non-nil default clock")
	}
}

func TestRegisterAndLookup(t *testing.T) {
	cc, err := New(config.DefaultConfig(), clock.NewFake(time.Now()), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := &fakeService{}
	cc.Register("queue", svc)

	got, ok := cc.Service("queue")
	if !ok {
		t.Fatal("expected queue service to be found")
	}
	if got != svc {
		t.Error("expected looked-up service to be the same instance")
	}

	if _, ok := cc.Service("nope"); ok {
		t.Error("expected unregistered service lookup to fail")
	}
}

func TestShutdownCallsAllServicesAndIsIdempotent(t *testing.T) {
	cc, err := New(config.DefaultConfig(), clock.NewFake(time.Now()), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := &fakeService{}
	b := &fakeService{}
	cc.Register("a", a)
	cc.Register("b", b)

	if err := cc.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if a.shutdowns != 1 || b.shutdowns != 1 {
		t.Errorf("expected each service shut down once, got a=%d b=%d", a.shutdowns, b.shutdowns)
	}

	if err := cc.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown should be a no-op, got: %v", err)
	}
	if a.shutdowns != 1 || b.shutdowns != 1 {
		t.Error("second Shutdown call must not re-invoke services")
	}
}

func TestShutdownCollectsErrors(t *testing.T) {
	cc, err := New(config.DefaultConfig(), clock.NewFake(time.Now()), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cc.Register("broken", &fakeService{shutdownErr: errors.New("disk full")})

	if err := cc.Shutdown(context.Background()); err == nil {
		t.Error("expected shutdown error to be surfaced")
	}
}
