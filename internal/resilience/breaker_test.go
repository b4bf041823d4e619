package resilience

import (
	"testing"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
)

func testConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker("m", testConfig(), clock.NewFake(time.Now()))
	if b.State() != StateClosed {
		t.Errorf("expected initial state closed, got %v", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() on closed breaker: %v", err)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("m", testConfig(), clock.NewFake(time.Now()))
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if b.State() != StateOpen {
		t.Errorf("expected open after 3 failures, got %v", b.State())
	}
	if err := b.Allow(); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("m", testConfig(), clock.NewFake(time.Now()))
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Errorf("expected still closed, got %v", b.State())
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	fake := clock.NewFake(time.Now())
	b := NewBreaker("m", testConfig(), fake)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	fake.Advance(5 * time.Second)
	if err := b.Allow(); err != ErrCircuitOpen {
		t.Errorf("expected still open before timeout, got %v", err)
	}

	fake.Advance(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Errorf("expected probe allowed after timeout, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected half_open after timeout probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenClosesAfterSuccesses(t *testing.T) {
	fake := clock.NewFake(time.Now())
	b := NewBreaker("m", testConfig(), fake)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	fake.Advance(11 * time.Second)
	_ = b.Allow() // transitions to half-open

	b.RecordSuccess()
	if b.State() != StateHalfOpen {
		t.Fatalf("expected still half_open after 1 success, got %v", b.State())
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("expected closed after 2 successes, got %v", b.State())
	}
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	fake := clock.NewFake(time.Now())
	b := NewBreaker("m", testConfig(), fake)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	fake.Advance(11 * time.Second)
	_ = b.Allow()

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Errorf("expected reopened on half-open failure, got %v", b.State())
	}
}

func TestBreakerRunSkipsNonTransient(t *testing.T) {
	b := NewBreaker("m", testConfig(), clock.NewFake(time.Now()))
	for i := 0; i < 3; i++ {
		err := b.Run(func() error { return NonTransient(errBoom) })
		if err == nil {
			t.Fatal("expected error")
		}
	}
	if b.State() != StateClosed {
		t.Errorf("non-transient errors must not open the circuit, got %v", b.State())
	}
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker("m", testConfig(), clock.NewFake(time.Now()))
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("expected closed after Reset, got %v", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() after Reset: %v", err)
	}
}

var errBoom = &staticErr{"boom"}

type staticErr struct{ s string }

func (e *staticErr) Error() string { return e.s }
