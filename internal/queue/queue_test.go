package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
)

type fakeSink struct {
	mu        sync.Mutex
	delivered [][]QueueItem
	failWith  error
	failItems map[string]error
}

func (s *fakeSink) Flush(ctx context.Context, items []QueueItem) ([]FlushFailure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.delivered = append(s.delivered, items)

	var failures []FlushFailure
	for _, it := range items {
		if err, ok := s.failItems[it.ID]; ok {
			failures = append(failures, FlushFailure{ID: it.ID, Err: err})
		}
	}
	return failures, nil
}

func (s *fakeSink) deliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.delivered {
		n += len(batch)
	}
	return n
}

func newTestQueue(t *testing.T, sink FlushSink, opts ...Option) (*Queue, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "pending.json")
	q, err := New(StageAnalysis, path, sink, fake, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return q, fake
}

func TestEnqueueAndForceFlush(t *testing.T) {
	sink := &fakeSink{}
	q, _ := newTestQueue(t, sink)

	if err := q.Enqueue(QueueItem{ID: "file1", Vector: []float32{0.1, 0.2}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
	if sink.deliveredCount() != 1 {
		t.Fatalf("expected 1 delivered item, got %d", sink.deliveredCount())
	}
	if q.Len() != 0 {
		t.Errorf("expected empty buffer after flush, got %d", q.Len())
	}
}

func TestEnqueueRejectsMissingVector(t *testing.T) {
	q, _ := newTestQueue(t, &fakeSink{})
	if err := q.Enqueue(QueueItem{ID: "file1"}); err == nil {
		t.Error("expected error for missing vector")
	}
}

func TestFlushRestoresBatchOnWholeFailure(t *testing.T) {
	sink := &fakeSink{failWith: errors.New("store unreachable")}
	q, _ := newTestQueue(t, sink)

	if err := q.Enqueue(QueueItem{ID: "file1", Vector: []float32{0.1}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.ForceFlush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if q.Len() != 1 {
		t.Errorf("expected item restored to buffer, got len=%d", q.Len())
	}
}

func TestPerItemFailureMovesToDeadLetterAfterMaxRetries(t *testing.T) {
	sink := &fakeSink{failItems: map[string]error{"file1": errors.New("dimension_mismatch")}}
	q, fake := newTestQueue(t, sink, WithItemMaxRetries(1))

	if err := q.Enqueue(QueueItem{ID: "file1", Vector: []float32{0.1}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// First flush attempt fails the item once (retry_count=1, not yet > max).
	if err := q.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
	if len(q.DeadLetterEntries()) != 0 {
		t.Fatal("expected item not yet dead-lettered")
	}

	// Advance past backoff and flush again; retry_count becomes 2 > max(1).
	fake.Advance(10 * time.Second)
	if err := q.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	entries := q.DeadLetterEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 dead-lettered entry, got %d", len(entries))
	}
	if entries[0].Item.ID != "file1" {
		t.Errorf("unexpected dead-letter item: %v", entries[0])
	}
}

func TestRetryDeadLetterItem(t *testing.T) {
	sink := &fakeSink{failItems: map[string]error{"file1": errors.New("boom")}}
	q, fake := newTestQueue(t, sink, WithItemMaxRetries(0))

	if err := q.Enqueue(QueueItem{ID: "file1", Vector: []float32{0.1}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	fake.Advance(10 * time.Second)
	if err := q.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
	if len(q.DeadLetterEntries()) != 1 {
		t.Fatalf("expected dead-letter entry")
	}

	if err := q.RetryDeadLetterItem("file1"); err != nil {
		t.Fatalf("RetryDeadLetterItem: %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("expected item requeued into buffer, got len=%d", q.Len())
	}
	if len(q.DeadLetterEntries()) != 0 {
		t.Error("expected dead-letter cleared for retried item")
	}
}

func TestUpdateAndRemoveByFilePath(t *testing.T) {
	q, _ := newTestQueue(t, &fakeSink{})
	if err := q.Enqueue(QueueItem{ID: "file1", Vector: []float32{0.1}, Meta: map[string]interface{}{"path": "/a.txt"}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	q.UpdateByFilePath("/a.txt", "/b.txt")
	q.RemoveByFilePath("/b.txt")

	if q.Len() != 0 {
		t.Errorf("expected item removed, got len=%d", q.Len())
	}
}

func TestWaitForCapacityTimesOutWhenSaturated(t *testing.T) {
	sink := &fakeSink{failWith: errors.New("unreachable")}
	q, fake := newTestQueue(t, sink, WithCapacity(4))

	for i := 0; i < 4; i++ {
		if err := q.Enqueue(QueueItem{ID: "file" + string(rune('a'+i)), Vector: []float32{0.1}}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	// WaitForCapacity polls on the injected clock, so drive the fake
	// clock forward until it returns.
	done := make(chan error, 1)
	go func() { done <- q.WaitForCapacity(context.Background(), 30*time.Millisecond) }()
	var err error
	for waiting := true; waiting; {
		select {
		case err = <-done:
			waiting = false
		case <-time.After(time.Millisecond):
			fake.Advance(10 * time.Millisecond)
		}
	}
	if err == nil {
		t.Error("expected timeout error while saturated")
	}
}

func TestSidecarPersistsAndReloads(t *testing.T) {
	fake := clock.NewFake(time.Now())
	path := filepath.Join(t.TempDir(), "pending.json")

	q1, err := New(StageAnalysis, path, &fakeSink{failWith: errors.New("keep buffered")}, fake)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := q1.Enqueue(QueueItem{ID: "file1", Vector: []float32{0.1}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	q2, err := New(StageAnalysis, path, &fakeSink{failWith: errors.New("keep buffered")}, fake)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	if q2.Len() != 1 {
		t.Errorf("expected reloaded buffer to contain 1 item, got %d", q2.Len())
	}
}
