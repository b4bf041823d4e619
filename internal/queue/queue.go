// Package queue implements the Embedding Work Queue: two independent
// stage queues (analysis, organize) that buffer embeddings in memory,
// persist them to a JSON sidecar under a write-ahead discipline, and
// batch-flush them to a FlushSink with per-item retry, exponential
// backoff, and dead-lettering.
package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
)

var log = logctx.For("queue")

// Stage identifies which pipeline stage a queue instance serves.
type Stage string

const (
	StageAnalysis Stage = "analysis"
	StageOrganize Stage = "organize"
)

// ItemType classifies a queue item by its id prefix.
type ItemType string

const (
	ItemTypeFile   ItemType = "file"
	ItemTypeChunk  ItemType = "chunk"
	ItemTypeFolder ItemType = "folder"
)

// Default tunables, overridable per queue via Option.
const (
	DefaultBatchSize          = 50
	DefaultFlushDelay         = 500 * time.Millisecond
	DefaultItemMaxRetries     = 5
	DefaultMaxFailedItemsSize = 1000
	DefaultMaxDeadLetterSize  = 5000
	DefaultCapacity           = 2000
	DefaultMaxWait            = 60 * time.Second

	highWatermarkPct   = 0.75
	releaseWatermarkPct = 0.5
)

// QueueItem is a unit of work pending delivery to the vector store.
type QueueItem struct {
	ID         string                 `json:"id"`
	Stage      Stage                  `json:"stage"`
	Vector     []float32              `json:"vector,omitempty"`
	Model      string                 `json:"model,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
	RetryCount int                    `json:"retry_count"`
}

// Type classifies the item by its id's namespace prefix.
func (i QueueItem) Type() ItemType {
	switch {
	case strings.HasPrefix(i.ID, "chunk:"):
		return ItemTypeChunk
	case strings.HasPrefix(i.ID, "folder:"):
		return ItemTypeFolder
	default:
		return ItemTypeFile
	}
}

func (i QueueItem) path() string {
	if i.Meta == nil {
		return ""
	}
	p, _ := i.Meta["path"].(string)
	return p
}

// FailedEntry tracks a single item's retry state between flush attempts.
type FailedEntry struct {
	Item        QueueItem `json:"item"`
	RetryCount  int       `json:"retry_count"`
	LastAttempt time.Time `json:"last_attempt"`
	Error       string    `json:"error"`
}

// DeadLetterEntry is a permanently-failed item awaiting manual retry.
type DeadLetterEntry struct {
	Item       QueueItem `json:"item"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	ItemType   ItemType  `json:"item_type"`
}

// FlushFailure reports that a single item within a flushed batch could
// not be delivered, without failing the whole batch.
type FlushFailure struct {
	ID  string
	Err error
}

// FlushSink delivers a batch of items to the vector store. A non-nil
// error indicates the whole batch failed (e.g. the store is
// unreachable); a non-empty failures slice reports per-item rejections
// within an otherwise-successful batch.
type FlushSink interface {
	Flush(ctx context.Context, items []QueueItem) (failures []FlushFailure, err error)
}

// Queue buffers items for one pipeline stage.
type Queue struct {
	stage       Stage
	sidecarPath string
	clk         clock.Clock
	sink        FlushSink

	batchSize          int
	flushDelay         time.Duration
	itemMaxRetries     int
	maxFailedItemsSize int
	maxDeadLetterSize  int
	capacity           int

	mu          sync.Mutex
	buffer      []QueueItem
	failed      map[string]*FailedEntry
	failedOrder []string
	deadLetter  []DeadLetterEntry
	saturated   bool

	flushGroup singleflight.Group

	timerMu      sync.Mutex
	timerPending bool
}

// Option configures a Queue at construction.
type Option func(*Queue)

func WithBatchSize(n int) Option          { return func(q *Queue) { q.batchSize = n } }
func WithFlushDelay(d time.Duration) Option { return func(q *Queue) { q.flushDelay = d } }
func WithItemMaxRetries(n int) Option     { return func(q *Queue) { q.itemMaxRetries = n } }
func WithCapacity(n int) Option           { return func(q *Queue) { q.capacity = n } }

// New constructs a Queue for stage, loading any persisted sidecar from
// sidecarPath and scheduling an immediate flush for restored items.
func New(stage Stage, sidecarPath string, sink FlushSink, clk clock.Clock, opts ...Option) (*Queue, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	q := &Queue{
		stage:              stage,
		sidecarPath:        sidecarPath,
		clk:                clk,
		sink:               sink,
		batchSize:          DefaultBatchSize,
		flushDelay:         DefaultFlushDelay,
		itemMaxRetries:     DefaultItemMaxRetries,
		maxFailedItemsSize: DefaultMaxFailedItemsSize,
		maxDeadLetterSize:  DefaultMaxDeadLetterSize,
		capacity:           DefaultCapacity,
		failed:             make(map[string]*FailedEntry),
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.load(); err != nil {
		return nil, fmt.Errorf("queue: load sidecar: %w", err)
	}

	if len(q.buffer) > 0 {
		q.triggerFlush()
	}

	return q, nil
}

// Enqueue validates and appends item, persists the buffer
// write-ahead, and schedules (or triggers) a flush.
func (q *Queue) Enqueue(item QueueItem) error {
	if item.ID == "" {
		return fmt.Errorf("queue: item missing id")
	}
	if len(item.Vector) == 0 {
		return fmt.Errorf("queue: item %q missing vector", item.ID)
	}
	item.Stage = q.stage
	item.UpdatedAt = q.clk.Now()

	q.mu.Lock()
	q.buffer = append(q.buffer, item)
	n := len(q.buffer)
	q.mu.Unlock()

	if err := q.persist(); err != nil {
		log.WithError(err).WithField("stage", q.stage).Warn("persist on enqueue failed")
	}

	if n >= q.batchSize {
		q.triggerFlush()
	} else {
		q.scheduleFlush()
	}
	return nil
}

// Drain returns and clears the in-memory buffer for worker-thread
// isolation. The caller owns delivering the returned items upstream.
func (q *Queue) Drain() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueItem, len(q.buffer))
	copy(out, q.buffer)
	q.buffer = nil
	return out
}

// scheduleFlush coalesces to a single pending timer.
func (q *Queue) scheduleFlush() {
	q.timerMu.Lock()
	if q.timerPending {
		q.timerMu.Unlock()
		return
	}
	q.timerPending = true
	timer := q.clk.NewTimer(q.flushDelay)
	q.timerMu.Unlock()

	go func() {
		<-timer.C()
		q.timerMu.Lock()
		q.timerPending = false
		q.timerMu.Unlock()
		if err := q.Flush(context.Background()); err != nil {
			log.WithError(err).WithField("stage", q.stage).Warn("scheduled flush failed")
		}
	}()
}

func (q *Queue) triggerFlush() {
	q.timerMu.Lock()
	q.timerPending = false
	q.timerMu.Unlock()
	go func() {
		if err := q.Flush(context.Background()); err != nil {
			log.WithError(err).WithField("stage", q.stage).Warn("immediate flush failed")
		}
	}()
}

// ForceFlush runs a flush attempt synchronously, for shutdown paths
// and deterministic tests.
func (q *Queue) ForceFlush(ctx context.Context) error {
	return q.Flush(ctx)
}

// Shutdown cancels any pending scheduled flush and drains deterministically.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.timerMu.Lock()
	q.timerPending = false
	q.timerMu.Unlock()
	return q.Flush(ctx)
}

// Flush snapshots the current buffer (after reclaiming any
// backoff-eligible failed items), persists it write-ahead,
// optimistically clears it, and delivers the batch via the sink.
// Single-flight: concurrent callers share one in-flight attempt.
func (q *Queue) Flush(ctx context.Context) error {
	_, err, _ := q.flushGroup.Do(string(q.stage), func() (interface{}, error) {
		q.mu.Lock()
		q.requeueEligibleLocked()
		empty := len(q.buffer) == 0
		q.mu.Unlock()
		if empty {
			return nil, nil
		}

		if err := q.persist(); err != nil {
			log.WithError(err).WithField("stage", q.stage).Warn("persist before flush failed")
		}

		q.mu.Lock()
		batch := make([]QueueItem, len(q.buffer))
		copy(batch, q.buffer)
		q.buffer = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			return nil, nil
		}

		failures, err := q.sink.Flush(ctx, batch)
		if err != nil {
			// Whole-batch failure: restore at the head. No persist
			// between clear and restore, so the on-disk sidecar
			// already reflects the pre-flush buffer.
			q.mu.Lock()
			q.buffer = append(batch, q.buffer...)
			q.mu.Unlock()
			return nil, fmt.Errorf("queue: flush %s: %w", q.stage, err)
		}

		if len(failures) > 0 {
			q.handleItemFailures(batch, failures)
		}

		if err := q.persist(); err != nil {
			log.WithError(err).WithField("stage", q.stage).Warn("persist after flush failed")
		}
		return nil, nil
	})
	return err
}

// requeueEligibleLocked moves failed items whose backoff has elapsed
// back to the head of the buffer. Caller must hold q.mu.
func (q *Queue) requeueEligibleLocked() {
	if len(q.failedOrder) == 0 {
		return
	}
	now := q.clk.Now()
	var remaining []string
	var reclaimed []QueueItem
	for _, id := range q.failedOrder {
		entry, ok := q.failed[id]
		if !ok {
			continue
		}
		if now.Sub(entry.LastAttempt) >= backoffDelay(entry.RetryCount) {
			reclaimed = append(reclaimed, entry.Item)
			delete(q.failed, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	q.failedOrder = remaining
	if len(reclaimed) > 0 {
		q.buffer = append(reclaimed, q.buffer...)
	}
}

func (q *Queue) handleItemFailures(batch []QueueItem, failures []FlushFailure) {
	byID := make(map[string]QueueItem, len(batch))
	for _, it := range batch {
		byID[it.ID] = it
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clk.Now()
	for _, f := range failures {
		item, ok := byID[f.ID]
		if !ok {
			continue
		}
		entry, exists := q.failed[f.ID]
		if !exists {
			entry = &FailedEntry{Item: item}
			q.failed[f.ID] = entry
			q.failedOrder = append(q.failedOrder, f.ID)
		}
		entry.RetryCount++
		entry.LastAttempt = now
		if f.Err != nil {
			entry.Error = f.Err.Error()
		}
		item.RetryCount = entry.RetryCount
		entry.Item = item

		if entry.RetryCount > q.itemMaxRetries {
			delete(q.failed, f.ID)
			q.removeFailedOrderLocked(f.ID)
			q.deadLetter = append(q.deadLetter, DeadLetterEntry{
				Item: item, Error: entry.Error, RetryCount: entry.RetryCount,
				FailedAt: now, ItemType: item.Type(),
			})
		}
	}

	q.evictOverflowingFailedLocked()
	q.trimDeadLetterLocked()
}

func (q *Queue) removeFailedOrderLocked(id string) {
	for i, existing := range q.failedOrder {
		if existing == id {
			q.failedOrder = append(q.failedOrder[:i], q.failedOrder[i+1:]...)
			return
		}
	}
}

// evictOverflowingFailedLocked moves the oldest failed entries to
// dead-letter once the failed-items map exceeds its cap.
func (q *Queue) evictOverflowingFailedLocked() {
	for len(q.failedOrder) > q.maxFailedItemsSize {
		id := q.failedOrder[0]
		q.failedOrder = q.failedOrder[1:]
		entry, ok := q.failed[id]
		if !ok {
			continue
		}
		delete(q.failed, id)
		q.deadLetter = append(q.deadLetter, DeadLetterEntry{
			Item: entry.Item, Error: entry.Error, RetryCount: entry.RetryCount,
			FailedAt: q.clk.Now(), ItemType: entry.Item.Type(),
		})
	}
}

// trimDeadLetterLocked prunes the oldest 10% once the dead-letter list is full.
func (q *Queue) trimDeadLetterLocked() {
	if len(q.deadLetter) <= q.maxDeadLetterSize {
		return
	}
	prune := len(q.deadLetter) / 10
	if prune < 1 {
		prune = 1
	}
	q.deadLetter = q.deadLetter[prune:]
}

// UpdateByFilePath rewrites the path metadata for any buffered item
// matching oldPath, propagating a move before it's flushed.
func (q *Queue) UpdateByFilePath(oldPath, newPath string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.buffer {
		if q.buffer[i].path() == oldPath {
			if q.buffer[i].Meta == nil {
				q.buffer[i].Meta = map[string]interface{}{}
			}
			q.buffer[i].Meta["path"] = newPath
		}
	}
}

// RemoveByFilePath drops any buffered item whose path matches, for a
// file deleted before it was ever flushed.
func (q *Queue) RemoveByFilePath(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.buffer[:0]
	for _, it := range q.buffer {
		if it.path() != path {
			kept = append(kept, it)
		}
	}
	q.buffer = kept
}

// DeadLetterEntries returns a snapshot of the current dead-letter list.
func (q *Queue) DeadLetterEntries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetterEntry, len(q.deadLetter))
	copy(out, q.deadLetter)
	return out
}

// RetryDeadLetterItem re-queues a single dead-letter entry by id.
func (q *Queue) RetryDeadLetterItem(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, entry := range q.deadLetter {
		if entry.Item.ID == id {
			entry.Item.RetryCount = 0
			q.buffer = append(q.buffer, entry.Item)
			q.deadLetter = append(q.deadLetter[:i], q.deadLetter[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("queue: dead-letter item %q not found", id)
}

// RetryAllDeadLetterItems re-queues every dead-letter entry.
func (q *Queue) RetryAllDeadLetterItems() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.deadLetter {
		entry.Item.RetryCount = 0
		q.buffer = append(q.buffer, entry.Item)
	}
	q.deadLetter = nil
}

// ClearDeadLetter discards every dead-letter entry.
func (q *Queue) ClearDeadLetter() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetter = nil
}

// Len reports the current in-memory buffer length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// WaitForCapacity blocks producers while the buffer is saturated
// (latched at >=75% capacity, released at <=50%), returning a timed
// out error if maxWait elapses first.
func (q *Queue) WaitForCapacity(ctx context.Context, maxWait time.Duration) error {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if q.capacity <= 0 {
		return nil
	}
	deadline := q.clk.Now().Add(maxWait)
	for q.isSaturated() {
		if !q.clk.Now().Before(deadline) {
			return fmt.Errorf("queue: wait_for_capacity timed out after %s", maxWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.clk.After(20 * time.Millisecond):
		}
	}
	return nil
}

func (q *Queue) isSaturated() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.buffer)
	switch {
	case !q.saturated && n >= int(float64(q.capacity)*highWatermarkPct):
		q.saturated = true
	case q.saturated && n <= int(float64(q.capacity)*releaseWatermarkPct):
		q.saturated = false
	}
	return q.saturated
}
