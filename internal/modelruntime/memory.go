package modelruntime

import (
	"container/list"
	"fmt"
	"sync"
)

const (
	gib                  = 1 << 30
	maxMemoryBudgetBytes = 16 * gib
)

// FreeMemoryFunc reports approximate free system memory in bytes.
// There's no portable stdlib call for this (it's OS-specific), so it's
// injectable; DefaultFreeMemory returns a conservative fixed estimate
// and a real implementation can be wired in by the CLI per-platform.
type FreeMemoryFunc func() uint64

// DefaultFreeMemory assumes 8GiB free, a deliberately conservative
// placeholder used when the caller doesn't wire in a platform-specific
// probe.
func DefaultFreeMemory() uint64 { return 8 * gib }

// ModelMemoryManager tracks which models are considered "loaded" and
// their approximate byte cost, evicting least-recently-used entries
// when projected usage would exceed min(0.7*free_system_memory,
// 16GiB). Loads are serialized: Acquire runs the
// eviction check inside the same critical section as accounting for
// the new model, so two concurrent loads can never together exceed
// the cap.
type ModelMemoryManager struct {
	freeMem FreeMemoryFunc

	mu       sync.Mutex
	entries  map[string]*list.Element // model name -> lru element
	lru      *list.List               // front = most recently used
	usedByte uint64
}

type memEntry struct {
	name  string
	bytes uint64
}

// NewModelMemoryManager creates a manager. A nil freeMem uses
// DefaultFreeMemory.
func NewModelMemoryManager(freeMem FreeMemoryFunc) *ModelMemoryManager {
	if freeMem == nil {
		freeMem = DefaultFreeMemory
	}
	return &ModelMemoryManager{
		freeMem: freeMem,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// budget returns the current memory cap: min(0.7*free, 16GiB).
func (m *ModelMemoryManager) budget() uint64 {
	soft := uint64(float64(m.freeMem()) * 0.7)
	if soft > maxMemoryBudgetBytes {
		return maxMemoryBudgetBytes
	}
	return soft
}

// Acquire records that modelName is now loaded, costing approxBytes,
// evicting least-recently-used models first if needed to stay under
// budget. Returns the names of any models evicted to make room.
func (m *ModelMemoryManager) Acquire(modelName string, approxBytes uint64) (evicted []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[modelName]; ok {
		m.lru.MoveToFront(el)
		return nil, nil
	}

	budget := m.budget()
	if approxBytes > budget {
		return nil, fmt.Errorf("modelruntime: model %q (%d bytes) exceeds memory budget (%d bytes) on its own", modelName, approxBytes, budget)
	}

	for m.usedByte+approxBytes > budget {
		back := m.lru.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*memEntry)
		m.lru.Remove(back)
		delete(m.entries, entry.name)
		m.usedByte -= entry.bytes
		evicted = append(evicted, entry.name)
	}

	el := m.lru.PushFront(&memEntry{name: modelName, bytes: approxBytes})
	m.entries[modelName] = el
	m.usedByte += approxBytes
	return evicted, nil
}

// Touch marks modelName as most-recently-used without changing its
// accounted size. No-op if the model isn't currently tracked.
func (m *ModelMemoryManager) Touch(modelName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[modelName]; ok {
		m.lru.MoveToFront(el)
	}
}

// Release forgets modelName entirely, freeing its accounted bytes.
func (m *ModelMemoryManager) Release(modelName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[modelName]
	if !ok {
		return
	}
	entry := el.Value.(*memEntry)
	m.lru.Remove(el)
	delete(m.entries, modelName)
	m.usedByte -= entry.bytes
}

// UsedBytes returns current accounted usage, for diagnostics.
func (m *ModelMemoryManager) UsedBytes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedByte
}

// Loaded reports whether modelName is currently tracked as loaded.
func (m *ModelMemoryManager) Loaded(modelName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[modelName]
	return ok
}
