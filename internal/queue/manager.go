package queue

import (
	"context"
	"fmt"
)

// Manager owns the two stage queues and fans cross-stage operations
// (path propagation, shutdown) out to both.
type Manager struct {
	Analysis *Queue
	Organize *Queue
}

// NewManager wraps pre-constructed analysis and organize queues.
func NewManager(analysis, organize *Queue) *Manager {
	return &Manager{Analysis: analysis, Organize: organize}
}

// Queue returns the stage queue for stage, or an error for an unknown
// stage — callers must fail closed rather than silently drop items.
func (m *Manager) Queue(stage Stage) (*Queue, error) {
	switch stage {
	case StageAnalysis:
		return m.Analysis, nil
	case StageOrganize:
		return m.Organize, nil
	default:
		return nil, fmt.Errorf("queue: unknown stage %q", stage)
	}
}

// UpdateByFilePath propagates a move across both stage queues.
func (m *Manager) UpdateByFilePath(oldPath, newPath string) {
	m.Analysis.UpdateByFilePath(oldPath, newPath)
	m.Organize.UpdateByFilePath(oldPath, newPath)
}

// RemoveByFilePath propagates a deletion across both stage queues.
func (m *Manager) RemoveByFilePath(path string) {
	m.Analysis.RemoveByFilePath(path)
	m.Organize.RemoveByFilePath(path)
}

// ForceFlushAll flushes both queues synchronously.
func (m *Manager) ForceFlushAll(ctx context.Context) error {
	if err := m.Analysis.ForceFlush(ctx); err != nil {
		return err
	}
	return m.Organize.ForceFlush(ctx)
}

// ShutdownAll drains both queues deterministically, collecting errors
// from both rather than stopping at the first.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	errAnalysis := m.Analysis.Shutdown(ctx)
	errOrganize := m.Organize.Shutdown(ctx)
	if errAnalysis != nil || errOrganize != nil {
		return fmt.Errorf("queue: shutdown errors: analysis=%v organize=%v", errAnalysis, errOrganize)
	}
	return nil
}
