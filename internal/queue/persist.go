package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	atomicfile "github.com/natefinch/atomic"
)

// persist writes the current buffer to the sidecar atomically
// (tmp-file-then-rename via natefinch/atomic). An empty buffer
// unlinks the sidecar instead of writing an empty array.
func (q *Queue) persist() error {
	q.mu.Lock()
	buf := make([]QueueItem, len(q.buffer))
	copy(buf, q.buffer)
	q.mu.Unlock()

	if len(buf) == 0 {
		if _, err := os.Stat(q.sidecarPath); err == nil {
			return os.Remove(q.sidecarPath)
		}
		return nil
	}

	data, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return fmt.Errorf("queue: marshal sidecar: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(q.sidecarPath), 0o755); err != nil {
		return fmt.Errorf("queue: mkdir sidecar dir: %w", err)
	}

	return atomicfile.WriteFile(q.sidecarPath, bytes.NewReader(data))
}

// load reads the sidecar at construction time. A corrupt sidecar is
// renamed aside with a timestamp suffix and the queue starts empty.
func (q *Queue) load() error {
	data, err := os.ReadFile(q.sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var items []QueueItem
	if err := json.Unmarshal(data, &items); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", q.sidecarPath, q.clk.Now().UnixNano())
		if renameErr := os.Rename(q.sidecarPath, corruptPath); renameErr != nil {
			log.WithError(renameErr).Warn("failed to rename corrupt sidecar")
		} else {
			log.WithField("corrupt_path", corruptPath).Warn("sidecar corrupt, reset")
		}
		return nil
	}

	q.buffer = items
	return nil
}
