package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/queue"
)

func TestQueueSinkRoutesFileItemToFilesCollection(t *testing.T) {
	store, _ := newTestStore(t, 8)
	sink := NewQueueSink(store)
	ctx := context.Background()

	item := queue.QueueItem{
		ID:        "file:abc",
		Vector:    []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8},
		Model:     "test-model",
		UpdatedAt: time.Now(),
		Meta: map[string]interface{}{
			"path":     "/tmp/report.pdf",
			"name":     "report.pdf",
			"category": "Finance",
		},
	}

	failures, err := sink.Flush(ctx, []queue.QueueItem{item})
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %+v", failures)
	}

	doc, err := store.GetFile(ctx, "file:abc")
	if err != nil || doc == nil {
		t.Fatalf("expected file doc to be upserted, got %+v err=%v", doc, err)
	}
	if doc.Meta.Path != "/tmp/report.pdf" || doc.Meta.Category != "Finance" {
		t.Fatalf("unexpected file meta: %+v", doc.Meta)
	}
}

func TestQueueSinkRoutesChunkAndFolderItemsSeparately(t *testing.T) {
	store, _ := newTestStore(t, 8)
	sink := NewQueueSink(store)
	ctx := context.Background()

	vector := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	items := []queue.QueueItem{
		{
			ID:     "chunk:file:abc:0",
			Vector: vector,
			Model:  "test-model",
			Meta: map[string]interface{}{
				"fileId":     "file:abc",
				"path":       "/tmp/report.pdf",
				"chunkIndex": 0,
				"content":    "chunk text",
			},
		},
		{
			ID:     "folder:finance",
			Vector: vector,
			Model:  "test-model",
			Meta: map[string]interface{}{
				"folderId": "finance",
				"name":     "Finance",
			},
		},
	}

	if _, err := sink.Flush(ctx, items); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if store.CountChunks() != 1 {
		t.Fatalf("expected one chunk persisted, got %d", store.CountChunks())
	}
	if store.CountFolders() != 1 {
		t.Fatalf("expected one folder persisted, got %d", store.CountFolders())
	}
}
