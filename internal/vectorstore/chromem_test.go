package vectorstore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
)

// mockEmbedder returns deterministic embeddings based on text content.
type mockEmbedder struct {
	dims int
}

func newMockEmbedder(dims int) *mockEmbedder { return &mockEmbedder{dims: dims} }

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.deterministicVector(text)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

func (m *mockEmbedder) deterministicVector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, ch := range text {
		idx := (int(ch) + i) % m.dims
		vec[idx] += 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func newTestStore(t *testing.T, dims int) (*ChromemStore, *mockEmbedder) {
	t.Helper()
	embedder := newMockEmbedder(dims)
	store, err := NewChromemStore(embedder, clock.NewFake(time.Now()))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	return store, embedder
}

func TestBatchUpsertFilesAndGet(t *testing.T) {
	ctx := context.Background()
	store, embedder := newTestStore(t, 16)

	vec, _ := embedder.Embed(ctx, []string{"a summary about invoices"})
	skips, err := store.BatchUpsertFiles(ctx, []FileDoc{
		{ID: "file1", Vector: vec[0], Meta: FileMeta{Path: "/a/invoice.pdf", Category: "Finance"}},
	})
	if err != nil {
		t.Fatalf("BatchUpsertFiles: %v", err)
	}
	if len(skips) != 0 {
		t.Errorf("unexpected skips: %v", skips)
	}
	if store.CountFiles() != 1 {
		t.Fatalf("expected 1 file, got %d", store.CountFiles())
	}

	got, err := store.GetFile(ctx, "file1")
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if got.Meta.Category != "Finance" {
		t.Errorf("unexpected category: %q", got.Meta.Category)
	}
}

func TestBatchUpsertFilesSkipsBadDimension(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t, 16)

	skips, err := store.BatchUpsertFiles(ctx, []FileDoc{
		{ID: "file1", Vector: []float32{1, 2, 3}, Meta: FileMeta{Path: "/a.txt"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skips) != 1 || skips[0].Reason != "dimension_mismatch" {
		t.Fatalf("expected dimension_mismatch skip, got %v", skips)
	}
	if store.CountFiles() != 0 {
		t.Errorf("expected nothing upserted, got %d", store.CountFiles())
	}
}

func TestBatchUpsertFilesIdempotent(t *testing.T) {
	ctx := context.Background()
	store, embedder := newTestStore(t, 16)
	vec, _ := embedder.Embed(ctx, []string{"text"})

	for i := 0; i < 2; i++ {
		if _, err := store.BatchUpsertFiles(ctx, []FileDoc{
			{ID: "file1", Vector: vec[0], Meta: FileMeta{Path: "/a.txt"}},
		}); err != nil {
			t.Fatalf("BatchUpsertFiles: %v", err)
		}
	}
	if store.CountFiles() != 1 {
		t.Errorf("expected idempotent upsert to leave 1 file, got %d", store.CountFiles())
	}
}

func TestQueryFoldersByVector(t *testing.T) {
	ctx := context.Background()
	store, embedder := newTestStore(t, 16)

	financeVec, _ := embedder.Embed(ctx, []string{"budgets and invoices"})
	travelVec, _ := embedder.Embed(ctx, []string{"landscape photos from vacation"})

	if _, err := store.BatchUpsertFolders(ctx, []FolderDoc{
		{ID: "folder:f1", Vector: financeVec[0], Meta: FolderMeta{FolderID: "f1", Name: "Finance"}},
		{ID: "folder:f2", Vector: travelVec[0], Meta: FolderMeta{FolderID: "f2", Name: "Travel"}},
	}); err != nil {
		t.Fatalf("BatchUpsertFolders: %v", err)
	}

	results, err := store.QueryFoldersByVector(ctx, financeVec[0], 2)
	if err != nil {
		t.Fatalf("QueryFoldersByVector: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Folder.Meta.Name != "Finance" {
		t.Errorf("expected top match Finance, got %s", results[0].Folder.Meta.Name)
	}
}

func TestQueryFoldersForFileRetries(t *testing.T) {
	ctx := context.Background()
	store, embedder := newTestStore(t, 16)
	vec, _ := embedder.Embed(ctx, []string{"budgets and invoices"})

	if _, err := store.BatchUpsertFolders(ctx, []FolderDoc{
		{ID: "folder:f1", Vector: vec[0], Meta: FolderMeta{FolderID: "f1", Name: "Finance"}},
	}); err != nil {
		t.Fatalf("BatchUpsertFolders: %v", err)
	}
	if _, err := store.BatchUpsertFiles(ctx, []FileDoc{
		{ID: "file1", Vector: vec[0], Meta: FileMeta{Path: "/a.txt"}},
	}); err != nil {
		t.Fatalf("BatchUpsertFiles: %v", err)
	}

	results, err := store.QueryFoldersForFile(ctx, "file1", 1)
	if err != nil {
		t.Fatalf("QueryFoldersForFile: %v", err)
	}
	if len(results) != 1 || results[0].Folder.Meta.Name != "Finance" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestMarkAndGetOrphanedChunks(t *testing.T) {
	ctx := context.Background()
	store, embedder := newTestStore(t, 16)
	vec, _ := embedder.Embed(ctx, []string{"chunk text"})

	if _, err := store.BatchUpsertChunks(ctx, []ChunkDoc{
		{ID: "chunk:file1:0", Vector: vec[0], Meta: ChunkMeta{FileID: "file1", ChunkIndex: 0, Content: "chunk text"}},
	}); err != nil {
		t.Fatalf("BatchUpsertChunks: %v", err)
	}

	if err := store.MarkChunksOrphaned(ctx, []string{"file1"}); err != nil {
		t.Fatalf("MarkChunksOrphaned: %v", err)
	}

	orphaned, err := store.GetOrphanedChunks(ctx, 0)
	if err != nil {
		t.Fatalf("GetOrphanedChunks: %v", err)
	}
	if len(orphaned) != 1 {
		t.Fatalf("expected 1 orphaned chunk, got %d", len(orphaned))
	}
}

func TestUpdateFileChunkPathsRewritesIDs(t *testing.T) {
	ctx := context.Background()
	store, embedder := newTestStore(t, 16)
	vec, _ := embedder.Embed(ctx, []string{"chunk text"})

	if _, err := store.BatchUpsertChunks(ctx, []ChunkDoc{
		{ID: "chunk:file1:0", Vector: vec[0], Meta: ChunkMeta{FileID: "file1", ChunkIndex: 0, Path: "/a.txt", Content: "chunk text"}},
	}); err != nil {
		t.Fatalf("BatchUpsertChunks: %v", err)
	}

	if err := store.UpdateFileChunkPaths(ctx, []PathUpdate{
		{OldFileID: "file1", NewFileID: "file2", NewPath: "/b.txt", NewName: "b.txt"},
	}); err != nil {
		t.Fatalf("UpdateFileChunkPaths: %v", err)
	}

	remaining, err := store.chunksForFile(ctx, "file1")
	if err != nil {
		t.Fatalf("chunksForFile: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected old file id chunks gone, got %d", len(remaining))
	}

	moved, err := store.chunksForFile(ctx, "file2")
	if err != nil {
		t.Fatalf("chunksForFile: %v", err)
	}
	if len(moved) != 1 || moved[0].ID != "chunk:file2:0" {
		t.Fatalf("expected rewritten chunk id, got %v", moved)
	}
}

func TestHeartbeat(t *testing.T) {
	store, _ := newTestStore(t, 16)
	if err := store.Heartbeat(context.Background()); err != nil {
		t.Fatalf("unexpected heartbeat error: %v", err)
	}
}
