package vectorstore

import (
	"context"
	"time"
)

// VectorStore is the adapter boundary the folder matcher, embedding
// queue, and path coordinator depend on. It hides the backing engine
// (chromem-go) behind idempotent batch operations and similarity
// queries over three logical collections: files, file_chunks, folders.
type VectorStore interface {
	BatchUpsertFiles(ctx context.Context, docs []FileDoc) ([]UpsertSkip, error)
	BatchUpsertChunks(ctx context.Context, docs []ChunkDoc) ([]UpsertSkip, error)
	BatchUpsertFolders(ctx context.Context, docs []FolderDoc) ([]UpsertSkip, error)

	QueryFoldersByVector(ctx context.Context, vector []float32, k int) ([]ScoredFolder, error)
	QueryFoldersForFile(ctx context.Context, fileID string, k int) ([]ScoredFolder, error)

	GetFile(ctx context.Context, fileID string) (*FileDoc, error)
	ListFiles(ctx context.Context) ([]FileDoc, error)
	DeleteFile(ctx context.Context, fileID string) error

	MarkChunksOrphaned(ctx context.Context, fileIDs []string) error
	GetOrphanedChunks(ctx context.Context, maxAge time.Duration) ([]ChunkDoc, error)
	DeleteFileChunks(ctx context.Context, fileID string) error
	BatchDeleteFileChunks(ctx context.Context, fileIDs []string) error
	UpdateFileChunkPaths(ctx context.Context, updates []PathUpdate) error

	Heartbeat(ctx context.Context) error

	Persist(ctx context.Context, dir string) error
	Load(ctx context.Context, dir string) error

	CountFiles() int
	CountChunks() int
	CountFolders() int
}
