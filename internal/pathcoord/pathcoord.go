// Package pathcoord implements the PathCoordinator: the "Organize/Move"
// entry point that propagates a file's move or rename across the
// fileref registry, the analysis caches, the pending embedding
// queues, and the vector store, following the rule that on move the
// canonical id is recomputed and the old id is deleted from the files
// and file_chunks collections; folders are not touched.
package pathcoord

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/localsort-core/internal/cache"
	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/fileref"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
	"github.com/ziadkadry99/localsort-core/internal/queue"
	"github.com/ziadkadry99/localsort-core/internal/vectorstore"
)

var log = logctx.For("pathcoord")

// Coordinator propagates path changes across every collaborator that
// keys state off a file's path or canonical_file_id.
type Coordinator struct {
	refs    *fileref.Registry
	docCache *cache.Cache
	imgCache *cache.Cache
	queues  *queue.Manager
	store   vectorstore.VectorStore
	clk     clock.Clock
}

// New builds a Coordinator from its collaborators.
func New(refs *fileref.Registry, docCache, imgCache *cache.Cache, queues *queue.Manager, store vectorstore.VectorStore, clk clock.Clock) *Coordinator {
	if clk == nil {
		clk = clock.New()
	}
	return &Coordinator{refs: refs, docCache: docCache, imgCache: imgCache, queues: queues, store: store, clk: clk}
}

// Move propagates a rename/move of a tracked file from oldPath to
// newPath. It is idempotent: moving a file pathcoord has never seen
// does not fail; the fileref rename error is logged, and the cache,
// queue and vector-store steps find nothing to carry over.
func (c *Coordinator) Move(ctx context.Context, oldPath, newPath string, kind fileref.Kind) error {
	oldID := fileref.CanonicalID(oldPath, kind)
	newID := fileref.CanonicalID(newPath, kind)
	newName := baseName(newPath)

	if oldID == newID {
		return nil
	}

	if _, err := c.refs.Rename(oldID, newID, newPath, c.clk.Now()); err != nil {
		log.WithField("error", err).Warn("fileref rename failed, continuing with cache/queue/store propagation")
	}

	c.invalidateCaches(oldPath)

	if c.queues != nil {
		c.queues.UpdateByFilePath(oldPath, newPath)
	}

	if c.store != nil {
		if err := c.moveVectorStoreEntries(ctx, oldID, newID, newPath, newName); err != nil {
			return fmt.Errorf("pathcoord: move vector store entries: %w", err)
		}
	}

	return nil
}

// moveVectorStoreEntries re-inserts the file-level document under the
// recomputed id (preserving its vector and metadata, with path/name
// updated) and rewrites chunk documents in place, then deletes the old
// file-level id. Folders are never touched by a move.
func (c *Coordinator) moveVectorStoreEntries(ctx context.Context, oldID, newID, newPath, newName string) error {
	existing, err := c.store.GetFile(ctx, oldID)
	if err != nil {
		// Nothing persisted yet for this file; still make sure any
		// stray chunk metadata tracking the old path is corrected.
		return c.store.UpdateFileChunkPaths(ctx, []vectorstore.PathUpdate{
			{OldFileID: oldID, NewFileID: newID, NewPath: newPath, NewName: newName},
		})
	}

	moved := *existing
	moved.ID = newID
	moved.Meta.Path = newPath
	moved.Meta.Name = newName
	moved.Meta.UpdatedAt = c.clk.Now()

	if _, err := c.store.BatchUpsertFiles(ctx, []vectorstore.FileDoc{moved}); err != nil {
		return fmt.Errorf("upsert moved file doc: %w", err)
	}

	if err := c.store.UpdateFileChunkPaths(ctx, []vectorstore.PathUpdate{
		{OldFileID: oldID, NewFileID: newID, NewPath: newPath, NewName: newName},
	}); err != nil {
		return fmt.Errorf("update chunk paths: %w", err)
	}

	if err := c.store.DeleteFile(ctx, oldID); err != nil {
		return fmt.Errorf("delete old file doc: %w", err)
	}

	return nil
}

// Delete purges every collection's record of a file that no longer
// exists.
func (c *Coordinator) Delete(ctx context.Context, path string, kind fileref.Kind) error {
	id := fileref.CanonicalID(path, kind)

	if err := c.refs.Delete(id); err != nil {
		log.WithField("error", err).Warn("fileref delete failed, continuing with cache/queue/store purge")
	}

	c.invalidateCaches(path)

	if c.queues != nil {
		c.queues.RemoveByFilePath(path)
	}

	if c.store == nil {
		return nil
	}
	if err := c.store.DeleteFileChunks(ctx, id); err != nil {
		return fmt.Errorf("pathcoord: delete chunks for %q: %w", id, err)
	}
	if err := c.store.DeleteFile(ctx, id); err != nil {
		return fmt.Errorf("pathcoord: delete file %q: %w", id, err)
	}
	return nil
}

func (c *Coordinator) invalidateCaches(path string) {
	if c.docCache != nil {
		c.docCache.InvalidatePath(path)
	}
	if c.imgCache != nil {
		c.imgCache.InvalidatePath(path)
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
