package vectorstore

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/localsort-core/internal/queue"
)

// QueueSink adapts a VectorStore into a queue.FlushSink: it routes each
// flushed item to the files, file_chunks, or folders collection by its
// QueueItem.Type(), reading metadata back out of the item's loosely
// typed Meta map the way the analyzer populated it.
type QueueSink struct {
	Store VectorStore
}

// NewQueueSink wraps store as a queue.FlushSink.
func NewQueueSink(store VectorStore) *QueueSink {
	return &QueueSink{Store: store}
}

func (s *QueueSink) Flush(ctx context.Context, items []queue.QueueItem) ([]queue.FlushFailure, error) {
	var (
		files   []FileDoc
		chunks  []ChunkDoc
		folders []FolderDoc
	)

	for _, item := range items {
		switch item.Type() {
		case queue.ItemTypeChunk:
			chunks = append(chunks, chunkDocFromItem(item))
		case queue.ItemTypeFolder:
			folders = append(folders, folderDocFromItem(item))
		default:
			files = append(files, fileDocFromItem(item))
		}
	}

	var failures []queue.FlushFailure

	if len(files) > 0 {
		skips, err := s.Store.BatchUpsertFiles(ctx, files)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: flush files: %w", err)
		}
		failures = append(failures, skipsToFailures(skips)...)
	}
	if len(chunks) > 0 {
		skips, err := s.Store.BatchUpsertChunks(ctx, chunks)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: flush chunks: %w", err)
		}
		failures = append(failures, skipsToFailures(skips)...)
	}
	if len(folders) > 0 {
		skips, err := s.Store.BatchUpsertFolders(ctx, folders)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: flush folders: %w", err)
		}
		failures = append(failures, skipsToFailures(skips)...)
	}

	return failures, nil
}

func skipsToFailures(skips []UpsertSkip) []queue.FlushFailure {
	if len(skips) == 0 {
		return nil
	}
	out := make([]queue.FlushFailure, len(skips))
	for i, s := range skips {
		out[i] = queue.FlushFailure{ID: s.ID, Err: fmt.Errorf("%s", s.Reason)}
	}
	return out
}

func metaString(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func metaInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func metaInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func metaBool(m map[string]interface{}, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func metaStrings(m map[string]interface{}, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func fileDocFromItem(item queue.QueueItem) FileDoc {
	m := item.Meta
	return FileDoc{
		ID:     item.ID,
		Vector: item.Vector,
		Model:  item.Model,
		Meta: FileMeta{
			Path:            metaString(m, "path"),
			Name:            metaString(m, "name"),
			FileExtension:   metaString(m, "fileExtension"),
			FileSize:        metaInt64(m, "fileSize"),
			Category:        metaString(m, "category"),
			Confidence:      metaInt(m, "confidence"),
			Type:            metaString(m, "contentType"),
			FileType:        metaString(m, "contentType"),
			Summary:         metaString(m, "summary"),
			Tags:            metaStrings(m, "keywords"),
			Keywords:        metaStrings(m, "keywords"),
			Date:            metaString(m, "date"),
			SuggestedName:   metaString(m, "suggestedName"),
			KeyEntities:     metaStrings(m, "keyEntities"),
			Entity:          metaString(m, "entity"),
			Project:         metaString(m, "project"),
			Purpose:         metaString(m, "purpose"),
			DocumentType:    metaString(m, "documentType"),
			ExtractedText:   metaString(m, "extractedText"),
			SmartFolder:     metaString(m, "smartFolder"),
			SmartFolderPath: metaString(m, "smartFolderPath"),
			ContentType:     metaString(m, "contentType"),
			Colors:          metaStrings(m, "colors"),
			HasText:         metaBool(m, "hasText"),
			UpdatedAt:       item.UpdatedAt,
		},
	}
}

func chunkDocFromItem(item queue.QueueItem) ChunkDoc {
	m := item.Meta
	return ChunkDoc{
		ID:     item.ID,
		Vector: item.Vector,
		Model:  item.Model,
		Meta: ChunkMeta{
			FileID:     metaString(m, "fileId"),
			Path:       metaString(m, "path"),
			Name:       metaString(m, "name"),
			ChunkIndex: metaInt(m, "chunkIndex"),
			Content:    metaString(m, "content"),
			UpdatedAt:  item.UpdatedAt,
		},
	}
}

func folderDocFromItem(item queue.QueueItem) FolderDoc {
	m := item.Meta
	return FolderDoc{
		ID:     item.ID,
		Vector: item.Vector,
		Model:  item.Model,
		Meta: FolderMeta{
			FolderID:    metaString(m, "folderId"),
			Name:        metaString(m, "name"),
			Path:        metaString(m, "path"),
			Description: metaString(m, "description"),
			Fingerprint: metaString(m, "fingerprint"),
			UpdatedAt:   item.UpdatedAt,
		},
	}
}
