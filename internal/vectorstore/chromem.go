package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/embeddings"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
)

var log = logctx.For("vectorstore")

const (
	collectionFiles   = "files"
	collectionChunks  = "file_chunks"
	collectionFolders = "folders"
)

var heartbeatBackoff = []time.Duration{0, 50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

// ChromemStore implements VectorStore with three chromem-go collections
// (files, chunks, folders) instead of a single undifferentiated one.
type ChromemStore struct {
	db       *chromem.DB
	files    *chromem.Collection
	chunks   *chromem.Collection
	folders  *chromem.Collection
	embedder embeddings.Embedder
	ef       chromem.EmbeddingFunc
	clk      clock.Clock
}

// NewChromemStore creates an in-memory ChromemStore with all three collections.
func NewChromemStore(embedder embeddings.Embedder, clk clock.Clock) (*ChromemStore, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	files, err := db.GetOrCreateCollection(collectionFiles, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create files collection: %w", err)
	}
	chunks, err := db.GetOrCreateCollection(collectionChunks, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create file_chunks collection: %w", err)
	}
	folders, err := db.GetOrCreateCollection(collectionFolders, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create folders collection: %w", err)
	}

	return &ChromemStore{
		db:       db,
		files:    files,
		chunks:   chunks,
		folders:  folders,
		embedder: embedder,
		ef:       ef,
		clk:      clk,
	}, nil
}

func (s *ChromemStore) validateVector(id string, vector []float32) (string, bool) {
	if id == "" {
		return "missing_id", false
	}
	if len(vector) == 0 {
		return "missing_vector", false
	}
	if s.embedder != nil && len(vector) != s.embedder.Dimensions() {
		return "dimension_mismatch", false
	}
	for _, v := range vector {
		if v != v { // NaN
			return "non_finite_vector", false
		}
	}
	return "", true
}

func (s *ChromemStore) BatchUpsertFiles(ctx context.Context, docs []FileDoc) ([]UpsertSkip, error) {
	var skips []UpsertSkip
	var good []chromem.Document
	for _, d := range docs {
		if reason, ok := s.validateVector(d.ID, d.Vector); !ok {
			skips = append(skips, UpsertSkip{ID: d.ID, Reason: reason})
			continue
		}
		good = append(good, chromem.Document{
			ID:        d.ID,
			Embedding: d.Vector,
			Content:   d.Meta.Summary,
			Metadata:  fileMetaToMap(d.Meta, d.Model),
		})
	}
	if len(good) == 0 {
		return skips, nil
	}
	if err := s.files.AddDocuments(ctx, good, 4); err != nil {
		return skips, fmt.Errorf("vectorstore: upsert files: %w", err)
	}
	return skips, nil
}

func (s *ChromemStore) BatchUpsertChunks(ctx context.Context, docs []ChunkDoc) ([]UpsertSkip, error) {
	var skips []UpsertSkip
	var good []chromem.Document
	for _, d := range docs {
		if reason, ok := s.validateVector(d.ID, d.Vector); !ok {
			skips = append(skips, UpsertSkip{ID: d.ID, Reason: reason})
			continue
		}
		good = append(good, chromem.Document{
			ID:        d.ID,
			Embedding: d.Vector,
			Content:   d.Meta.Content,
			Metadata:  chunkMetaToMap(d.Meta, d.Model),
		})
	}
	if len(good) == 0 {
		return skips, nil
	}
	if err := s.chunks.AddDocuments(ctx, good, 4); err != nil {
		return skips, fmt.Errorf("vectorstore: upsert chunks: %w", err)
	}
	return skips, nil
}

func (s *ChromemStore) BatchUpsertFolders(ctx context.Context, docs []FolderDoc) ([]UpsertSkip, error) {
	var skips []UpsertSkip
	var good []chromem.Document
	for _, d := range docs {
		if reason, ok := s.validateVector(d.ID, d.Vector); !ok {
			skips = append(skips, UpsertSkip{ID: d.ID, Reason: reason})
			continue
		}
		good = append(good, chromem.Document{
			ID:        d.ID,
			Embedding: d.Vector,
			Content:   d.Meta.Description,
			Metadata:  folderMetaToMap(d.Meta, d.Model),
		})
	}
	if len(good) == 0 {
		return skips, nil
	}
	if err := s.folders.AddDocuments(ctx, good, 4); err != nil {
		return skips, fmt.Errorf("vectorstore: upsert folders: %w", err)
	}
	return skips, nil
}

func (s *ChromemStore) QueryFoldersByVector(ctx context.Context, vector []float32, k int) ([]ScoredFolder, error) {
	if k <= 0 {
		k = 5
	}
	count := s.folders.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.folders.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query folders: %w", err)
	}

	out := make([]ScoredFolder, len(results))
	for i, r := range results {
		out[i] = ScoredFolder{
			Folder: FolderDoc{ID: r.ID, Vector: r.Embedding, Meta: mapToFolderMeta(r.Metadata)},
			Score:  scoreFromDistance(1 - r.Similarity),
		}
	}
	return out, nil
}

// QueryFoldersForFile resolves fileID's stored vector with up to 3
// read-after-write retries (50/100/200ms) before querying folders.
func (s *ChromemStore) QueryFoldersForFile(ctx context.Context, fileID string, k int) ([]ScoredFolder, error) {
	var doc *FileDoc
	var lastErr error
	for attempt, delay := range heartbeatBackoff {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		d, err := s.GetFile(ctx, fileID)
		if err == nil && d != nil {
			doc = d
			break
		}
		lastErr = err
		if attempt == len(heartbeatBackoff)-1 {
			break
		}
	}
	if doc == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("file %q not found after retries", fileID)
		}
		return nil, fmt.Errorf("vectorstore: query folders for file: %w", lastErr)
	}
	return s.QueryFoldersByVector(ctx, doc.Vector, k)
}

func (s *ChromemStore) GetFile(ctx context.Context, fileID string) (*FileDoc, error) {
	doc, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &FileDoc{ID: doc.ID, Vector: doc.Embedding, Model: doc.Metadata["model"], Meta: mapToFileMeta(doc.Metadata)}, nil
}

func (s *ChromemStore) DeleteFile(ctx context.Context, fileID string) error {
	return s.files.Delete(ctx, nil, nil, fileID)
}

func (s *ChromemStore) MarkChunksOrphaned(ctx context.Context, fileIDs []string) error {
	for _, fileID := range fileIDs {
		docs, err := s.chunksForFile(ctx, fileID)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			continue
		}
		now := s.clk.Now()
		var updated []chromem.Document
		for _, d := range docs {
			d.Meta.Orphaned = true
			d.Meta.OrphanedAt = now
			updated = append(updated, chromem.Document{
				ID:        d.ID,
				Embedding: d.Vector,
				Content:   d.Meta.Content,
				Metadata:  chunkMetaToMap(d.Meta, ""),
			})
		}
		if err := s.chunks.AddDocuments(ctx, updated, 4); err != nil {
			return fmt.Errorf("vectorstore: mark orphaned: %w", err)
		}
	}
	return nil
}

func (s *ChromemStore) GetOrphanedChunks(ctx context.Context, maxAge time.Duration) ([]ChunkDoc, error) {
	count := s.chunks.Count()
	if count == 0 {
		return nil, nil
	}
	results, err := s.chunks.Query(ctx, "", count, map[string]string{"orphaned": "true"}, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: get orphaned chunks: %w", err)
	}
	var out []ChunkDoc
	now := s.clk.Now()
	for _, r := range results {
		meta := mapToChunkMeta(r.Metadata)
		if maxAge > 0 && !meta.OrphanedAt.IsZero() && now.Sub(meta.OrphanedAt) > maxAge {
			continue
		}
		out = append(out, ChunkDoc{ID: r.ID, Vector: r.Embedding, Meta: meta})
	}
	return out, nil
}

func (s *ChromemStore) DeleteFileChunks(ctx context.Context, fileID string) error {
	return s.chunks.Delete(ctx, map[string]string{"file_id": fileID}, nil)
}

func (s *ChromemStore) BatchDeleteFileChunks(ctx context.Context, fileIDs []string) error {
	for _, id := range fileIDs {
		if err := s.DeleteFileChunks(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateFileChunkPaths rewrites chunk ids from chunk:{old}:{i} to
// chunk:{new}:{i} and updates fileId/path/name metadata, deleting the
// stale ids afterward.
func (s *ChromemStore) UpdateFileChunkPaths(ctx context.Context, updates []PathUpdate) error {
	for _, u := range updates {
		docs, err := s.chunksForFile(ctx, u.OldFileID)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			continue
		}

		var rewritten []chromem.Document
		var oldIDs []string
		for _, d := range docs {
			oldIDs = append(oldIDs, d.ID)
			d.Meta.FileID = u.NewFileID
			d.Meta.Path = u.NewPath
			d.Meta.Name = u.NewName
			d.Meta.UpdatedAt = s.clk.Now()
			newID := fmt.Sprintf("chunk:%s:%d", u.NewFileID, d.Meta.ChunkIndex)
			rewritten = append(rewritten, chromem.Document{
				ID:        newID,
				Embedding: d.Vector,
				Content:   d.Meta.Content,
				Metadata:  chunkMetaToMap(d.Meta, ""),
			})
		}

		if err := s.chunks.AddDocuments(ctx, rewritten, 4); err != nil {
			return fmt.Errorf("vectorstore: rewrite chunk ids: %w", err)
		}
		if err := s.chunks.Delete(ctx, nil, nil, oldIDs...); err != nil {
			return fmt.Errorf("vectorstore: delete stale chunk ids: %w", err)
		}
	}
	return nil
}

func (s *ChromemStore) chunksForFile(ctx context.Context, fileID string) ([]ChunkDoc, error) {
	count := s.chunks.Count()
	if count == 0 {
		return nil, nil
	}
	results, err := s.chunks.Query(ctx, "", count, map[string]string{"file_id": fileID}, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query chunks for file: %w", err)
	}
	out := make([]ChunkDoc, len(results))
	for i, r := range results {
		meta := mapToChunkMeta(r.Metadata)
		meta.Content = r.Content
		out[i] = ChunkDoc{ID: r.ID, Vector: r.Embedding, Meta: meta}
	}
	return out, nil
}

// Heartbeat probes collection availability with 3 retries and
// exponential backoff (50/100/200ms).
func (s *ChromemStore) Heartbeat(ctx context.Context) error {
	var lastErr error
	for i, delay := range heartbeatBackoff {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if s.files != nil && s.chunks != nil && s.folders != nil {
			return nil
		}
		lastErr = fmt.Errorf("vectorstore: collections not initialized (attempt %d)", i+1)
	}
	return lastErr
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/chromem.gob.gz", true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(dir+"/chromem.gob.gz", ""); err != nil {
		return fmt.Errorf("vectorstore: import: %w", err)
	}
	if c := s.db.GetCollection(collectionFiles, s.ef); c != nil {
		s.files = c
	}
	if c := s.db.GetCollection(collectionChunks, s.ef); c != nil {
		s.chunks = c
	}
	if c := s.db.GetCollection(collectionFolders, s.ef); c != nil {
		s.folders = c
	}
	return nil
}

// ListFiles returns every document in the files collection, for
// callers that need to rebuild a derived index (the relationship
// index's rebuild, in particular) from everything analyzed so far.
func (s *ChromemStore) ListFiles(ctx context.Context) ([]FileDoc, error) {
	count := s.files.Count()
	if count == 0 {
		return nil, nil
	}
	results, err := s.files.Query(ctx, "", count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list files: %w", err)
	}
	out := make([]FileDoc, len(results))
	for i, r := range results {
		out[i] = FileDoc{ID: r.ID, Vector: r.Embedding, Meta: mapToFileMeta(r.Metadata)}
	}
	return out, nil
}

func (s *ChromemStore) CountFiles() int   { return s.files.Count() }
func (s *ChromemStore) CountChunks() int  { return s.chunks.Count() }
func (s *ChromemStore) CountFolders() int { return s.folders.Count() }

func fileMetaToMap(m FileMeta, model string) map[string]string {
	return map[string]string{
		"path":              m.Path,
		"name":              m.Name,
		"file_extension":    m.FileExtension,
		"file_size":         strconv.FormatInt(m.FileSize, 10),
		"category":          m.Category,
		"confidence":        strconv.Itoa(m.Confidence),
		"type":              m.Type,
		"file_type":         m.FileType,
		"extraction_method": m.ExtractionMethod,
		"summary":           truncate(m.Summary, 2000),
		"tags":              strings.Join(m.Tags, ","),
		"keywords":          strings.Join(m.Keywords, ","),
		"date":              m.Date,
		"suggested_name":    m.SuggestedName,
		"key_entities":      strings.Join(m.KeyEntities, ","),
		"entity":            m.Entity,
		"project":           m.Project,
		"purpose":           truncate(m.Purpose, 1000),
		"reasoning":         truncate(m.Reasoning, 500),
		"document_type":     m.DocumentType,
		"extracted_text":    truncate(m.ExtractedText, 5000),
		"smart_folder":      m.SmartFolder,
		"smart_folder_path": m.SmartFolderPath,
		"content_type":      m.ContentType,
		"colors":            strings.Join(m.Colors, ","),
		"has_text":          strconv.FormatBool(m.HasText),
		"updated_at":        m.UpdatedAt.Format(time.RFC3339),
		"model":             model,
	}
}

func mapToFileMeta(m map[string]string) FileMeta {
	size, _ := strconv.ParseInt(m["file_size"], 10, 64)
	conf, _ := strconv.Atoi(m["confidence"])
	hasText, _ := strconv.ParseBool(m["has_text"])
	updated, _ := time.Parse(time.RFC3339, m["updated_at"])
	return FileMeta{
		Path:             m["path"],
		Name:             m["name"],
		FileExtension:    m["file_extension"],
		FileSize:         size,
		Category:         m["category"],
		Confidence:       conf,
		Type:             m["type"],
		FileType:         m["file_type"],
		ExtractionMethod: m["extraction_method"],
		Summary:          m["summary"],
		Tags:             splitNonEmpty(m["tags"]),
		Keywords:         splitNonEmpty(m["keywords"]),
		Date:             m["date"],
		SuggestedName:    m["suggested_name"],
		KeyEntities:      splitNonEmpty(m["key_entities"]),
		Entity:           m["entity"],
		Project:          m["project"],
		Purpose:          m["purpose"],
		Reasoning:        m["reasoning"],
		DocumentType:     m["document_type"],
		ExtractedText:    m["extracted_text"],
		SmartFolder:      m["smart_folder"],
		SmartFolderPath:  m["smart_folder_path"],
		ContentType:      m["content_type"],
		Colors:           splitNonEmpty(m["colors"]),
		HasText:          hasText,
		UpdatedAt:        updated,
	}
}

func chunkMetaToMap(m ChunkMeta, model string) map[string]string {
	return map[string]string{
		"file_id":     m.FileID,
		"path":        m.Path,
		"name":        m.Name,
		"chunk_index": strconv.Itoa(m.ChunkIndex),
		"orphaned":    strconv.FormatBool(m.Orphaned),
		"orphaned_at": m.OrphanedAt.Format(time.RFC3339),
		"updated_at":  m.UpdatedAt.Format(time.RFC3339),
		"model":       model,
	}
}

func mapToChunkMeta(m map[string]string) ChunkMeta {
	idx, _ := strconv.Atoi(m["chunk_index"])
	orphaned, _ := strconv.ParseBool(m["orphaned"])
	orphanedAt, _ := time.Parse(time.RFC3339, m["orphaned_at"])
	updated, _ := time.Parse(time.RFC3339, m["updated_at"])
	return ChunkMeta{
		FileID:     m["file_id"],
		Path:       m["path"],
		Name:       m["name"],
		ChunkIndex: idx,
		Orphaned:   orphaned,
		OrphanedAt: orphanedAt,
		UpdatedAt:  updated,
	}
}

func folderMetaToMap(m FolderMeta, model string) map[string]string {
	return map[string]string{
		"folder_id":   m.FolderID,
		"name":        m.Name,
		"path":        m.Path,
		"description": m.Description,
		"fingerprint": m.Fingerprint,
		"updated_at":  m.UpdatedAt.Format(time.RFC3339),
		"model":       model,
	}
}

func mapToFolderMeta(m map[string]string) FolderMeta {
	updated, _ := time.Parse(time.RFC3339, m["updated_at"])
	return FolderMeta{
		FolderID:    m["folder_id"],
		Name:        m["name"],
		Path:        m["path"],
		Description: m["description"],
		Fingerprint: m["fingerprint"],
		UpdatedAt:   updated,
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
