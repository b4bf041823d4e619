// Package vectorstore adapts chromem-go into the three logical
// collections the analysis pipeline needs — files, file_chunks, and
// folders — hiding engine specifics behind batch upsert, similarity
// query, and chunk-lifecycle operations with read-after-write retry.
package vectorstore

import "time"

// FileMeta is the metadata attached to a `files` collection entry.
type FileMeta struct {
	Path             string
	Name             string
	FileExtension    string
	FileSize         int64
	Category         string
	Confidence       int
	Type             string
	FileType         string
	ExtractionMethod string
	Summary          string
	Tags             []string
	Keywords         []string
	Date             string
	SuggestedName    string
	KeyEntities      []string
	Entity           string
	Project          string
	Purpose          string
	Reasoning        string
	DocumentType     string
	ExtractedText    string
	SmartFolder      string
	SmartFolderPath  string
	ContentType      string
	Colors           []string
	HasText          bool
	UpdatedAt        time.Time
}

// FileDoc is a file-level vector store entry. ID is the canonical_file_id.
type FileDoc struct {
	ID     string
	Vector []float32
	Model  string
	Meta   FileMeta
}

// ChunkMeta is the metadata attached to a `file_chunks` collection entry.
type ChunkMeta struct {
	FileID     string
	Path       string
	Name       string
	ChunkIndex int
	Content    string
	Orphaned   bool
	OrphanedAt time.Time
	UpdatedAt  time.Time
}

// ChunkDoc is a chunk-level vector store entry. ID is
// "chunk:{fileId}:{chunkIndex}".
type ChunkDoc struct {
	ID     string
	Vector []float32
	Model  string
	Meta   ChunkMeta
}

// FolderMeta is the metadata attached to a `folders` collection entry.
type FolderMeta struct {
	FolderID    string
	Name        string
	Path        string
	Description string
	Fingerprint string
	UpdatedAt   time.Time
}

// FolderDoc is a folder-level vector store entry. ID is
// "folder:{folderId}".
type FolderDoc struct {
	ID     string
	Vector []float32
	Model  string
	Meta   FolderMeta
}

// ScoredFolder pairs a folder document with its similarity score.
type ScoredFolder struct {
	Folder FolderDoc
	Score  float32
}

// PathUpdate describes a single file's path having changed; used by
// updateFileChunkPaths and by the file-collection rename path.
type PathUpdate struct {
	OldFileID string
	NewFileID string
	NewPath   string
	NewName   string
}

// UpsertSkip records why a batch entry was skipped instead of upserted.
type UpsertSkip struct {
	ID     string
	Reason string
}

// scoreFromDistance converts a cosine distance into a normalized
// [0,1] similarity score.
func scoreFromDistance(distance float32) float32 {
	score := 1 - distance/2
	if score < 0 {
		return 0
	}
	return score
}
