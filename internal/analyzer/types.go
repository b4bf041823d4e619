// Package analyzer implements the Analyzer orchestrators: the 17-step
// algorithm that turns a file into a normalized AnalysisResult,
// applies hallucination validation, invokes the folder matcher, and
// emits an embedding request to the queue.
package analyzer

import (
	"errors"
	"time"
)

// Kind distinguishes the two orchestrator flavors the algorithm runs
// for.
type Kind string

const (
	KindDocument Kind = "doc"
	KindImage    Kind = "image"
)

// FileRef identifies a file under analysis.
type FileRef struct {
	Path      string
	Kind      Kind
	Extension string
	Size      int64
	ModTime   time.Time

	// Language and IsTestFile are optional hints a directory walk can
	// supply (source-code language detection, test-fixture detection);
	// the document prompt folds them in as context when present. Both
	// are zero-valued for single-file analysis.
	Language   string
	IsTestFile bool
}

// ContentType classifies the analyzed content.
type ContentType string

const (
	ContentTextDocument ContentType = "text_document"
	ContentPhotograph   ContentType = "photograph"
	ContentScreenshot   ContentType = "screenshot"
	ContentOther        ContentType = "other"
	ContentUnknown      ContentType = "unknown"
)

// CategorySource records where the final category came from.
type CategorySource string

const (
	SourceLLM                    CategorySource = "llama"
	SourceFilenameFallback       CategorySource = "filename_fallback"
	SourceFilenameFinancial      CategorySource = "filename_financial_override"
	SourceEmbeddingOverride      CategorySource = "embedding_override"
	SourceLLMPreserved           CategorySource = "llm_preserved"
)

// AnalysisResult is the normalized, validated outcome of analyzing one
// file.
type AnalysisResult struct {
	FilePath      string
	Category      string
	SuggestedName string
	Keywords      []string
	Confidence    int
	ContentType   ContentType
	Summary       string
	Purpose       string
	Project       string
	Entity        string
	DocumentType  string
	KeyEntities   []string
	Colors        []string // images only
	HasText       bool     // images only
	Date          string   // YYYY-MM-DD, optional
	ExtractedText string

	CategorySource          CategorySource
	LLMOriginalCategory     string
	SuggestedFolder         string
	DestinationFolder       string
	HallucinationDetected   bool

	IsFallback       bool
	AnalysisWarning  string
	Error            string

	Vector []float32
	Model  string
}

// Opts controls a single Analyze call.
type Opts struct {
	BypassCache bool
}

// Error taxonomy.
var (
	ErrFileNotFound          = errors.New("analyzer: file not found")
	ErrFileDeletedDuringRead = errors.New("analyzer: file deleted during read")
	ErrFileTooLarge          = errors.New("analyzer: file too large")
	ErrEmptyFile             = errors.New("analyzer: empty file")
	ErrUnsupportedFormat     = errors.New("analyzer: unsupported format")
)
