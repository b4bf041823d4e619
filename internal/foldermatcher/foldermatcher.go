// Package foldermatcher implements the Semantic Folder Matcher: it
// upserts smart-folder embeddings into the vector store, embeds a
// file's analysis summary, and decides whether the resulting folder
// similarity should override the model's proposed category.
package foldermatcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
	"github.com/ziadkadry99/localsort-core/internal/modelruntime"
	"github.com/ziadkadry99/localsort-core/internal/vectorstore"
)

var log = logctx.For("foldermatcher")

const (
	// dedupWindow is how long an unchanged smart-folder set's
	// embeddings are considered fresh.
	dedupWindow = 30 * time.Second

	// semanticQueryTimeout bounds the folder-similarity query.
	semanticQueryTimeout = 10 * time.Second

	topK = 5

	// defaultLLMConfidence is used when the analyzer did not supply a
	// confidence value.
	defaultLLMConfidence = 0.7

	// CategorySourceEmbeddingOverride and CategorySourceLLMPreserved
	// are the two outcomes of the override decision.
	CategorySourceEmbeddingOverride = "embedding_override"
	CategorySourceLLMPreserved      = "llm_preserved"
)

// genericCategories are treated as non-specific: an embedding match can
// always override them regardless of LLM confidence ("LLM category is
// generic ... use effective_llm_conf = 0").
var genericCategories = map[string]bool{
	"documents": true,
	"files":     true,
	"work":      true,
	"general":   true,
	"other":     true,
	"misc":      true,
}

// semanticExtensions enriches the embedding input for uncommon file
// types whose extension alone carries little semantic signal. Common
// types (pdf, jpg, mp3, js, ...) are deliberately excluded to avoid
// false folder matches from ubiquitous extensions.
var semanticExtensions = map[string][]string{
	".stl":     {"3d", "print", "model", "mesh"},
	".obj":     {"3d", "model", "mesh"},
	".step":    {"3d", "cad", "engineering"},
	".stp":     {"3d", "cad", "engineering"},
	".gcode":   {"3d", "print", "printer"},
	".eml":     {"email", "message"},
	".ics":     {"calendar", "event", "schedule"},
	".gpx":     {"gps", "route", "map", "track"},
	".srt":     {"subtitle", "caption", "video"},
	".torrent": {"download", "share"},
	".ttf":     {"font", "typeface"},
	".otf":     {"font", "typeface"},
	".ipynb":   {"notebook", "data", "analysis"},
	".dwg":     {"cad", "drawing", "engineering"},
	".kml":     {"map", "location", "geo"},
}

// Embedder is the narrow surface the matcher needs from the model
// runtime facade.
type Embedder interface {
	EmbedText(ctx context.Context, model, text string, expectedDims int) (*modelruntime.EmbedResponse, error)
}

// SmartFolder is the subset of a configured destination folder the
// matcher needs to build and upsert its embedding.
type SmartFolder struct {
	ID          string
	Name        string
	Path        string
	Description string
}

// FileInput is the analysis material the matcher embeds and compares
// against the folder collection.
type FileInput struct {
	Summary          string
	Purpose          string
	Project          string
	Keywords         []string
	ContentType      string // non-empty for images
	ExtractedText    string
	FileExtension    string
	Category         string
	RawLLMConfidence *float64 // nil means "missing"

	// FolderNames is the configured smart-folder name set. A Category
	// that matches none of them is treated the same as a generic
	// category for confidence-zeroing purposes. Empty means "no folders
	// configured" and skips the match check.
	FolderNames []string
}

// MatchResult is the outcome of matching a file against the folder
// collection and applying the override decision.
type MatchResult struct {
	Vector              []float32
	Model               string
	TopFolders          []vectorstore.ScoredFolder
	Overridden          bool
	CategorySource      string
	LLMOriginalCategory string
	Category            string
	SuggestedFolder     string
	DestinationFolder   string
}

// Matcher upserts folder embeddings and matches files against them.
type Matcher struct {
	store       vectorstore.VectorStore
	embedder    Embedder
	clk         clock.Clock
	matchConf   float64

	mu          sync.Mutex
	lastUpsert  map[string]time.Time // fingerprint -> last upsert time
}

// New builds a Matcher. matchConfidence is the minimum cosine
// similarity score (config.FolderMatchConfidence) a smart folder must
// clear to be suggested.
func New(store vectorstore.VectorStore, embedder Embedder, clk clock.Clock, matchConfidence float64) *Matcher {
	return &Matcher{
		store:      store,
		embedder:   embedder,
		clk:        clk,
		matchConf:  matchConfidence,
		lastUpsert: make(map[string]time.Time),
	}
}

// fingerprint hashes the folder set's identity and content so an
// unchanged set of smart folders produces the same digest across runs.
func fingerprint(folders []SmartFolder) string {
	sorted := make([]SmartFolder, len(folders))
	copy(sorted, folders)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, f := range sorted {
		h.Write([]byte(f.ID))
		h.Write([]byte{0})
		h.Write([]byte(f.Name))
		h.Write([]byte{0})
		h.Write([]byte(f.Path))
		h.Write([]byte{0})
		h.Write([]byte(f.Description))
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// UpsertFolders embeds and upserts the given smart folders, skipping
// the work entirely if this exact folder set was upserted within the
// dedup window.
func (m *Matcher) UpsertFolders(ctx context.Context, folders []SmartFolder, model string) error {
	if len(folders) == 0 {
		return nil
	}
	fp := fingerprint(folders)

	m.mu.Lock()
	last, seen := m.lastUpsert[fp]
	fresh := seen && m.clk.Now().Sub(last) < dedupWindow
	m.mu.Unlock()
	if fresh {
		log.WithField("fingerprint", fp[:12]).Debug("folder set unchanged, skipping upsert")
		return nil
	}

	docs := make([]vectorstore.FolderDoc, 0, len(folders))
	for _, f := range folders {
		text := strings.TrimSpace(f.Name + ". " + f.Description)
		resp, err := m.embedder.EmbedText(ctx, model, text, 0)
		if err != nil {
			return fmt.Errorf("foldermatcher: embed folder %q: %w", f.ID, err)
		}
		if err := validateVector(resp.Vector); err != nil {
			return fmt.Errorf("foldermatcher: folder %q: %w", f.ID, err)
		}
		docs = append(docs, vectorstore.FolderDoc{
			ID:     "folder:" + f.ID,
			Vector: resp.Vector,
			Model:  resp.Model,
			Meta: vectorstore.FolderMeta{
				FolderID:    f.ID,
				Name:        f.Name,
				Path:        f.Path,
				Description: f.Description,
				Fingerprint: fp,
				UpdatedAt:   m.clk.Now(),
			},
		})
	}

	if _, err := m.store.BatchUpsertFolders(ctx, docs); err != nil {
		return fmt.Errorf("foldermatcher: upsert folders: %w", err)
	}

	m.mu.Lock()
	m.lastUpsert[fp] = m.clk.Now()
	m.mu.Unlock()
	return nil
}

// BuildEmbeddingInput concatenates the analysis fields the protocol
// embeds, enriched by the semantic-extension dictionary for uncommon
// file types.
func BuildEmbeddingInput(in FileInput) string {
	parts := make([]string, 0, 8)
	if in.Summary != "" {
		parts = append(parts, in.Summary)
	}
	if in.Purpose != "" {
		parts = append(parts, in.Purpose)
	}
	if in.Project != "" {
		parts = append(parts, in.Project)
	}
	if len(in.Keywords) > 0 {
		parts = append(parts, strings.Join(in.Keywords, ", "))
	}
	if in.ContentType != "" {
		parts = append(parts, in.ContentType)
	}
	if terms, ok := semanticExtensions[strings.ToLower(in.FileExtension)]; ok {
		parts = append(parts, strings.Join(terms, ", "))
	}
	text := strings.Join(parts, ". ")

	snippet := in.ExtractedText
	if len(snippet) > 2000 {
		snippet = snippet[:2000]
	}
	if snippet != "" {
		if text == "" {
			text = snippet
		} else {
			text = strings.TrimSpace(text + ". " + snippet)
		}
	}
	return text
}

func validateVector(v []float32) error {
	if len(v) == 0 {
		return errors.New("empty embedding vector")
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return errors.New("non-finite embedding vector")
		}
	}
	return nil
}

// Match embeds the file's analysis material, queries the folder
// collection for the top-k similar folders, and applies the generic-
// category override decision.
func (m *Matcher) Match(ctx context.Context, model string, in FileInput) (MatchResult, error) {
	text := BuildEmbeddingInput(in)
	resp, err := m.embedder.EmbedText(ctx, model, text, 0)
	if err != nil {
		return MatchResult{}, fmt.Errorf("foldermatcher: embed file: %w", err)
	}
	if err := validateVector(resp.Vector); err != nil {
		return MatchResult{}, fmt.Errorf("foldermatcher: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, semanticQueryTimeout)
	defer cancel()
	scored, err := m.store.QueryFoldersByVector(queryCtx, resp.Vector, topK)
	if err != nil {
		return MatchResult{}, fmt.Errorf("foldermatcher: query folders: %w", err)
	}

	result := MatchResult{
		Vector:     resp.Vector,
		Model:      resp.Model,
		TopFolders: scored,
		Category:   in.Category,
	}

	effectiveLLMConf := effectiveConfidence(in)

	if len(scored) == 0 {
		return result, nil
	}
	top := scored[0]

	if float64(top.Score) >= m.matchConf && float64(top.Score) > effectiveLLMConf {
		result.Overridden = true
		result.CategorySource = CategorySourceEmbeddingOverride
		result.LLMOriginalCategory = in.Category
		result.Category = top.Folder.Meta.Name
		result.SuggestedFolder = top.Folder.Meta.Name
		result.DestinationFolder = top.Folder.Meta.Path
	} else if float64(top.Score) >= m.matchConf {
		result.CategorySource = CategorySourceLLMPreserved
	}

	return result, nil
}

// effectiveConfidence resolves raw_llm_confidence: scaled to [0,1] if
// given on a 0-100 scale, defaulted to 0.7 if missing, and forced to 0
// for a generic category or one that matches none of the configured
// smart folders.
func effectiveConfidence(in FileInput) float64 {
	if in.Category == "" || genericCategories[strings.ToLower(in.Category)] {
		return 0
	}
	if len(in.FolderNames) > 0 && !matchesAnyFolder(in.Category, in.FolderNames) {
		return 0
	}
	if in.RawLLMConfidence == nil {
		return defaultLLMConfidence
	}
	c := *in.RawLLMConfidence
	if c > 1 {
		c = c / 100
	}
	return c
}

// matchesAnyFolder reports whether category equals one of names,
// case-insensitively.
func matchesAnyFolder(category string, names []string) bool {
	category = strings.ToLower(category)
	for _, name := range names {
		if strings.ToLower(name) == category {
			return true
		}
	}
	return false
}
