package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/ziadkadry99/localsort-core/internal/cache"
	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/config"
	"github.com/ziadkadry99/localsort-core/internal/extractor"
	"github.com/ziadkadry99/localsort-core/internal/foldermatcher"
	"github.com/ziadkadry99/localsort-core/internal/gate"
	"github.com/ziadkadry99/localsort-core/internal/logctx"
	"github.com/ziadkadry99/localsort-core/internal/modelruntime"
	"github.com/ziadkadry99/localsort-core/internal/queue"
	"github.com/ziadkadry99/localsort-core/internal/vectorstore"
)

var log = logctx.For("analyzer")

// ModelRuntime is the narrow surface the analyzer calls through; it
// is satisfied by *modelruntime.Runtime.
type ModelRuntime interface {
	HealthCheck(ctx context.Context) (*modelruntime.HealthStatus, error)
	AnalyzeText(ctx context.Context, req modelruntime.TextRequest) (*modelruntime.Response, error)
	AnalyzeImage(ctx context.Context, req modelruntime.ImageRequest) (*modelruntime.Response, error)
	EmbedText(ctx context.Context, model, text string, expectedDims int) (*modelruntime.EmbedResponse, error)
	SupportsVision() bool
}

// recoverable errors are retried exactly once with bypass_cache=true.
func isRecoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "empty response") ||
		strings.Contains(msg, "parse")
}

// Analyzer turns a FileRef into a normalized, validated, matched
// AnalysisResult and emits an embedding request to the queue.
type Analyzer struct {
	runtime   ModelRuntime
	extractor extractor.ContentExtractor
	docCache  *cache.Cache
	imgCache  *cache.Cache
	matcher   *foldermatcher.Matcher
	queues    *queue.Manager
	cfg       *config.Config
	clk       clock.Clock

	sf singleflight.Group
}

// New builds an Analyzer from its collaborators.
func New(
	runtime ModelRuntime,
	ext extractor.ContentExtractor,
	docCache, imgCache *cache.Cache,
	matcher *foldermatcher.Matcher,
	queues *queue.Manager,
	cfg *config.Config,
	clk clock.Clock,
) *Analyzer {
	if clk == nil {
		clk = clock.New()
	}
	return &Analyzer{
		runtime:   runtime,
		extractor: ext,
		docCache:  docCache,
		imgCache:  imgCache,
		matcher:   matcher,
		queues:    queues,
		cfg:       cfg,
		clk:       clk,
	}
}

// Analyze runs the full 17-step algorithm for ref.
func (a *Analyzer) Analyze(ctx context.Context, ref FileRef, opts Opts) (*AnalysisResult, error) {
	// Step 1: supported-format gate.
	if !isSupportedExtension(ref.Extension) {
		return &AnalysisResult{
			FilePath:   ref.Path,
			Category:   "unsupported",
			Confidence: 0,
			IsFallback: true,
			Error:      ErrUnsupportedFormat.Error(),
		}, nil
	}

	// Step 2: preflight.
	health, err := a.runtime.HealthCheck(ctx)
	if err != nil || !health.Healthy {
		return a.filenameFallback(ref, 58, "model runtime unhealthy"), nil
	}

	if ref.Size == 0 {
		return nil, fmt.Errorf("analyzer: %s: %w", ref.Path, ErrEmptyFile)
	}

	folders := a.cfg.SmartFolders
	modelName := a.cfg.TextModel
	if ref.Kind == KindImage {
		modelName = a.cfg.VisionModel
	}

	// Step 4: cache probe.
	sig := signature(modelName, folders, ref.Path, ref.Size, ref.ModTime.UnixMilli())
	c := a.docCache
	if ref.Kind == KindImage {
		c = a.imgCache
	}
	if !opts.BypassCache {
		if cached, ok := c.Get(sig); ok {
			if result, ok := cached.(*AnalysisResult); ok {
				return result, nil
			}
		}
	}

	result, err := a.analyzeUncached(ctx, ref, folders, modelName, opts)
	if err != nil {
		return nil, err
	}

	// Step 16: cache write, unless bypass_cache.
	if !opts.BypassCache {
		c.Set(sig, result)
	}

	// Step 17: embedding request.
	a.maybeEnqueue(ctx, ref, result)

	return result, nil
}

func (a *Analyzer) analyzeUncached(ctx context.Context, ref FileRef, folders []config.SmartFolder, modelName string, opts Opts) (*AnalysisResult, error) {
	// Step 3: stat & read via the content extractor.
	extracted, err := a.extractor.ExtractText(ctx, ref.Path, extractor.ExtractOptions{MaxChars: 100_000})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("analyzer: %s: %w", ref.Path, ErrFileDeletedDuringRead)
		}
		return nil, fmt.Errorf("analyzer: extract text: %w", err)
	}

	var ocrSnippet string
	var imageBytes []byte
	var exifDate string
	if ref.Kind == KindImage {
		raw, readErr := a.extractor.ReadBytes(ctx, ref.Path)
		if readErr != nil {
			return nil, fmt.Errorf("analyzer: read image: %w", readErr)
		}
		processed, procErr := a.extractor.PreprocessImage(ctx, raw, ref.Extension)
		if procErr != nil {
			return a.filenameFallback(ref, 55, procErr.Error()), nil
		}
		imageBytes = processed
		if date, ok := a.extractor.ExtractEXIFDate(ctx, raw); ok {
			exifDate = date
		}

		// Step 6: OCR pre-pass trigger (filename hint). The OCR
		// boundary collaborator itself lives outside this module;
		// extract_text on the raw bytes is the best this module can
		// do natively, and it legitimately returns empty for images.
		if containsAnyTerm(filepath.Base(ref.Path), ocrHintTerms) {
			if snippetResult, _ := a.extractor.ExtractText(ctx, ref.Path, extractor.ExtractOptions{MaxChars: 2000}); snippetResult.Method != extractor.MethodNone {
				ocrSnippet = snippetResult.Text
			}
		}
	}

	// Step 8: model call, deduplicated by {type, filename, content_hash,
	// model, folder_set_hash}.
	dedupKey := dedupKeyFor(ref, extracted.Text, modelName, folders)
	respAny, err, _ := a.sf.Do(dedupKey, func() (interface{}, error) {
		return a.callModel(ctx, ref, extracted.Text, ocrSnippet, imageBytes, folders, modelName)
	})
	if err != nil && isRecoverable(err) && !opts.BypassCache {
		// Step 12: retry exactly once with bypass_cache=true.
		return a.analyzeUncached(ctx, ref, folders, modelName, Opts{BypassCache: true})
	}
	if err != nil {
		return a.filenameFallback(ref, 58, err.Error()), nil
	}
	resp := respAny.(*modelruntime.Response)

	// Step 9: parse, with one repair attempt.
	raw, parseErr := parseRawAnalysis(resp.Content)
	if parseErr != nil {
		repaired := tryRepairJSON(resp.Content)
		raw, parseErr = parseRawAnalysis(repaired)
	}
	if parseErr != nil {
		return a.filenameFallback(ref, 62, "failed to parse model response"), nil
	}

	// Step 10: normalize.
	result := normalize(raw, ref.Path)
	result.ExtractedText = truncateText(extracted.Text, 5000)
	if result.Date == "" && exifDate != "" {
		result.Date = exifDate
	}

	// Step 11: hallucination validation.
	validateHallucination(result, ref.Path, ocrSnippet)

	// Step 13: OCR post-pass, images suggesting textual content below
	// the confidence threshold.
	if ref.Kind == KindImage && result.ContentType == ContentTextDocument {
		threshold := a.cfg.OCRPostPassConfidenceSkipThreshold
		if threshold == 0 {
			threshold = 88
		}
		if result.Confidence < threshold && ocrSnippet == "" {
			if snippetResult, _ := a.extractor.ExtractText(ctx, ref.Path, extractor.ExtractOptions{MaxChars: 2000}); snippetResult.Method != extractor.MethodNone {
				validateHallucination(result, ref.Path, snippetResult.Text)
			}
		}
	}

	// Step 14/15: folder match + normalize category to folder set.
	a.applyFolderMatch(ctx, ref, modelName, result)
	normalizeCategoryToFolders(result, folders)

	return result, nil
}

// callModel builds the prompt and invokes the text or image analysis
// endpoint.
func (a *Analyzer) callModel(ctx context.Context, ref FileRef, text, ocrSnippet string, imageBytes []byte, folders []config.SmartFolder, modelName string) (*modelruntime.Response, error) {
	if ref.Kind == KindImage {
		if !a.runtime.SupportsVision() {
			return nil, fmt.Errorf("analyzer: %w", modelruntime.ErrModelUnavailable)
		}
		prompt := buildImagePrompt(ref.Path, folders, ocrSnippet)
		return a.runtime.AnalyzeImage(ctx, modelruntime.ImageRequest{
			Model:       modelName,
			Prompt:      prompt,
			ImageBytes:  imageBytes,
			MaxTokens:   2048,
			Temperature: 0.1,
			JSONMode:    true,
		})
	}
	languageHint := ref.Language
	if ref.IsTestFile && languageHint != "" {
		languageHint += " test fixture"
	}
	messages := buildDocumentMessages(ref.Path, text, folders, languageHint)
	return a.runtime.AnalyzeText(ctx, modelruntime.TextRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   2048,
		Temperature: 0.1,
		JSONMode:    true,
	})
}

// applyFolderMatch invokes the semantic folder matcher and folds its
// override decision into result.
func (a *Analyzer) applyFolderMatch(ctx context.Context, ref FileRef, modelName string, result *AnalysisResult) {
	if a.matcher == nil || len(a.cfg.SmartFolders) == 0 {
		return
	}

	matcherFolders := make([]foldermatcher.SmartFolder, len(a.cfg.SmartFolders))
	folderNames := make([]string, len(a.cfg.SmartFolders))
	for i, f := range a.cfg.SmartFolders {
		matcherFolders[i] = foldermatcher.SmartFolder{ID: f.ID, Name: f.Name, Path: f.Path, Description: f.Description}
		folderNames[i] = f.Name
	}
	if err := a.matcher.UpsertFolders(ctx, matcherFolders, a.cfg.EmbeddingModel); err != nil {
		log.WithField("error", err).Warn("folder upsert failed, proceeding without refreshed folder embeddings")
	}

	conf := float64(result.Confidence)
	match, err := a.matcher.Match(ctx, a.cfg.EmbeddingModel, foldermatcher.FileInput{
		Summary:          result.Summary,
		Purpose:          result.Purpose,
		Project:          result.Project,
		Keywords:         result.Keywords,
		ContentType:      string(result.ContentType),
		ExtractedText:    result.ExtractedText,
		FileExtension:    ref.Extension,
		Category:         result.Category,
		RawLLMConfidence: &conf,
		FolderNames:      folderNames,
	})
	if err != nil {
		log.WithField("error", err).Warn("folder match failed, keeping model category")
		return
	}

	result.Vector = match.Vector
	result.Model = match.Model
	if match.Overridden {
		result.LLMOriginalCategory = match.LLMOriginalCategory
		result.Category = match.Category
		result.CategorySource = SourceEmbeddingOverride
		result.SuggestedFolder = match.SuggestedFolder
		result.DestinationFolder = match.DestinationFolder
	} else if match.CategorySource == foldermatcher.CategorySourceLLMPreserved {
		result.CategorySource = SourceLLMPreserved
	}
}

// normalizeCategoryToFolders matches result.Category against the
// configured folder names (exact, then case-insensitive, then
// canonical alnum-only).
func normalizeCategoryToFolders(result *AnalysisResult, folders []config.SmartFolder) {
	if len(folders) == 0 || result.Category == "" {
		return
	}
	for _, f := range folders {
		if f.Name == result.Category {
			return
		}
	}
	lower := strings.ToLower(result.Category)
	for _, f := range folders {
		if strings.ToLower(f.Name) == lower {
			result.Category = f.Name
			return
		}
	}
	canon := canonicalAlnum(result.Category)
	for _, f := range folders {
		if canonicalAlnum(f.Name) == canon {
			result.Category = f.Name
			return
		}
	}
}

func canonicalAlnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// maybeEnqueue emits the precomputed embedding to the queue if the
// gate (§4.6) allows it, per step 17.
func (a *Analyzer) maybeEnqueue(ctx context.Context, ref FileRef, result *AnalysisResult) {
	if len(result.Vector) == 0 || a.queues == nil {
		return
	}
	isInSmartFolder := result.DestinationFolder != "" || result.SuggestedFolder != ""
	decision := gate.Evaluate(gate.StageAnalysis, isInSmartFolder, gate.Settings{
		EmbeddingTiming:        a.cfg.EmbeddingTiming,
		DefaultEmbeddingPolicy: a.cfg.DefaultEmbeddingPolicy,
		EmbeddingScope:         a.cfg.EmbeddingScope,
	})
	if !decision.ShouldEmbed {
		return
	}

	q, err := a.queues.Queue(queue.StageAnalysis)
	if err != nil {
		log.WithField("error", err).Error("no analysis queue configured")
		return
	}

	id := CanonicalFileID(ref.Path, ref.Kind)
	item := queue.QueueItem{
		ID:     id,
		Vector: result.Vector,
		Model:  result.Model,
		Meta:   fileMetaMap(ref, result),
	}
	if err := q.Enqueue(item); err != nil {
		log.WithField("error", err).Warn("failed to enqueue embedding")
	}
}

func fileMetaMap(ref FileRef, result *AnalysisResult) map[string]interface{} {
	return map[string]interface{}{
		"path":            ref.Path,
		"name":            filepath.Base(ref.Path),
		"fileExtension":   ref.Extension,
		"fileSize":        ref.Size,
		"category":        result.Category,
		"confidence":      result.Confidence,
		"summary":         truncateText(result.Summary, 2000),
		"keywords":        result.Keywords,
		"date":            result.Date,
		"suggestedName":   result.SuggestedName,
		"keyEntities":     result.KeyEntities,
		"entity":          result.Entity,
		"project":         result.Project,
		"purpose":         truncateText(result.Purpose, 1000),
		"documentType":    result.DocumentType,
		"extractedText":   truncateText(result.ExtractedText, 5000),
		"smartFolder":     result.SuggestedFolder,
		"smartFolderPath": result.DestinationFolder,
		"contentType":     string(result.ContentType),
		"colors":          result.Colors,
		"hasText":         result.HasText,
	}
}

// filenameFallback produces a degraded, filename-only result when
// every recovery path has been exhausted.
func (a *Analyzer) filenameFallback(ref FileRef, confidence int, warning string) *AnalysisResult {
	filename := filenameWithoutExt(ref.Path)
	category := filenameFallbackCategory(filename)
	if category == "" {
		category = "Documents"
	}
	return &AnalysisResult{
		FilePath:        ref.Path,
		Category:        category,
		SuggestedName:   filename,
		Confidence:      confidence,
		CategorySource:  SourceFilenameFallback,
		IsFallback:      true,
		AnalysisWarning: warning,
	}
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func dedupKeyFor(ref FileRef, content, modelName string, folders []config.SmartFolder) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", ref.Kind, filepath.Base(ref.Path), cacheContentHash(content), modelName, smartFolderSignature(folders))
}

