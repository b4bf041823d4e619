package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ziadkadry99/localsort-core/internal/cache"
	"github.com/ziadkadry99/localsort-core/internal/clock"
	"github.com/ziadkadry99/localsort-core/internal/config"
	"github.com/ziadkadry99/localsort-core/internal/extractor"
	"github.com/ziadkadry99/localsort-core/internal/modelruntime"
	"github.com/ziadkadry99/localsort-core/internal/queue"
)

// fakeRuntime returns a fixed JSON body from AnalyzeText/AnalyzeImage
// and reports itself healthy unless configured otherwise.
type fakeRuntime struct {
	healthy      bool
	textContent  string
	imageContent string
	vision       bool
	textCalls    int
	imageCalls   int
}

func (f *fakeRuntime) HealthCheck(ctx context.Context) (*modelruntime.HealthStatus, error) {
	return &modelruntime.HealthStatus{Healthy: f.healthy}, nil
}

func (f *fakeRuntime) AnalyzeText(ctx context.Context, req modelruntime.TextRequest) (*modelruntime.Response, error) {
	f.textCalls++
	return &modelruntime.Response{Content: f.textContent, Model: req.Model}, nil
}

func (f *fakeRuntime) AnalyzeImage(ctx context.Context, req modelruntime.ImageRequest) (*modelruntime.Response, error) {
	f.imageCalls++
	return &modelruntime.Response{Content: f.imageContent, Model: req.Model}, nil
}

func (f *fakeRuntime) EmbedText(ctx context.Context, model, text string, expectedDims int) (*modelruntime.EmbedResponse, error) {
	return &modelruntime.EmbedResponse{Vector: []float32{0.1, 0.2, 0.3}, Model: model}, nil
}

func (f *fakeRuntime) SupportsVision() bool { return f.vision }

// fakeExtractor returns a fixed text body for every path. rawBytes, if
// set, is what ReadBytes returns; otherwise it falls back to text.
type fakeExtractor struct {
	text     string
	rawBytes []byte
	exifDate string
}

func (e *fakeExtractor) ExtractText(ctx context.Context, path string, opts extractor.ExtractOptions) (extractor.ExtractResult, error) {
	return extractor.ExtractResult{Text: e.text, Method: extractor.MethodNative}, nil
}

func (e *fakeExtractor) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	if e.rawBytes != nil {
		return e.rawBytes, nil
	}
	return []byte(e.text), nil
}

func (e *fakeExtractor) PreprocessImage(ctx context.Context, data []byte, ext string) ([]byte, error) {
	return data, nil
}

func (e *fakeExtractor) ExtractEXIFDate(ctx context.Context, data []byte) (string, bool) {
	if e.exifDate == "" {
		return "", false
	}
	return e.exifDate, true
}

type fakeSink struct {
	delivered []queue.QueueItem
}

func (s *fakeSink) Flush(ctx context.Context, items []queue.QueueItem) ([]queue.FlushFailure, error) {
	s.delivered = append(s.delivered, items...)
	return nil, nil
}

func newTestAnalyzer(t *testing.T, runtime ModelRuntime, ext extractor.ContentExtractor, cfg *config.Config, sink *fakeSink) *Analyzer {
	t.Helper()
	clk := clock.NewFake(time.Now())
	docCache := cache.New(500, 30*time.Minute, clk)
	imgCache := cache.New(300, 30*time.Minute, clk)

	analysisQ, err := queue.New(queue.StageAnalysis, t.TempDir()+"/analysis.json", sink, clk)
	if err != nil {
		t.Fatalf("queue.New(analysis): %v", err)
	}
	organizeQ, err := queue.New(queue.StageOrganize, t.TempDir()+"/organize.json", sink, clk)
	if err != nil {
		t.Fatalf("queue.New(organize): %v", err)
	}
	manager := queue.NewManager(analysisQ, organizeQ)

	return New(runtime, ext, docCache, imgCache, nil, manager, cfg, clk)
}

func baseConfig() *config.Config {
	return &config.Config{
		TextModel:              "llama3",
		VisionModel:            "llava",
		EmbeddingModel:         "nomic-embed",
		EmbeddingTiming:        config.TimingDuringAnalysis,
		DefaultEmbeddingPolicy: config.PolicyEmbed,
		EmbeddingScope:         config.ScopeAllAnalyzed,
	}
}

func TestAnalyzeUnsupportedFormatSkipsModelCall(t *testing.T) {
	runtime := &fakeRuntime{healthy: true, textContent: `{"category":"Documents","suggestedName":"x","confidence":80}`}
	a := newTestAnalyzer(t, runtime, &fakeExtractor{text: "hello"}, baseConfig(), &fakeSink{})

	ref := FileRef{Path: "/tmp/archive.exe", Kind: KindDocument, Extension: ".exe", Size: 10, ModTime: time.Now()}
	result, err := a.Analyze(context.Background(), ref, Opts{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Category != "unsupported" || !result.IsFallback {
		t.Fatalf("expected unsupported fallback, got %+v", result)
	}
	if runtime.textCalls != 0 {
		t.Fatalf("expected no model call for unsupported format, got %d", runtime.textCalls)
	}
}

func TestAnalyzeCacheHitSkipsSecondModelCall(t *testing.T) {
	runtime := &fakeRuntime{healthy: true, textContent: `{"category":"Documents","suggestedName":"notes","confidence":90}`}
	a := newTestAnalyzer(t, runtime, &fakeExtractor{text: "hello world"}, baseConfig(), &fakeSink{})

	ref := FileRef{Path: "/tmp/notes.txt", Kind: KindDocument, Extension: ".txt", Size: 11, ModTime: time.Now()}

	if _, err := a.Analyze(context.Background(), ref, Opts{}); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if runtime.textCalls != 1 {
		t.Fatalf("expected one model call after first analysis, got %d", runtime.textCalls)
	}

	if _, err := a.Analyze(context.Background(), ref, Opts{}); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if runtime.textCalls != 1 {
		t.Fatalf("expected cache hit to skip second model call, still got %d calls", runtime.textCalls)
	}
}

func TestAnalyzeHallucinationOverridesFinancialFilename(t *testing.T) {
	runtime := &fakeRuntime{
		healthy:     true,
		textContent: `{"category":"Landscapes","suggestedName":"sunset over the mountain","confidence":95}`,
	}
	a := newTestAnalyzer(t, runtime, &fakeExtractor{text: "total amount due: $500"}, baseConfig(), &fakeSink{})

	ref := FileRef{Path: "/tmp/invoice_march.txt", Kind: KindDocument, Extension: ".txt", Size: 20, ModTime: time.Now()}
	result, err := a.Analyze(context.Background(), ref, Opts{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !result.HallucinationDetected {
		t.Fatalf("expected hallucination override to fire, got %+v", result)
	}
	if result.Confidence > 25 {
		t.Fatalf("expected confidence capped at 25, got %d", result.Confidence)
	}
	if result.Category != "Finance" {
		t.Fatalf("expected Finance category from filename fallback, got %q", result.Category)
	}
	if result.CategorySource != SourceFilenameFinancial {
		t.Fatalf("expected filename_financial_override source, got %q", result.CategorySource)
	}
}

func TestAnalyzeGateSkipMeansNoEnqueue(t *testing.T) {
	runtime := &fakeRuntime{healthy: true, textContent: `{"category":"Documents","suggestedName":"notes","confidence":90}`}
	sink := &fakeSink{}
	cfg := baseConfig()
	cfg.EmbeddingTiming = config.TimingManual
	a := newTestAnalyzer(t, runtime, &fakeExtractor{text: "hello world"}, cfg, sink)

	ref := FileRef{Path: "/tmp/notes2.txt", Kind: KindDocument, Extension: ".txt", Size: 11, ModTime: time.Now()}
	if _, err := a.Analyze(context.Background(), ref, Opts{}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if err := a.queues.ForceFlushAll(context.Background()); err != nil {
		t.Fatalf("ForceFlushAll: %v", err)
	}
	if len(sink.delivered) != 0 {
		t.Fatalf("expected manual embedding timing to block enqueue, got %d delivered items", len(sink.delivered))
	}
}

func TestAnalyzeUnhealthyRuntimeFallsBackToFilename(t *testing.T) {
	runtime := &fakeRuntime{healthy: false}
	a := newTestAnalyzer(t, runtime, &fakeExtractor{text: "hello"}, baseConfig(), &fakeSink{})

	ref := FileRef{Path: "/tmp/report_q1.txt", Kind: KindDocument, Extension: ".txt", Size: 5, ModTime: time.Now()}
	result, err := a.Analyze(context.Background(), ref, Opts{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.IsFallback {
		t.Fatalf("expected a filename fallback when the runtime is unhealthy, got %+v", result)
	}
	if runtime.textCalls != 0 {
		t.Fatalf("expected no model call when preflight fails, got %d", runtime.textCalls)
	}
}

func TestAnalyzeImageReadsRawBytesNotExtractedText(t *testing.T) {
	runtime := &fakeRuntime{
		healthy:      true,
		vision:       true,
		imageContent: `{"category":"Photos","suggestedName":"beach trip","confidence":88}`,
	}
	// text is empty, the way NativeExtractor.ExtractText legitimately
	// reports for real binary image content; rawBytes stands in for the
	// image's actual bytes that ReadBytes must hand to PreprocessImage.
	ext := &fakeExtractor{text: "", rawBytes: []byte{0xff, 0xd8, 0xff, 0x00, 0x01, 0x02}, exifDate: "2023-06-01"}
	a := newTestAnalyzer(t, runtime, ext, baseConfig(), &fakeSink{})

	ref := FileRef{Path: "/tmp/beach.jpg", Kind: KindImage, Extension: ".jpg", Size: 6, ModTime: time.Now()}
	result, err := a.Analyze(context.Background(), ref, Opts{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.IsFallback {
		t.Fatalf("expected image analysis to reach the model, got filename fallback: %+v", result)
	}
	if runtime.imageCalls != 1 {
		t.Fatalf("expected one AnalyzeImage call, got %d", runtime.imageCalls)
	}
	if result.Category != "Photos" {
		t.Fatalf("expected category from model response, got %q", result.Category)
	}
	if result.Date != "2023-06-01" {
		t.Fatalf("expected EXIF date fallback, got %q", result.Date)
	}
}

func TestAnalyzeEmptyFileReturnsError(t *testing.T) {
	runtime := &fakeRuntime{healthy: true}
	a := newTestAnalyzer(t, runtime, &fakeExtractor{text: ""}, baseConfig(), &fakeSink{})

	ref := FileRef{Path: "/tmp/empty.txt", Kind: KindDocument, Extension: ".txt", Size: 0, ModTime: time.Now()}
	_, err := a.Analyze(context.Background(), ref, Opts{})
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}
