// Package extractor defines the ContentExtractor boundary capability:
// turning raw file bytes into text and normalized raster images for
// the analyzer to feed into a ModelRuntime. The real OCR/vision-grade
// extraction collaborators (Tesseract, a PDF text layer reader, a
// vision-model OCR pass) live outside this module; this package ships
// only the interface and a native fallback good enough to analyze
// plain UTF-8 text files and resize images for local testing.
package extractor

import "context"

// Method identifies how extract_text produced its result.
type Method string

const (
	MethodNative    Method = "native"
	MethodOCRTess   Method = "ocr-tesseract"
	MethodOCRVision Method = "ocr-vision"
	MethodNone      Method = "none"
)

// MaxOCRSize is the size above which OCR is skipped entirely.
const MaxOCRSize int64 = 20 << 20

// MaxAnalysisSize is the size above which analysis is refused outright.
const MaxAnalysisSize int64 = 100 << 20

// MaxImageDimension is the longest-side cap preprocess_image must
// guarantee on its output.
const MaxImageDimension = 1024

// ExtractResult is the outcome of extract_text.
type ExtractResult struct {
	Text      string
	Method    Method
	Truncated bool
}

// ExtractOptions controls extract_text behavior.
type ExtractOptions struct {
	// MaxChars truncates extracted text; 0 means no cap.
	MaxChars int
}

// PreprocessingFailed signals a corrupted or unreadable image input
// that preprocess_image cannot normalize.
type PreprocessingFailed struct {
	Ext string
	Err error
}

func (e *PreprocessingFailed) Error() string {
	if e.Err != nil {
		return "extractor: preprocessing failed for ." + e.Ext + ": " + e.Err.Error()
	}
	return "extractor: preprocessing failed for ." + e.Ext
}

func (e *PreprocessingFailed) Unwrap() error { return e.Err }

// ContentExtractor is the boundary capability the analyzer depends on.
// Implementations must never panic or return an error for an
// unsupported format from ExtractText; they return an empty result
// with Method=MethodNone instead. PreprocessImage may fail with
// *PreprocessingFailed for inputs it cannot decode.
type ContentExtractor interface {
	// ExtractText reads path and returns whatever text it can find.
	// Never errors on unsupported formats. Binary content (images
	// included) is reported as an empty result with Method=MethodNone,
	// not as the file's raw bytes — callers that need the raw bytes
	// themselves (image preprocessing, EXIF extraction) must use
	// ReadBytes instead.
	ExtractText(ctx context.Context, path string, opts ExtractOptions) (ExtractResult, error)

	// ReadBytes returns path's raw contents unfiltered, with no
	// binary-content detection. Size-capped the same as ExtractText.
	ReadBytes(ctx context.Context, path string) ([]byte, error)

	// PreprocessImage guarantees its output is a supported raster
	// format at <=MaxImageDimension px on the longest side.
	PreprocessImage(ctx context.Context, data []byte, ext string) ([]byte, error)

	// ExtractEXIFDate returns a YYYY-MM-DD date recovered from the
	// image's EXIF metadata, if any was present and parseable.
	ExtractEXIFDate(ctx context.Context, data []byte) (date string, ok bool)
}
