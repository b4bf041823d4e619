package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/ziadkadry99/localsort-core/internal/logctx"
)

var log = logctx.For("extractor")

// NativeExtractor is the in-module ContentExtractor: plain UTF-8 text
// reading and stdlib-decodable image resizing, with no OCR or
// non-native document format support. Binary detection mirrors
// internal/walker's isBinary (first-512-bytes NUL-byte heuristic).
type NativeExtractor struct{}

// NewNative constructs a NativeExtractor.
func NewNative() *NativeExtractor {
	return &NativeExtractor{}
}

func (n *NativeExtractor) ExtractText(ctx context.Context, path string, opts ExtractOptions) (ExtractResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ExtractResult{Method: MethodNone}, nil
	}
	if info.Size() > MaxAnalysisSize {
		return ExtractResult{Method: MethodNone}, fmt.Errorf("extractor: %s exceeds max analysis size", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return ExtractResult{Method: MethodNone}, nil
	}
	defer f.Close()

	head := make([]byte, 512)
	n2, _ := f.Read(head)
	if isBinary(head[:n2]) {
		return ExtractResult{Method: MethodNone}, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ExtractResult{Method: MethodNone}, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ExtractResult{Method: MethodNone}, nil
	}

	text := string(data)
	truncated := false
	if opts.MaxChars > 0 && len(text) > opts.MaxChars {
		text = text[:opts.MaxChars]
		truncated = true
	}

	return ExtractResult{Text: text, Method: MethodNative, Truncated: truncated}, nil
}

// ReadBytes reads path's raw contents with no binary-content
// detection, for callers (image preprocessing, EXIF extraction) that
// need the actual bytes rather than extracted text.
func (n *NativeExtractor) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxAnalysisSize {
		return nil, fmt.Errorf("extractor: %s exceeds max analysis size", filepath.Base(path))
	}
	return os.ReadFile(path)
}

// isBinary checks the first chunk of a file for NUL bytes, the same
// heuristic internal/walker uses to skip binary files.
func isBinary(head []byte) bool {
	for _, b := range head {
		if b == 0 {
			return true
		}
	}
	return false
}

// ExtractEXIFDate never finds a date: real EXIF parsing requires the
// vision/OCR boundary collaborator this package deliberately does not
// ship (see the package doc).
func (n *NativeExtractor) ExtractEXIFDate(ctx context.Context, data []byte) (string, bool) {
	return "", false
}

func (n *NativeExtractor) PreprocessImage(ctx context.Context, data []byte, ext string) ([]byte, error) {
	if int64(len(data)) > MaxAnalysisSize {
		return nil, &PreprocessingFailed{Ext: ext, Err: fmt.Errorf("input exceeds max analysis size")}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &PreprocessingFailed{Ext: ext, Err: err}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= MaxImageDimension && h <= MaxImageDimension {
		return data, nil
	}

	nw, nh := w, h
	if w >= h {
		nw = MaxImageDimension
		nh = h * MaxImageDimension / w
	} else {
		nh = MaxImageDimension
		nw = w * MaxImageDimension / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, &PreprocessingFailed{Ext: ext, Err: err}
	}

	log.WithField("from", fmt.Sprintf("%dx%d", w, h)).
		WithField("to", fmt.Sprintf("%dx%d", nw, nh)).
		Debug("resized image for analysis")

	return buf.Bytes(), nil
}
