package extractor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractTextReadsUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	e := NewNative()
	result, err := e.ExtractText(context.Background(), path, ExtractOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Method != MethodNative {
		t.Errorf("expected method native, got %s", result.Method)
	}
	if result.Text != "hello world" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Truncated {
		t.Error("did not expect truncation")
	}
}

func TestExtractTextTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	e := NewNative()
	result, err := e.ExtractText(context.Background(), path, ExtractOptions{MaxChars: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "0123" {
		t.Errorf("expected truncated text, got %q", result.Text)
	}
	if !result.Truncated {
		t.Error("expected truncated=true")
	}
}

func TestExtractTextSkipsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02, 'a'}, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	e := NewNative()
	result, err := e.ExtractText(context.Background(), path, ExtractOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Method != MethodNone {
		t.Errorf("expected method none for binary file, got %s", result.Method)
	}
}

func TestExtractTextMissingFile(t *testing.T) {
	e := NewNative()
	result, err := e.ExtractText(context.Background(), "/does/not/exist.txt", ExtractOptions{})
	if err != nil {
		t.Fatalf("expected no error for missing file: %v", err)
	}
	if result.Method != MethodNone {
		t.Errorf("expected method none, got %s", result.Method)
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPreprocessImagePassesThroughSmall(t *testing.T) {
	data := encodePNG(t, 200, 100)
	e := NewNative()
	out, err := e.PreprocessImage(context.Background(), data, "png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(data) {
		t.Error("expected small image to pass through unchanged")
	}
}

func TestPreprocessImageResizesLarge(t *testing.T) {
	data := encodePNG(t, 2000, 1000)
	e := NewNative()
	out, err := e.PreprocessImage(context.Background(), data, "png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > MaxImageDimension || b.Dy() > MaxImageDimension {
		t.Errorf("expected resized image within %dpx, got %dx%d", MaxImageDimension, b.Dx(), b.Dy())
	}
	if b.Dx() != MaxImageDimension {
		t.Errorf("expected longest side resized to %d, got %d", MaxImageDimension, b.Dx())
	}
}

func TestPreprocessImageRejectsCorrupted(t *testing.T) {
	e := NewNative()
	_, err := e.PreprocessImage(context.Background(), []byte("not an image"), "png")
	if err == nil {
		t.Error("expected error for corrupted image data")
	}
	var pf *PreprocessingFailed
	if !asPreprocessingFailed(err, &pf) {
		t.Errorf("expected *PreprocessingFailed, got %T", err)
	}
}

func asPreprocessingFailed(err error, target **PreprocessingFailed) bool {
	if pf, ok := err.(*PreprocessingFailed); ok {
		*target = pf
		return true
	}
	return false
}
