package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend != BackendOllama {
		t.Errorf("expected default backend %q, got %q", BackendOllama, cfg.Backend)
	}
	if cfg.EmbeddingTiming != TimingDuringAnalysis {
		t.Errorf("expected default embedding_timing %q, got %q", TimingDuringAnalysis, cfg.EmbeddingTiming)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("expected default batch_size 50, got %d", cfg.BatchSize)
	}
	if cfg.MaxConcurrency != 4 {
		t.Errorf("expected default max_concurrency 4, got %d", cfg.MaxConcurrency)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.localsort.yml")

	original := DefaultConfig()
	original.Backend = BackendOpenAI
	original.TextModel = "gpt-4o"
	original.EmbeddingTiming = TimingAfterOrganize
	original.Include = []string{"**/*.pdf", "**/*.jpg"}
	original.FolderMatchConfidence = 0.7
	original.SmartFolders = []SmartFolder{
		{ID: "1", Name: "Receipts", Path: "/docs/receipts", Description: "invoices and receipts"},
	}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Backend != original.Backend {
		t.Errorf("backend: got %q, want %q", loaded.Backend, original.Backend)
	}
	if loaded.TextModel != original.TextModel {
		t.Errorf("text_model: got %q, want %q", loaded.TextModel, original.TextModel)
	}
	if loaded.EmbeddingTiming != original.EmbeddingTiming {
		t.Errorf("embedding_timing: got %q, want %q", loaded.EmbeddingTiming, original.EmbeddingTiming)
	}
	if loaded.FolderMatchConfidence != original.FolderMatchConfidence {
		t.Errorf("folder_match_confidence: got %f, want %f", loaded.FolderMatchConfidence, original.FolderMatchConfidence)
	}
	if len(loaded.Include) != len(original.Include) {
		t.Errorf("include length: got %d, want %d", len(loaded.Include), len(original.Include))
	}
	if len(loaded.SmartFolders) != 1 || loaded.SmartFolders[0].Name != "Receipts" {
		t.Errorf("smart_folders round-trip failed: got %+v", loaded.SmartFolders)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Backend != BackendOllama {
		t.Errorf("expected default backend, got %q", cfg.Backend)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	os.Setenv("LOCALSORT_BACKEND", "openai")
	defer os.Unsetenv("LOCALSORT_BACKEND")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Backend != BackendOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Backend, BackendOpenAI)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalidBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "invalid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid backend")
	}
}

func TestValidateEmptyBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty backend")
	}
}

func TestValidateEmptyTextModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TextModel = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty text_model")
	}
}

func TestValidateInvalidEmbeddingTiming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbeddingTiming = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid embedding_timing")
	}
}

func TestValidateEmptyStateDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StateDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty state_dir")
	}
}

func TestValidateNegativeConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative max_concurrency")
	}
}

func TestValidateBadFolderMatchConfidence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FolderMatchConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for out-of-range folder_match_confidence")
	}
}

func TestValidateDuplicateSmartFolderNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmartFolders = []SmartFolder{
		{ID: "1", Name: "Receipts", Path: "/a"},
		{ID: "2", Name: "receipts", Path: "/b"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for duplicate (case-insensitive) smart folder names")
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		backend Backend
		want    string
	}{
		{BackendAnthropic, "ANTHROPIC_API_KEY"},
		{BackendOpenAI, "OPENAI_API_KEY"},
		{BackendGoogle, "GOOGLE_API_KEY"},
		{BackendOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.backend)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.backend, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"**/*.jpg", []string{"**/*.jpg"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
