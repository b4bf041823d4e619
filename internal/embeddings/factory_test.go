package embeddings

import (
	"testing"

	"github.com/ziadkadry99/localsort-core/internal/config"
)

func TestNewFromConfigOllama(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EmbeddingModel = "nomic-embed-text"
	e, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Dimensions() != 768 {
		t.Errorf("expected 768 dims, got %d", e.Dimensions())
	}
}

func TestNewFromConfigOpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendOpenAI
	cfg.EmbeddingModel = string(ModelTextEmbedding3Small)
	_, err := NewFromConfig(cfg)
	if err == nil {
		t.Error("expected error when OPENAI_API_KEY is unset")
	}
}

func TestNewFromConfigAnthropicFallsBackToOpenAI(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendAnthropic
	cfg.EmbeddingModel = string(ModelTextEmbedding3Small)
	e, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := e.(*OpenAIEmbedder); !ok {
		t.Error("expected anthropic backend to fall back to an OpenAIEmbedder")
	}
}

func TestNewFromConfigUnsupportedBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "bogus"
	_, err := NewFromConfig(cfg)
	if err == nil {
		t.Error("expected error for unsupported backend")
	}
}
