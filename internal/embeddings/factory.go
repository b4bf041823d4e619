package embeddings

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/localsort-core/internal/config"
)

// ollamaEmbedDimensions are hardcoded output dimensions for common
// ollama embedding models; a model not in this map is assumed to
// produce 768 dimensions.
var ollamaEmbedDimensions = map[string]int{
	"nomic-embed-text": 768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// NewFromConfig builds an Embedder for cfg.EmbeddingModel on cfg.Backend.
// Credential lookup is env-var only (see DESIGN.md).
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	switch cfg.Backend {
	case config.BackendOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.BackendOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("embeddings: %s not set", config.APIKeyEnvVar(config.BackendOpenAI))
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(cfg.EmbeddingModel)), nil

	case config.BackendGoogle:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.BackendGoogle))
		if apiKey == "" {
			return nil, fmt.Errorf("embeddings: %s not set", config.APIKeyEnvVar(config.BackendGoogle))
		}
		return NewGoogleEmbedder(apiKey, GoogleModel(cfg.EmbeddingModel)), nil

	case config.BackendAnthropic:
		// Anthropic has no embeddings endpoint; fall back to OpenAI.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.BackendOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("embeddings: backend is anthropic (no embeddings API); %s not set for the OpenAI fallback", config.APIKeyEnvVar(config.BackendOpenAI))
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(cfg.EmbeddingModel)), nil

	case config.BackendOllama:
		dims, ok := ollamaEmbedDimensions[cfg.EmbeddingModel]
		if !ok {
			dims = 768
		}
		return NewOllamaEmbedder(cfg.EmbeddingModel, dims, cfg.OllamaHost), nil

	default:
		return nil, fmt.Errorf("embeddings: unsupported backend %q", cfg.Backend)
	}
}
