package modelruntime

import (
	"fmt"
	"os"

	"github.com/ziadkadry99/localsort-core/internal/config"
)

// NewBackend creates a Backend for the given config.Backend. Credential
// lookup is env-var only (ANTHROPIC_API_KEY/OPENAI_API_KEY/GOOGLE_API_KEY);
// stored-OAuth-credential lookup is out of scope here (see DESIGN.md),
// so plain env vars are the only lookup path.
func NewBackend(backend config.Backend, ollamaHost string) (Backend, error) {
	switch backend {
	case config.BackendOllama:
		if ollamaHost == "" {
			ollamaHost = os.Getenv("OLLAMA_HOST")
		}
		if ollamaHost == "" {
			ollamaHost = "http://localhost:11434"
		}
		return NewOllamaBackend(ollamaHost), nil

	case config.BackendAnthropic:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.BackendAnthropic))
		if apiKey == "" {
			return nil, fmt.Errorf("modelruntime: %s not set", config.APIKeyEnvVar(config.BackendAnthropic))
		}
		return NewAnthropicBackend(apiKey), nil

	case config.BackendOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.BackendOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("modelruntime: %s not set", config.APIKeyEnvVar(config.BackendOpenAI))
		}
		return NewOpenAIBackend(apiKey), nil

	case config.BackendGoogle:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.BackendGoogle))
		if apiKey == "" {
			return nil, fmt.Errorf("modelruntime: %s not set", config.APIKeyEnvVar(config.BackendGoogle))
		}
		return NewGoogleBackend(apiKey), nil

	default:
		return nil, fmt.Errorf("modelruntime: %w: %q", ErrUnsupportedBackend, backend)
	}
}
