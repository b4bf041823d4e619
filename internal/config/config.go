package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (LOCALSORT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("LOCALSORT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LOCALSORT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validBackends = map[Backend]bool{
	BackendOllama:    true,
	BackendOpenAI:    true,
	BackendAnthropic: true,
	BackendGoogle:    true,
}

var validTimings = map[EmbeddingTiming]bool{
	TimingDuringAnalysis: true,
	TimingAfterOrganize:  true,
	TimingManual:         true,
}

var validPolicies = map[EmbeddingPolicy]bool{
	PolicyEmbed:   true,
	PolicySkip:    true,
	PolicyWebOnly: true,
}

var validScopes = map[EmbeddingScope]bool{
	ScopeAllAnalyzed:      true,
	ScopeSmartFoldersOnly: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	if !validBackends[c.Backend] {
		return fmt.Errorf("invalid backend %q: must be one of ollama, openai, anthropic, google", c.Backend)
	}
	if c.TextModel == "" {
		return fmt.Errorf("text_model is required")
	}
	if c.VisionModel == "" {
		return fmt.Errorf("vision_model is required")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}
	if c.EmbeddingTiming != "" && !validTimings[c.EmbeddingTiming] {
		return fmt.Errorf("invalid embedding_timing %q", c.EmbeddingTiming)
	}
	if c.DefaultEmbeddingPolicy != "" && !validPolicies[c.DefaultEmbeddingPolicy] {
		return fmt.Errorf("invalid default_embedding_policy %q", c.DefaultEmbeddingPolicy)
	}
	if c.EmbeddingScope != "" && !validScopes[c.EmbeddingScope] {
		return fmt.Errorf("invalid embedding_scope %q", c.EmbeddingScope)
	}
	if c.FolderMatchConfidence < 0 || c.FolderMatchConfidence > 1 {
		return fmt.Errorf("folder_match_confidence must be in [0,1]")
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be non-negative")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}

	names := make(map[string]bool, len(c.SmartFolders))
	for _, f := range c.SmartFolders {
		if f.Name == "" {
			return fmt.Errorf("smart folder %q: name is required", f.ID)
		}
		lower := strings.ToLower(f.Name)
		if names[lower] {
			return fmt.Errorf("duplicate smart folder name %q", f.Name)
		}
		names[lower] = true
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given backend. Returns "" for backends that need
// no key (ollama).
func APIKeyEnvVar(backend Backend) string {
	switch backend {
	case BackendAnthropic:
		return "ANTHROPIC_API_KEY"
	case BackendOpenAI:
		return "OPENAI_API_KEY"
	case BackendGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
