package config

// DefaultExcludes are glob patterns excluded from directory scans by
// default.
var DefaultExcludes = []string{
	".git/**",
	".localsort/**",
	"node_modules/**",
	"Thumbs.db",
	".DS_Store",
}

// DefaultConfig returns a Config populated with baseline defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendOllama,
		TextModel:      "llama3",
		VisionModel:    "llava",
		EmbeddingModel: "nomic-embed-text",
		OllamaHost:     "http://localhost:11434",

		EmbeddingTiming:        TimingDuringAnalysis,
		DefaultEmbeddingPolicy: PolicyEmbed,
		EmbeddingScope:         ScopeAllAnalyzed,

		FolderMatchConfidence: 0.55,

		OCRPostPassConfidenceSkipThreshold: 88,
		OCRPostPassStrictSkipThreshold:     92,

		ImagePreflightTTLMs: 15000,

		BatchSize:      50,
		FlushDelayMs:   500,
		MaxConcurrency: 4,

		Circuit: CircuitConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			TimeoutSeconds:   300,
			ResetSeconds:     300,
		},

		MaxImageSizeBytes: 100 << 20,
		MaxOCRSizeBytes:   20 << 20,

		StateDir: ".localsort",
		Include:  []string{"**"},
		Exclude:  DefaultExcludes,
	}
}
