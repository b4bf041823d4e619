package config

// Backend identifies a ModelRuntime backend.
type Backend string

const (
	BackendOllama    Backend = "ollama"
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
	BackendGoogle    Backend = "google"
)

// EmbeddingTiming controls when an analyzed file's embedding is
// persisted to the vector store.
type EmbeddingTiming string

const (
	TimingDuringAnalysis EmbeddingTiming = "during_analysis"
	TimingAfterOrganize  EmbeddingTiming = "after_organize"
	TimingManual         EmbeddingTiming = "manual"
)

// EmbeddingPolicy is the default disposition for whether a file gets
// embedded at all.
type EmbeddingPolicy string

const (
	PolicyEmbed   EmbeddingPolicy = "embed"
	PolicySkip    EmbeddingPolicy = "skip"
	PolicyWebOnly EmbeddingPolicy = "web_only"
)

// EmbeddingScope narrows which analyzed files are eligible for
// embedding.
type EmbeddingScope string

const (
	ScopeAllAnalyzed     EmbeddingScope = "all_analyzed"
	ScopeSmartFoldersOnly EmbeddingScope = "smart_folders_only"
)

// SmartFolder is a user-defined destination with a name and
// description used to route files via semantic similarity.
type SmartFolder struct {
	ID          string `yaml:"id" koanf:"id"`
	Name        string `yaml:"name" koanf:"name"`
	Path        string `yaml:"path" koanf:"path"`
	Description string `yaml:"description" koanf:"description"`
}

// CircuitConfig configures the per-model circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" koanf:"failure_threshold"`
	SuccessThreshold int `yaml:"success_threshold" koanf:"success_threshold"`
	TimeoutSeconds   int `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	ResetSeconds     int `yaml:"reset_seconds" koanf:"reset_seconds"`
}

// Config is the top-level localsort configuration, corresponding to
// .localsort.yml.
type Config struct {
	Backend        Backend `yaml:"backend" koanf:"backend"`
	TextModel      string  `yaml:"text_model" koanf:"text_model"`
	VisionModel    string  `yaml:"vision_model" koanf:"vision_model"`
	EmbeddingModel string  `yaml:"embedding_model" koanf:"embedding_model"`
	OllamaHost     string  `yaml:"ollama_host" koanf:"ollama_host"`

	SmartFolders []SmartFolder `yaml:"smart_folders" koanf:"smart_folders"`

	EmbeddingTiming        EmbeddingTiming `yaml:"embedding_timing" koanf:"embedding_timing"`
	DefaultEmbeddingPolicy EmbeddingPolicy `yaml:"default_embedding_policy" koanf:"default_embedding_policy"`
	EmbeddingScope         EmbeddingScope  `yaml:"embedding_scope" koanf:"embedding_scope"`

	FolderMatchConfidence float64 `yaml:"folder_match_confidence" koanf:"folder_match_confidence"`

	OCRPostPassConfidenceSkipThreshold int `yaml:"ocr_post_pass_confidence_skip_threshold" koanf:"ocr_post_pass_confidence_skip_threshold"`
	OCRPostPassStrictSkipThreshold     int `yaml:"ocr_post_pass_strict_skip_threshold" koanf:"ocr_post_pass_strict_skip_threshold"`

	ImagePreflightTTLMs int `yaml:"image_preflight_ttl_ms" koanf:"image_preflight_ttl_ms"`

	BatchSize     int `yaml:"batch_size" koanf:"batch_size"`
	FlushDelayMs  int `yaml:"flush_delay_ms" koanf:"flush_delay_ms"`
	MaxConcurrency int `yaml:"max_concurrency" koanf:"max_concurrency"`

	Circuit CircuitConfig `yaml:"circuit" koanf:"circuit"`

	MaxImageSizeBytes int64 `yaml:"max_image_size_bytes" koanf:"max_image_size_bytes"`
	MaxOCRSizeBytes   int64 `yaml:"max_ocr_size_bytes" koanf:"max_ocr_size_bytes"`

	StateDir string   `yaml:"state_dir" koanf:"state_dir"`
	Include  []string `yaml:"include" koanf:"include"`
	Exclude  []string `yaml:"exclude" koanf:"exclude"`
}
