// Package modelruntime is the single choke-point for all model calls:
// text analysis, image analysis, embedding, model listing, and health
// checks, across ollama/openai/anthropic/google backends. It composes
// with internal/resilience for per-model circuit breaking, retry with
// CPU fallback, and abortable timeouts.
package modelruntime

import "context"

// Role identifies the speaker of a chat message sent to a backend.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a text or image prompt.
type Message struct {
	Role    Role
	Content string
}

// TextRequest is the input to analyze_text.
type TextRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// ImageRequest is the input to analyze_image: a prompt plus raw image
// bytes (already preprocessed by internal/extractor).
type ImageRequest struct {
	Model       string
	Prompt      string
	ImageBytes  []byte
	MimeType    string
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Response is the result of analyze_text/analyze_image.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// EmbedResponse is the result of embed_text.
type EmbedResponse struct {
	Vector []float32
	Model  string
}

// HealthStatus is the result of health_check.
type HealthStatus struct {
	Healthy bool
	Status  string
}

// DefaultEmbeddingTokenLimit and DefaultCharsPerToken set the default
// bound on how many characters of input text embed_text/analyze_text
// will send, per the token-budget cap:
// embedding_token_limit * 0.9 * chars_per_token.
const (
	DefaultEmbeddingTokenLimit = 8192
	DefaultCharsPerToken       = 4
)

// TruncateForTokenBudget truncates text to the configured token
// budget.
func TruncateForTokenBudget(text string, tokenLimit, charsPerToken int) string {
	if tokenLimit <= 0 {
		tokenLimit = DefaultEmbeddingTokenLimit
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	maxChars := int(float64(tokenLimit) * 0.9 * float64(charsPerToken))
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

// Backend is implemented by each concrete provider (ollama, openai,
// anthropic, google). Runtime sends AnalyzeText, AnalyzeImage and
// EmbedText through the per-model breaker, retry and timeout, and
// HealthCheck/ListModels through the preflight cache; Name and
// SupportsVision are called directly. The ModelMemoryManager a Runtime
// holds is not consulted on any of these calls.
type Backend interface {
	Name() string
	AnalyzeText(ctx context.Context, req TextRequest) (*Response, error)
	AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error)
	EmbedText(ctx context.Context, model, text string) (*EmbedResponse, error)
	ListModels(ctx context.Context) ([]string, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
	SupportsVision() bool
}
