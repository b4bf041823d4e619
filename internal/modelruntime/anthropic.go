package modelruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const anthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicBackend talks to the Anthropic Messages API via direct
// HTTP, with vision content blocks added for AnalyzeImage. Anthropic
// has no public embeddings endpoint, so EmbedText always fails — the
// default config routes embeddings to ollama/openai regardless of the
// text backend.
type AnthropicBackend struct {
	apiKey string
	client *http.Client
}

// NewAnthropicBackend creates an Anthropic backend with the given API key.
func NewAnthropicBackend(apiKey string) *AnthropicBackend {
	return &AnthropicBackend{apiKey: apiKey, client: &http.Client{}}
}

func (b *AnthropicBackend) Name() string         { return "anthropic" }
func (b *AnthropicBackend) SupportsVision() bool { return true }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (b *AnthropicBackend) call(ctx context.Context, apiReq anthropicRequest) (*Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read anthropic response: %w", err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal anthropic response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var content string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &Response{
		Content:      content,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
		Model:        apiResp.Model,
		FinishReason: apiResp.StopReason,
	}, nil
}

func (b *AnthropicBackend) AnalyzeText(ctx context.Context, req TextRequest) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var systemPrompt string
	var messages []anthropicMessage
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		default:
			messages = append(messages, anthropicMessage{Role: string(msg.Role), Content: msg.Content})
		}
	}

	return b.call(ctx, anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      systemPrompt,
		Messages:    messages,
	})
}

func (b *AnthropicBackend) AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	blocks := []anthropicBlock{
		{Type: "image", Source: &anthropicImageSource{Type: "base64", MediaType: req.MimeType, Data: base64Encode(req.ImageBytes)}},
		{Type: "text", Text: req.Prompt},
	}

	return b.call(ctx, anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    []anthropicMessage{{Role: string(RoleUser), Content: blocks}},
	})
}

func (b *AnthropicBackend) EmbedText(ctx context.Context, model, text string) (*EmbedResponse, error) {
	return nil, fmt.Errorf("anthropic: %w: no embeddings endpoint", ErrUnsupportedBackend)
}

func (b *AnthropicBackend) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.anthropic.com/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create anthropic models request: %w", err)
	}
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic models request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("unmarshal anthropic models response: %w", err)
	}
	names := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func (b *AnthropicBackend) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	if _, err := b.ListModels(ctx); err != nil {
		return &HealthStatus{Healthy: false, Status: err.Error()}, nil
	}
	return &HealthStatus{Healthy: true, Status: "ok"}, nil
}
