package modelruntime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaBackend talks to a local ollama daemon over its HTTP API,
// with vision (image bytes as base64 in the chat message), embeddings,
// and /api/tags-backed model listing.
type OllamaBackend struct {
	baseURL string
	client  *http.Client
}

// NewOllamaBackend creates an Ollama backend against the given host.
func NewOllamaBackend(baseURL string) *OllamaBackend {
	return &OllamaBackend{baseURL: baseURL, client: &http.Client{}}
}

func (b *OllamaBackend) Name() string          { return "ollama" }
func (b *OllamaBackend) SupportsVision() bool  { return true }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Model           string        `json:"model"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

func (b *OllamaBackend) chat(ctx context.Context, req ollamaChatRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", b.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ollama response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal ollama response: %w", err)
	}

	return &Response{
		Content:      resp.Message.Content,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		Model:        resp.Model,
		FinishReason: resp.DoneReason,
	}, nil
}

func (b *OllamaBackend) AnalyzeText(ctx context.Context, req TextRequest) (*Response, error) {
	var messages []ollamaMessage
	for _, msg := range req.Messages {
		messages = append(messages, ollamaMessage{Role: string(msg.Role), Content: msg.Content})
	}
	chatReq := ollamaChatRequest{
		Model:    req.Model,
		Messages: messages,
		Options:  ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	if req.JSONMode {
		chatReq.Format = "json"
	}
	return b.chat(ctx, chatReq)
}

func (b *OllamaBackend) AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error) {
	encoded := base64.StdEncoding.EncodeToString(req.ImageBytes)
	chatReq := ollamaChatRequest{
		Model: req.Model,
		Messages: []ollamaMessage{
			{Role: string(RoleUser), Content: req.Prompt, Images: []string{encoded}},
		},
		Options: ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	if req.JSONMode {
		chatReq.Format = "json"
	}
	return b.chat(ctx, chatReq)
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (b *OllamaBackend) EmbedText(ctx context.Context, model, text string) (*EmbedResponse, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama embed request: %w", err)
	}

	url := fmt.Sprintf("%s/api/embed", b.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ollama embed response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal ollama embed response: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed response had no vectors")
	}

	return &EmbedResponse{Vector: resp.Embeddings[0], Model: model}, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (b *OllamaBackend) ListModels(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/api/tags", b.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create ollama tags request: %w", err)
	}

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama tags request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp ollamaTagsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("unmarshal ollama tags response: %w", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (b *OllamaBackend) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	url := fmt.Sprintf("%s/api/tags", b.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &HealthStatus{Healthy: false, Status: err.Error()}, nil
	}
	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return &HealthStatus{Healthy: false, Status: err.Error()}, nil
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return &HealthStatus{Healthy: false, Status: fmt.Sprintf("status %d", httpResp.StatusCode)}, nil
	}
	return &HealthStatus{Healthy: true, Status: "ok"}, nil
}
