package modelruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleBackend talks to the Gemini API via direct HTTP. OAuth2
// token-source auth is dropped (see DESIGN.md) in favor of API key
// auth only.
type GoogleBackend struct {
	apiKey string
	client *http.Client
}

// NewGoogleBackend creates a Google Gemini backend using an API key.
func NewGoogleBackend(apiKey string) *GoogleBackend {
	return &GoogleBackend{apiKey: apiKey, client: &http.Client{}}
}

func (b *GoogleBackend) Name() string         { return "google" }
func (b *GoogleBackend) SupportsVision() bool { return true }

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
	Error         *geminiError         `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (b *GoogleBackend) call(ctx context.Context, model string, apiReq geminiRequest) (*Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", googleAPIBaseURL, model, b.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal gemini response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("gemini API error (%s): %s", apiResp.Error.Status, apiResp.Error.Message)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var content string
	if len(apiResp.Candidates) > 0 && apiResp.Candidates[0].Content != nil {
		for _, part := range apiResp.Candidates[0].Content.Parts {
			content += part.Text
		}
	}
	var finishReason string
	if len(apiResp.Candidates) > 0 {
		finishReason = apiResp.Candidates[0].FinishReason
	}
	var inputTokens, outputTokens int
	if apiResp.UsageMetadata != nil {
		inputTokens = apiResp.UsageMetadata.PromptTokenCount
		outputTokens = apiResp.UsageMetadata.CandidatesTokenCount
	}

	return &Response{
		Content:      content,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Model:        model,
		FinishReason: finishReason,
	}, nil
}

func (b *GoogleBackend) AnalyzeText(ctx context.Context, req TextRequest) (*Response, error) {
	var systemParts []geminiPart
	var contents []geminiContent
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, geminiPart{Text: msg.Content})
		case RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if len(contents) == 0 {
		contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: ""}}})
	}

	apiReq := geminiRequest{
		Contents:         contents,
		GenerationConfig: &geminiGenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens},
	}
	if len(systemParts) > 0 {
		apiReq.SystemInstruction = &geminiContent{Parts: systemParts}
	}
	if req.JSONMode {
		apiReq.GenerationConfig.ResponseMIMEType = "application/json"
	}

	return b.call(ctx, req.Model, apiReq)
}

func (b *GoogleBackend) AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error) {
	apiReq := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: req.Prompt},
				{InlineData: &geminiInlineData{MimeType: req.MimeType, Data: base64Encode(req.ImageBytes)}},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{Temperature: req.Temperature, MaxOutputTokens: req.MaxTokens},
	}
	if req.JSONMode {
		apiReq.GenerationConfig.ResponseMIMEType = "application/json"
	}
	return b.call(ctx, req.Model, apiReq)
}

type geminiEmbedRequest struct {
	Content geminiContent `json:"content"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *geminiError `json:"error,omitempty"`
}

func (b *GoogleBackend) EmbedText(ctx context.Context, model, text string) (*EmbedResponse, error) {
	body, err := json.Marshal(geminiEmbedRequest{Content: geminiContent{Parts: []geminiPart{{Text: text}}}})
	if err != nil {
		return nil, fmt.Errorf("marshal gemini embed request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:embedContent?key=%s", googleAPIBaseURL, model, b.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gemini embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini embed request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp geminiEmbedResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("unmarshal gemini embed response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("gemini embed API error (%s): %s", resp.Error.Status, resp.Error.Message)
	}

	return &EmbedResponse{Vector: resp.Embedding.Values, Model: model}, nil
}

func (b *GoogleBackend) ListModels(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s?key=%s", googleAPIBaseURL, b.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini models request: %w", err)
	}
	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini models request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("unmarshal gemini models response: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (b *GoogleBackend) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	if _, err := b.ListModels(ctx); err != nil {
		return &HealthStatus{Healthy: false, Status: err.Error()}, nil
	}
	return &HealthStatus{Healthy: true, Status: "ok"}, nil
}
