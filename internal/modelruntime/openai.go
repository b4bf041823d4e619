package modelruntime

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend talks to the OpenAI Chat Completions + Embeddings API,
// with image (data-URL) and embedding support.
type OpenAIBackend struct {
	client *openai.Client
}

// NewOpenAIBackend creates an OpenAI backend with the given API key.
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{client: openai.NewClient(apiKey)}
}

func (b *OpenAIBackend) Name() string         { return "openai" }
func (b *OpenAIBackend) SupportsVision() bool { return true }

func (b *OpenAIBackend) AnalyzeText(ctx context.Context, req TextRequest) (*Response, error) {
	var messages []openai.ChatCompletionMessage
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return b.complete(ctx, req.Model, messages, req.MaxTokens, req.Temperature, req.JSONMode)
}

func (b *OpenAIBackend) AnalyzeImage(ctx context.Context, req ImageRequest) (*Response, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", req.MimeType, base64Encode(req.ImageBytes))
	messages := []openai.ChatCompletionMessage{
		{
			Role: string(RoleUser),
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			},
		},
	}
	return b.complete(ctx, req.Model, messages, req.MaxTokens, req.Temperature, req.JSONMode)
}

func (b *OpenAIBackend) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage, maxTokens int, temperature float64, jsonMode bool) (*Response, error) {
	if maxTokens == 0 {
		maxTokens = 4096
	}
	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}
	if jsonMode {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := b.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	var content, finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &Response{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		FinishReason: finishReason,
	}, nil
}

func (b *OpenAIBackend) EmbedText(ctx context.Context, model, text string) (*EmbedResponse, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding response had no vectors")
	}
	return &EmbedResponse{Vector: resp.Data[0].Embedding, Model: model}, nil
}

func (b *OpenAIBackend) ListModels(ctx context.Context) ([]string, error) {
	resp, err := b.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.ID)
	}
	return names, nil
}

func (b *OpenAIBackend) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	if _, err := b.client.ListModels(ctx); err != nil {
		return &HealthStatus{Healthy: false, Status: err.Error()}, nil
	}
	return &HealthStatus{Healthy: true, Status: "ok"}, nil
}
