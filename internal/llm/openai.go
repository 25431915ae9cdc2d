package llm

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient is the OpenAI text client.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenAIClient{client: openai.NewClient(apiKey)}, nil
}

// NewOpenAIClientWithConfig creates a client against a custom endpoint.
func NewOpenAIClientWithConfig(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return string(ProviderOpenAI)
}

// Generate sends a system + user prompt pair.
func (c *OpenAIClient) Generate(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	messages := systemMessages(req.System)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
	return c.complete(ctx, req.Model, messages, req.Temperature)
}

// Chat replays history ahead of the new message.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*TextResponse, error) {
	messages := systemMessages(req.System)
	for _, msg := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})
	return c.complete(ctx, req.Model, messages, req.Temperature)
}

func (c *OpenAIClient) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage, temperature *float64) (*TextResponse, error) {
	start := time.Now()
	model = firstNonEmpty(model, defaultOpenAIModel)

	request := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if temperature != nil {
		request.Temperature = float32(*temperature)
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &TextResponse{
		Content:   content,
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func systemMessages(system string) []openai.ChatCompletionMessage {
	if system == "" {
		return nil
	}
	return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}}
}

func openAIRole(role string) string {
	if role == RoleModel {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
