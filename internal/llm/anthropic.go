package llm

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-3-5-sonnet-20241022"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicClient is the Anthropic text client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{client: anthropic.NewClient(opts...)}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// Generate sends one user turn under the system prompt.
func (c *AnthropicClient) Generate(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	messages := []anthropic.MessageParam{anthropicMessage(RoleUser, req.Prompt)}
	return c.complete(ctx, req.Model, req.System, messages, req.Temperature)
}

// Chat replays history ahead of the new message.
func (c *AnthropicClient) Chat(ctx context.Context, req *ChatRequest) (*TextResponse, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, msg := range req.History {
		messages = append(messages, anthropicMessage(msg.Role, msg.Content))
	}
	messages = append(messages, anthropicMessage(RoleUser, req.Message))
	return c.complete(ctx, req.Model, req.System, messages, req.Temperature)
}

func (c *AnthropicClient) complete(ctx context.Context, model, system string, messages []anthropic.MessageParam, temperature *float64) (*TextResponse, error) {
	start := time.Now()
	model = firstNonEmpty(model, defaultAnthropicModel)

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(defaultAnthropicMaxTokens)),
		Messages:  anthropic.F(messages),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(system),
		}})
	}
	if temperature != nil {
		params.Temperature = anthropic.F(*temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &TextResponse{
		Content:   content,
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func anthropicMessage(role, text string) anthropic.MessageParam {
	r := anthropic.MessageParamRoleUser
	if role == RoleModel {
		r = anthropic.MessageParamRoleAssistant
	}
	return anthropic.MessageParam{
		Role: anthropic.F(r),
		Content: anthropic.F([]anthropic.ContentBlockParamUnion{
			anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(text),
			},
		}),
	}
}
