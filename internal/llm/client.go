// Package llm provides generative provider interfaces and implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Role values used in chat history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ErrMissingAPIKey is returned when a client is built without a credential.
var ErrMissingAPIKey = errors.New("api key is required")

// ErrVideoUnsupported is returned by providers without a video endpoint.
var ErrVideoUnsupported = errors.New("provider does not support video generation")

// ErrAssetTooLarge is returned when a downloaded preview exceeds the size cap.
var ErrAssetTooLarge = errors.New("asset too large")

// ChatMessage is one replayed turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextRequest is a single-shot generation request.
type TextRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature *float64
}

// ChatRequest continues a conversation from its prior turns.
type ChatRequest struct {
	Model       string
	System      string
	History     []ChatMessage
	Message     string
	Temperature *float64
}

// TextResponse is the generated text. Content may be empty.
type TextResponse struct {
	Content   string
	Model     string
	LatencyMs int64
}

// TextClient is the interface for text generation providers.
type TextClient interface {
	// Generate sends one prompt with a system instruction.
	Generate(ctx context.Context, req *TextRequest) (*TextResponse, error)

	// Chat replays history and sends a new user message.
	Chat(ctx context.Context, req *ChatRequest) (*TextResponse, error)

	// Name returns the provider name.
	Name() string
}

// VideoRequest submits a video generation job.
type VideoRequest struct {
	Model       string
	Prompt      string
	Count       int
	Resolution  string
	AspectRatio string
}

// VideoJob is the provider's view of a long-running video job.
type VideoJob struct {
	Name  string
	Done  bool
	URI   string
	Error string
}

// Asset is a downloaded binary payload.
type Asset struct {
	Data        []byte
	ContentType string
}

// VideoClient is the interface for video generation providers.
type VideoClient interface {
	SubmitVideo(ctx context.Context, req *VideoRequest) (*VideoJob, error)
	PollVideo(ctx context.Context, job *VideoJob) (*VideoJob, error)
	DownloadVideo(ctx context.Context, uri string) (*Asset, error)
	Name() string
}

// Factory builds provider clients for a credential.
type Factory interface {
	Text(ctx context.Context, apiKey string) (TextClient, error)
	Video(ctx context.Context, apiKey string) (VideoClient, error)
}

// Provider is the type of text provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// FactoryConfig selects providers and their fixed settings.
type FactoryConfig struct {
	TextProvider    Provider
	GeminiBaseURL   string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	HTTPClient      *http.Client
}

type factory struct {
	cfg FactoryConfig
}

// NewFactory creates a Factory. Video always goes to Gemini.
func NewFactory(cfg FactoryConfig) Factory {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &factory{cfg: cfg}
}

func (f *factory) Text(ctx context.Context, apiKey string) (TextClient, error) {
	switch f.cfg.TextProvider {
	case ProviderOpenAI:
		return NewOpenAIClient(firstNonEmpty(f.cfg.OpenAIAPIKey, apiKey))
	case ProviderAnthropic:
		return NewAnthropicClient(firstNonEmpty(f.cfg.AnthropicAPIKey, apiKey))
	case ProviderGemini, "":
		return NewGeminiClient(ctx, GeminiConfig{APIKey: apiKey, BaseURL: f.cfg.GeminiBaseURL, HTTPClient: f.cfg.HTTPClient})
	default:
		return nil, fmt.Errorf("unknown text provider %q", f.cfg.TextProvider)
	}
}

func (f *factory) Video(ctx context.Context, apiKey string) (VideoClient, error) {
	return NewGeminiClient(ctx, GeminiConfig{APIKey: apiKey, BaseURL: f.cfg.GeminiBaseURL, HTTPClient: f.cfg.HTTPClient})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
