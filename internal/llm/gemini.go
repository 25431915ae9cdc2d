package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiTextModel  = "gemini-2.5-flash"
	defaultGeminiVideoModel = "veo-3.1-fast-generate-preview"

	// maxVideoBytes caps a downloaded preview held in memory.
	maxVideoBytes = 512 << 20
)

// GeminiConfig configures a Gemini client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiClient is the Gemini text, chat and video client.
type GeminiClient struct {
	client     *genai.Client
	apiKey     string
	httpClient *http.Client
	maxVideo   int64
}

// NewGeminiClient creates a new Gemini client bound to one credential.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:     client,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		maxVideo:   maxVideoBytes,
	}, nil
}

// Name returns the provider name.
func (c *GeminiClient) Name() string {
	return string(ProviderGemini)
}

// Generate sends a single prompt.
func (c *GeminiClient) Generate(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	start := time.Now()
	model := firstNonEmpty(req.Model, defaultGeminiTextModel)

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), contentConfig(req.System, req.Temperature))
	if err != nil {
		return nil, err
	}

	return &TextResponse{
		Content:   resp.Text(),
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Chat rebuilds a chat session from history and sends the new message.
func (c *GeminiClient) Chat(ctx context.Context, req *ChatRequest) (*TextResponse, error) {
	start := time.Now()
	model := firstNonEmpty(req.Model, defaultGeminiTextModel)

	history := make([]*genai.Content, 0, len(req.History))
	for _, msg := range req.History {
		history = append(history, &genai.Content{
			Role:  msg.Role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	chat, err := c.client.Chats.Create(ctx, model, contentConfig(req.System, req.Temperature), history)
	if err != nil {
		return nil, err
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: req.Message})
	if err != nil {
		return nil, err
	}

	return &TextResponse{
		Content:   resp.Text(),
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// SubmitVideo starts a video generation job.
func (c *GeminiClient) SubmitVideo(ctx context.Context, req *VideoRequest) (*VideoJob, error) {
	model := firstNonEmpty(req.Model, defaultGeminiVideoModel)

	op, err := c.client.Models.GenerateVideos(ctx, model, req.Prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: int32(req.Count),
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return nil, err
	}

	return videoJob(op), nil
}

// PollVideo re-reads the status of a job.
func (c *GeminiClient) PollVideo(ctx context.Context, job *VideoJob) (*VideoJob, error) {
	op, err := c.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: job.Name}, nil)
	if err != nil {
		return nil, err
	}
	return videoJob(op), nil
}

// DownloadVideo fetches the asset with the credential as the key parameter.
func (c *GeminiClient) DownloadVideo(ctx context.Context, uri string) (*Asset, error) {
	location, err := WithKeyParam(uri, c.apiKey)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create download request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxVideo+1))
	if err != nil {
		return nil, fmt.Errorf("could not read video body: %w", err)
	}
	if int64(len(data)) > c.maxVideo {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrAssetTooLarge, c.maxVideo)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return &Asset{Data: data, ContentType: contentType}, nil
}

// WithKeyParam appends key=<apiKey> to the query of uri.
func WithKeyParam(uri, apiKey string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid asset location: %w", err)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func contentConfig(system string, temperature *float64) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if temperature != nil {
		t := float32(*temperature)
		config.Temperature = &t
	}
	return config
}

func videoJob(op *genai.GenerateVideosOperation) *VideoJob {
	job := &VideoJob{Name: op.Name, Done: op.Done}
	if op.Error != nil {
		if msg, ok := op.Error["message"]; ok {
			job.Error = fmt.Sprint(msg)
		} else {
			job.Error = fmt.Sprint(op.Error)
		}
	}
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if first := op.Response.GeneratedVideos[0]; first != nil && first.Video != nil {
			job.URI = first.Video.URI
		}
	}
	return job
}
