package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/asmr-studio/creator-studio/internal/llm"
	"github.com/asmr-studio/creator-studio/internal/model"
	"github.com/asmr-studio/creator-studio/pkg/logger"
	"github.com/asmr-studio/creator-studio/pkg/metrics"
	"github.com/asmr-studio/creator-studio/pkg/tracing"
)

// ContentGenerator is the generative request client used by sessions.
type ContentGenerator interface {
	GeneratePlan(ctx context.Context, credential string, req model.PlanRequest) (string, error)
	ContinueChat(ctx context.Context, credential string, prior []model.Message, message string) (string, error)
	GenerateVideoPreview(ctx context.Context, credential, topic string, category model.Category) (*llm.Asset, error)
}

// GeneratorConfig holds the fixed generation settings.
type GeneratorConfig struct {
	TextModel       string
	VideoModel      string
	PlanTemperature float64
	PollInterval    time.Duration
	PollTimeout     time.Duration
	MaxPolls        int
}

// Generator builds prompts and drives the remote endpoints. It keeps no
// per-call state; a provider client is built from the credential on every call.
type Generator struct {
	factory llm.Factory
	cfg     GeneratorConfig
	logger  *logger.Logger
}

// NewGenerator creates a new Generator.
func NewGenerator(factory llm.Factory, cfg GeneratorConfig, log *logger.Logger) *Generator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Generator{
		factory: factory,
		cfg:     cfg,
		logger:  log.Named("generator"),
	}
}

// GeneratePlan produces a content plan for req.
func (g *Generator) GeneratePlan(ctx context.Context, credential string, req model.PlanRequest) (string, error) {
	ctx, span := tracing.Start(ctx, "generator.GeneratePlan", trace.WithAttributes(
		attribute.String("asmr.category", string(req.Category)),
	))
	defer span.End()

	client, err := g.factory.Text(ctx, credential)
	if err != nil {
		return "", g.fail(span, &GenerationError{Operation: "plan", Provider: "text", Err: err})
	}

	temperature := g.cfg.PlanTemperature
	start := time.Now()
	resp, err := client.Generate(ctx, &llm.TextRequest{
		Model:       g.cfg.TextModel,
		System:      SystemInstruction,
		Prompt:      BuildPlanPrompt(req),
		Temperature: &temperature,
	})
	if err != nil {
		metrics.RecordGeneration("plan", client.Name(), "error", time.Since(start).Seconds())
		return "", g.fail(span, &GenerationError{Operation: "plan", Provider: client.Name(), Err: err})
	}
	metrics.RecordGeneration("plan", client.Name(), "success", time.Since(start).Seconds())

	if strings.TrimSpace(resp.Content) == "" {
		g.logger.Warn("empty plan reply", zap.String("provider", client.Name()))
		return PlanFallback, nil
	}
	return resp.Content, nil
}

// ContinueChat replays prior turns and sends message. Video references are
// not replayed; turns without text are skipped.
func (g *Generator) ContinueChat(ctx context.Context, credential string, prior []model.Message, message string) (string, error) {
	ctx, span := tracing.Start(ctx, "generator.ContinueChat", trace.WithAttributes(
		attribute.Int("chat.history_len", len(prior)),
	))
	defer span.End()

	client, err := g.factory.Text(ctx, credential)
	if err != nil {
		return "", g.fail(span, &GenerationError{Operation: "chat", Provider: "text", Err: err})
	}

	start := time.Now()
	resp, err := client.Chat(ctx, &llm.ChatRequest{
		Model:   g.cfg.TextModel,
		System:  SystemInstruction,
		History: ChatHistory(prior),
		Message: message,
	})
	if err != nil {
		metrics.RecordGeneration("chat", client.Name(), "error", time.Since(start).Seconds())
		return "", g.fail(span, &GenerationError{Operation: "chat", Provider: client.Name(), Err: err})
	}
	metrics.RecordGeneration("chat", client.Name(), "success", time.Since(start).Seconds())

	if strings.TrimSpace(resp.Content) == "" {
		return ChatFallback, nil
	}
	return resp.Content, nil
}

// ChatHistory converts the conversation log to replayable text turns.
func ChatHistory(prior []model.Message) []llm.ChatMessage {
	history := make([]llm.ChatMessage, 0, len(prior))
	for _, msg := range prior {
		if msg.Content == "" {
			continue
		}
		role := llm.RoleUser
		if msg.Role == model.RoleModel {
			role = llm.RoleModel
		}
		history = append(history, llm.ChatMessage{Role: role, Content: msg.Content})
	}
	return history
}

// GenerateVideoPreview submits one video job, polls it to completion within
// the configured bounds and downloads the first generated asset.
func (g *Generator) GenerateVideoPreview(ctx context.Context, credential, topic string, category model.Category) (*llm.Asset, error) {
	ctx, span := tracing.Start(ctx, "generator.GenerateVideoPreview", trace.WithAttributes(
		attribute.String("asmr.category", string(category)),
	))
	defer span.End()

	client, err := g.factory.Video(ctx, credential)
	if err != nil {
		return nil, g.fail(span, &GenerationError{Operation: "video", Provider: "video", Err: err})
	}

	start := time.Now()
	asset, err := g.runVideo(ctx, client, topic, category)
	if err != nil {
		metrics.RecordGeneration("video", client.Name(), "error", time.Since(start).Seconds())
		return nil, g.fail(span, err)
	}
	metrics.RecordGeneration("video", client.Name(), "success", time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("video.bytes", len(asset.Data)))
	return asset, nil
}

func (g *Generator) runVideo(ctx context.Context, client llm.VideoClient, topic string, category model.Category) (*llm.Asset, error) {
	job, err := client.SubmitVideo(ctx, &llm.VideoRequest{
		Model:       g.cfg.VideoModel,
		Prompt:      BuildVideoPrompt(topic, category),
		Count:       VideoCount,
		Resolution:  VideoResolution,
		AspectRatio: VideoAspectRatio,
	})
	if err != nil {
		return nil, &GenerationError{Operation: "video", Provider: client.Name(), Err: err}
	}

	job, err = g.awaitVideo(ctx, client, job)
	if err != nil {
		return nil, err
	}
	if job.Error != "" {
		return nil, &GenerationError{Operation: "video", Provider: client.Name(), Err: errors.New(job.Error)}
	}
	if job.URI == "" {
		return nil, ErrAssetNotFound
	}

	asset, err := client.DownloadVideo(ctx, job.URI)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return asset, nil
}

// awaitVideo sleeps PollInterval between status checks until the job is done.
// It gives up with ErrTimeout after PollTimeout or MaxPolls checks, whichever
// comes first; a cancelled ctx aborts with ctx.Err().
func (g *Generator) awaitVideo(ctx context.Context, client llm.VideoClient, job *llm.VideoJob) (*llm.VideoJob, error) {
	pollCtx := ctx
	if g.cfg.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, g.cfg.PollTimeout)
		defer cancel()
	}

	timer := time.NewTimer(g.cfg.PollInterval)
	defer timer.Stop()

	polls := 0
	for !job.Done {
		if g.cfg.MaxPolls > 0 && polls >= g.cfg.MaxPolls {
			return nil, fmt.Errorf("%w: job %s not done after %d status checks", ErrTimeout, job.Name, polls)
		}

		select {
		case <-pollCtx.Done():
			return nil, g.pollAborted(ctx, job, polls)
		case <-timer.C:
		}

		next, err := client.PollVideo(pollCtx, job)
		polls++
		metrics.VideoPollsTotal.Inc()
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, g.pollAborted(ctx, job, polls)
			}
			return nil, &GenerationError{Operation: "video.poll", Provider: client.Name(), Err: err}
		}
		job = next
		g.logger.Debug("video job polled", zap.String("job", job.Name), zap.Int("polls", polls), zap.Bool("done", job.Done))

		timer.Reset(g.cfg.PollInterval)
	}
	return job, nil
}

func (g *Generator) pollAborted(ctx context.Context, job *llm.VideoJob, polls int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s not done within %s (%d status checks)", ErrTimeout, job.Name, g.cfg.PollTimeout, polls)
}

func (g *Generator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
