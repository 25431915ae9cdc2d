package service

import (
	"context"
	"sync"

	"github.com/asmr-studio/creator-studio/internal/llm"
	"github.com/asmr-studio/creator-studio/internal/model"
)

type fakeText struct {
	mu       sync.Mutex
	reply    string
	err      error
	generate []*llm.TextRequest
	chats    []*llm.ChatRequest
}

func (f *fakeText) Generate(_ context.Context, req *llm.TextRequest) (*llm.TextResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generate = append(f.generate, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.TextResponse{Content: f.reply}, nil
}

func (f *fakeText) Chat(_ context.Context, req *llm.ChatRequest) (*llm.TextResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.TextResponse{Content: f.reply}, nil
}

func (f *fakeText) Name() string { return "fake" }

// fakeVideo reports done after doneAfter polls.
type fakeVideo struct {
	mu          sync.Mutex
	doneAfter   int
	uri         string
	jobError    string
	submitErr   error
	pollErr     error
	downloadErr error
	asset       *llm.Asset
	polls       int
	submitted   *llm.VideoRequest
}

func (f *fakeVideo) SubmitVideo(_ context.Context, req *llm.VideoRequest) (*llm.VideoJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &llm.VideoJob{Name: "operations/1"}, nil
}

func (f *fakeVideo) PollVideo(_ context.Context, job *llm.VideoJob) (*llm.VideoJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.doneAfter < 0 || f.polls < f.doneAfter {
		return &llm.VideoJob{Name: job.Name}, nil
	}
	return &llm.VideoJob{Name: job.Name, Done: true, URI: f.uri, Error: f.jobError}, nil
}

func (f *fakeVideo) DownloadVideo(_ context.Context, _ string) (*llm.Asset, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if f.asset != nil {
		return f.asset, nil
	}
	return &llm.Asset{Data: []byte("mp4"), ContentType: "video/mp4"}, nil
}

func (f *fakeVideo) Name() string { return "fake" }

func (f *fakeVideo) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type fakeFactory struct {
	text  *fakeText
	video *fakeVideo
	keys  []string
	mu    sync.Mutex
}

func (f *fakeFactory) Text(_ context.Context, apiKey string) (llm.TextClient, error) {
	f.mu.Lock()
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()
	if apiKey == "" {
		return nil, llm.ErrMissingAPIKey
	}
	return f.text, nil
}

func (f *fakeFactory) Video(_ context.Context, apiKey string) (llm.VideoClient, error) {
	f.mu.Lock()
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()
	if apiKey == "" {
		return nil, llm.ErrMissingAPIKey
	}
	return f.video, nil
}

// stubGenerator returns canned results; block, when set, holds every call
// until it is closed or the call's context ends.
type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	asset   *llm.Asset
	block   chan struct{}
	started chan struct{}
	prior   []model.Message
	calls   int
}

func (g *stubGenerator) wait(ctx context.Context) error {
	g.mu.Lock()
	g.calls++
	block, started := g.block, g.started
	g.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *stubGenerator) GeneratePlan(ctx context.Context, _ string, _ model.PlanRequest) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return g.reply, g.err
}

func (g *stubGenerator) ContinueChat(ctx context.Context, _ string, prior []model.Message, _ string) (string, error) {
	g.mu.Lock()
	g.prior = prior
	g.mu.Unlock()
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	return g.reply, g.err
}

func (g *stubGenerator) GenerateVideoPreview(ctx context.Context, _, _ string, _ model.Category) (*llm.Asset, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.asset, nil
}

type staticCredential string

func (c staticCredential) Resolve(context.Context) string { return string(c) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SessionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event *model.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// gatedPublisher holds the first delivery until gate is closed.
type gatedPublisher struct {
	recordingPublisher
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (p *gatedPublisher) Publish(ctx context.Context, event *model.SessionEvent) error {
	p.once.Do(func() {
		close(p.entered)
		<-p.gate
	})
	return p.recordingPublisher.Publish(ctx, event)
}
