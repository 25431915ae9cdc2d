package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asmr-studio/creator-studio/internal/asset"
	"github.com/asmr-studio/creator-studio/internal/credential"
	"github.com/asmr-studio/creator-studio/internal/events"
	"github.com/asmr-studio/creator-studio/internal/llm"
	"github.com/asmr-studio/creator-studio/internal/model"
	"github.com/asmr-studio/creator-studio/internal/render"
	"github.com/asmr-studio/creator-studio/internal/service"
	"github.com/asmr-studio/creator-studio/pkg/logger"
)

const testSecret = "handler-test-secret"

type cannedGenerator struct {
	plan  string
	chat  string
	err   error
	asset *llm.Asset
}

func (g *cannedGenerator) GeneratePlan(context.Context, string, model.PlanRequest) (string, error) {
	return g.plan, g.err
}

func (g *cannedGenerator) ContinueChat(context.Context, string, []model.Message, string) (string, error) {
	return g.chat, g.err
}

func (g *cannedGenerator) GenerateVideoPreview(context.Context, string, string, model.Category) (*llm.Asset, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.asset, nil
}

type testServer struct {
	*httptest.Server
	assets *asset.Store
	keys   *credential.KeyStore
}

func newTestServer(t *testing.T, gen service.ContentGenerator, configured bool) *testServer {
	t.Helper()
	log := logger.NewNop()
	hub := events.NewHub()
	store := asset.NewStore("")
	keys := credential.NewKeyStore()

	studio := service.NewStudio(service.SessionDeps{
		Generator:   gen,
		Credentials: credential.NewResolver("env-key", func() string { return "env-key" }, nil, log),
		Assets:      store,
		Publisher:   hub,
		Logger:      log,
	}, time.Hour, log)

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Studio:            studio,
		Hub:               hub,
		Assets:            store,
		KeyStore:          keys,
		Configured:        configured,
		SessionSecret:     testSecret,
		SessionTokenTTL:   time.Hour,
		AllowedOrigins:    []string{"http://localhost"},
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		Heartbeat:         time.Hour,
		Logger:            log,
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testServer{Server: srv, assets: store, keys: keys}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/sessions", "", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.CreateSessionResponse](t, resp)
	require.NotEmpty(t, created.Token)
	assert.Equal(t, model.ModeForm, created.Session.Mode)
	return created.Token
}

func TestRouter_ConfigurationMissing(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{}, false)

	resp := srv.do(t, http.MethodPost, "/api/v1/sessions", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "configuration_missing", body.Error)
	assert.Contains(t, body.Message, "API_KEY mancante")

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health", "", "").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, srv.do(t, http.MethodGet, "/ready", "", "").StatusCode)
}

func TestRouter_RequiresToken(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{}, true)

	resp := srv.do(t, http.MethodGet, "/api/v1/session", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_PlanFlow(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{plan: "## 🎬 Titolo\n- pioggia\n**tip** finale"}, true)
	token := srv.createSession(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/session/plan?wait=true", token,
		`{"topic":"rain on a tent","category":"Sleep Aid"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decode[model.SubmitResponse](t, resp)
	require.NotNil(t, submitted.Accepted)
	assert.Equal(t, "Genera un piano per un video ASMR: Sleep Aid - rain on a tent", submitted.Accepted.Content)
	require.Len(t, submitted.Session.Messages, 2)
	assert.Equal(t, model.ModeChat, submitted.Session.Mode)
	assert.False(t, submitted.Session.Busy)

	reply := submitted.Session.Messages[1]
	resp = srv.do(t, http.MethodGet, "/api/v1/session/messages/"+reply.ID+"/blocks", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	blocks := decode[BlocksResponse](t, resp)
	require.Len(t, blocks.Blocks, 3)
	assert.Equal(t, render.KindHeading, blocks.Blocks[0].Kind)
	assert.Equal(t, render.KindBullet, blocks.Blocks[1].Kind)
	assert.Equal(t, render.KindEmphasis, blocks.Blocks[2].Kind)

	resp = srv.do(t, http.MethodDelete, "/api/v1/session", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[model.ConversationState](t, resp)
	assert.Empty(t, state.Messages)
	assert.Equal(t, model.ModeForm, state.Mode)
}

func TestRouter_Validation(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{}, true)
	token := srv.createSession(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"blank topic", "/api/v1/session/plan", `{"topic":"  ","category":"Sleep Aid"}`},
		{"unknown category", "/api/v1/session/plan", `{"topic":"rain","category":"Horror"}`},
		{"malformed json", "/api/v1/session/plan", `{"topic":`},
		{"unknown field", "/api/v1/session/video", `{"topic":"rain","colour":"blue"}`},
		{"empty chat", "/api/v1/session/chat", `{"content":" "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.do(t, http.MethodPost, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "validation_failed", decode[ErrorResponse](t, resp).Error)
		})
	}

	resp := srv.do(t, http.MethodGet, "/api/v1/session", token, "")
	assert.Empty(t, decode[model.ConversationState](t, resp).Messages)
}

func TestRouter_VideoAsset(t *testing.T) {
	payload := []byte("0123456789")
	srv := newTestServer(t, &cannedGenerator{asset: &llm.Asset{Data: payload, ContentType: "video/mp4"}}, true)
	token := srv.createSession(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/session/video?wait=true", token, `{"topic":"rain"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decode[model.SubmitResponse](t, resp)
	require.Len(t, submitted.Session.Messages, 2)
	ref := submitted.Session.Messages[1].VideoAssetRef
	require.NotEmpty(t, ref)

	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, ref, "", "").StatusCode)
	other := srv.createSession(t)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, ref, other, "").StatusCode)

	resp = srv.do(t, http.MethodGet, ref+"?token="+token, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/mp4", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	req, err := http.NewRequest(http.MethodGet, srv.URL+ref, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Range", "bytes=2-4")
	ranged, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ranged.Body.Close()
	assert.Equal(t, http.StatusPartialContent, ranged.StatusCode)
	part, err := io.ReadAll(ranged.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("234"), part)

	resp = srv.do(t, http.MethodDelete, "/api/v1/session", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, srv.do(t, http.MethodGet, ref, token, "").StatusCode)
}

func TestRouter_VideoFailureAppendsApology(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{err: service.ErrTimeout}, true)
	token := srv.createSession(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/session/video?wait=true", token, `{"topic":"rain","category":"Sleep Aid"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decode[model.SubmitResponse](t, resp)
	require.Len(t, submitted.Session.Messages, 2)
	assert.Equal(t, service.VideoApology, submitted.Session.Messages[1].Content)
	assert.False(t, submitted.Session.Busy)
}

func TestRouter_ChatFailureIsSilent(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{err: errors.New("boom")}, true)
	token := srv.createSession(t)

	resp := srv.do(t, http.MethodPost, "/api/v1/session/chat?wait=true", token, `{"content":"ciao"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decode[model.SubmitResponse](t, resp)
	require.Len(t, submitted.Session.Messages, 1)
	assert.Equal(t, model.RoleUser, submitted.Session.Messages[0].Role)
}

func TestRouter_Draft(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{}, true)
	token := srv.createSession(t)

	resp := srv.do(t, http.MethodPut, "/api/v1/session/draft", token, `{"topic":"rain","chat_input":"ciao"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[model.ConversationState](t, resp)
	assert.Equal(t, model.Draft{Topic: "rain", ChatInput: "ciao"}, state.Draft)
}

func TestRouter_SelectCredential(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{}, true)
	token := srv.createSession(t)

	resp := srv.do(t, http.MethodPut, "/api/v1/credential", token, `{"key":" "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, "/api/v1/credential", token, `{"key":"picked"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "picked", srv.keys.Key())
}

func TestRouter_EventStream(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{plan: "ok"}, true)
	token := srv.createSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/session/events?token="+token, nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	reader := bufio.NewReader(stream.Body)
	assert.Equal(t, "snapshot", nextEventName(t, reader))

	resp := srv.do(t, http.MethodPost, "/api/v1/session/plan?wait=true", token, `{"topic":"rain","category":"Sleep Aid"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, string(model.EventMessageAppended), nextEventName(t, reader))
	assert.Equal(t, string(model.EventMessageAppended), nextEventName(t, reader))
}

func nextEventName(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event: "); ok {
			return name
		}
	}
}
