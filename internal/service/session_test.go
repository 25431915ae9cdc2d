package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asmr-studio/creator-studio/internal/asset"
	"github.com/asmr-studio/creator-studio/internal/llm"
	"github.com/asmr-studio/creator-studio/internal/model"
	"github.com/asmr-studio/creator-studio/pkg/logger"
)

type sessionFixture struct {
	session   *Session
	generator *stubGenerator
	assets    *asset.Store
	events    *recordingPublisher
}

func newSessionFixture(t *testing.T, gen *stubGenerator, credential string) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		generator: gen,
		assets:    asset.NewStore(""),
		events:    &recordingPublisher{},
	}
	f.session = NewSession(SessionDeps{
		Generator:   gen,
		Credentials: staticCredential(credential),
		Assets:      f.assets,
		Publisher:   f.events,
		Logger:      logger.NewNop(),
	})
	return f
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSession_NewIsEmptyForm(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{}, "key")

	state := f.session.Snapshot()
	assert.Empty(t, state.Messages)
	assert.Equal(t, model.ModeForm, state.Mode)
	assert.False(t, state.Busy)
	assert.Equal(t, f.session.ID(), state.SessionID)
}

func TestSession_SubmitPlan(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{reply: "## 🎬 Titolo"}, "key")

	reply, err := f.session.SubmitPlan(waitCtx(t), model.PlanRequest{Topic: " rain on a tent ", Category: model.CategorySleepAid})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, model.RoleModel, reply.Role)
	assert.Equal(t, "## 🎬 Titolo", reply.Content)

	state := f.session.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, model.RoleUser, state.Messages[0].Role)
	assert.Equal(t, "Genera un piano per un video ASMR: Sleep Aid - rain on a tent", state.Messages[0].Content)
	assert.Equal(t, model.ModeChat, state.Mode)
	assert.False(t, state.Busy)
	assert.Equal(t, "rain on a tent", state.Draft.Topic)

	assert.Equal(t, []model.EventType{model.EventMessageAppended, model.EventMessageAppended}, f.events.types())
	assert.True(t, f.events.events[0].Busy)
	assert.Equal(t, model.ActionPlan, f.events.events[0].Action)
	assert.False(t, f.events.events[1].Busy)
}

func TestSession_SubmitPlan_AppendsToExistingLog(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{reply: "ok"}, "key")
	ctx := waitCtx(t)

	_, err := f.session.SubmitPlan(ctx, model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	before := f.session.Snapshot().Messages

	_, err = f.session.SubmitPlan(ctx, model.PlanRequest{Topic: "tapping", Category: model.CategoryUnboxing})
	require.NoError(t, err)

	state := f.session.Snapshot()
	require.Len(t, state.Messages, 4)
	assert.Equal(t, before, state.Messages[:2])
	roles := make([]model.Role, len(state.Messages))
	for i, msg := range state.Messages {
		roles[i] = msg.Role
	}
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleModel, model.RoleUser, model.RoleModel}, roles)
	assert.Equal(t, "Genera un piano per un video ASMR: Unboxing - tapping", state.Messages[2].Content)
}

func TestSession_SubmitPlan_DefaultCategory(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{reply: "ok"}, "key")

	_, err := f.session.SubmitPlan(waitCtx(t), model.PlanRequest{Topic: "whispers"})
	require.NoError(t, err)
	assert.Equal(t, "Genera un piano per un video ASMR: Roleplay - whispers", f.session.Snapshot().Messages[0].Content)
}

func TestSession_SubmitPlan_Failure(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{err: &GenerationError{Operation: "plan", Provider: "fake", Err: errors.New("boom")}}, "key")

	action, err := f.session.StartPlan(waitCtx(t), model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	reply, err := action.Wait(waitCtx(t))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, PlanApology, reply.Content)
	assert.ErrorIs(t, action.Cause(), ErrGeneration)

	state := f.session.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, PlanApology, state.Messages[1].Content)
	assert.False(t, state.Busy)
}

func TestSession_Validation(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{}, "key")
	ctx := waitCtx(t)

	_, err := f.session.StartPlan(ctx, model.PlanRequest{Topic: "   ", Category: model.CategorySleepAid})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.session.StartPlan(ctx, model.PlanRequest{Topic: "rain", Category: "Horror"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.session.StartVideo(ctx, model.VideoRequest{Topic: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.session.StartChat(ctx, " \n ")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.session.Snapshot().Messages)
	assert.Zero(t, f.generator.calls)
	assert.Empty(t, f.events.types())
}

func TestSession_CredentialUnavailable(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{}, "")
	ctx := waitCtx(t)

	_, err := f.session.StartPlan(ctx, model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	_, err = f.session.StartVideo(ctx, model.VideoRequest{Topic: "rain", Category: model.CategorySleepAid})
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
	_, err = f.session.StartChat(ctx, "ciao")
	assert.ErrorIs(t, err, ErrCredentialUnavailable)

	state := f.session.Snapshot()
	assert.Empty(t, state.Messages)
	assert.Equal(t, model.ModeForm, state.Mode)
	assert.False(t, state.Busy)
	assert.Zero(t, f.generator.calls)
}

func TestSession_SubmitVideo(t *testing.T) {
	gen := &stubGenerator{asset: &llm.Asset{Data: []byte("mp4"), ContentType: "video/mp4"}}
	f := newSessionFixture(t, gen, "key")

	reply, err := f.session.SubmitVideo(waitCtx(t), model.VideoRequest{Topic: "rain on a tent", Category: model.CategorySleepAid})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "Ecco un'anteprima visiva generata con Veo per il tuo concept \"rain on a tent\".", reply.Content)
	require.True(t, reply.HasVideo())
	assert.Equal(t, 1, f.assets.Len())

	state := f.session.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Genera un'anteprima video per: Sleep Aid - rain on a tent", state.Messages[0].Content)
	assert.Equal(t, model.ModeChat, state.Mode)
	assert.False(t, state.Busy)
}

func TestSession_SubmitVideo_Timeout(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{err: ErrTimeout}, "key")

	reply, err := f.session.SubmitVideo(waitCtx(t), model.VideoRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, VideoApology, reply.Content)
	assert.False(t, reply.HasVideo())
	assert.False(t, f.session.Snapshot().Busy)
	assert.Zero(t, f.assets.Len())
}

func TestSession_SubmitChatMessage(t *testing.T) {
	gen := &stubGenerator{reply: "Certo"}
	f := newSessionFixture(t, gen, "key")
	ctx := waitCtx(t)

	_, err := f.session.SubmitPlan(ctx, model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	f.session.UpdateDraft(model.DraftRequest{ChatInput: ptr("più corto")})

	reply, err := f.session.SubmitChatMessage(ctx, "più corto")
	require.NoError(t, err)
	assert.Equal(t, "Certo", reply.Content)

	state := f.session.Snapshot()
	require.Len(t, state.Messages, 4)
	assert.Equal(t, "più corto", state.Messages[2].Content)
	assert.Empty(t, state.Draft.ChatInput)
	assert.Len(t, gen.prior, 2, "history excludes the new turn")
}

func TestSession_ChatFailureIsSilent(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{err: errors.New("boom")}, "key")

	action, err := f.session.StartChat(waitCtx(t), "ciao")
	require.NoError(t, err)
	reply, err := action.Wait(waitCtx(t))
	assert.Error(t, err)
	assert.Equal(t, err, action.Cause())
	assert.Nil(t, reply)

	state := f.session.Snapshot()
	require.Len(t, state.Messages, 1)
	assert.Equal(t, model.RoleUser, state.Messages[0].Role)
	assert.False(t, state.Busy)
	assert.Equal(t, []model.EventType{model.EventMessageAppended, model.EventStateChanged}, f.events.types())
}

func TestSession_ChatFailureNotice(t *testing.T) {
	gen := &stubGenerator{err: errors.New("boom")}
	sess := NewSession(SessionDeps{
		Generator:         gen,
		Credentials:       staticCredential("key"),
		Assets:            asset.NewStore(""),
		Logger:            logger.NewNop(),
		ChatFailureNotice: true,
	})

	reply, err := sess.SubmitChatMessage(waitCtx(t), "ciao")
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, ChatApology, reply.Content)
	assert.Len(t, sess.Snapshot().Messages, 2)
}

func TestSession_BusyRejectsSecondAction(t *testing.T) {
	gen := &stubGenerator{reply: "ok", block: make(chan struct{}), started: make(chan struct{}, 1)}
	f := newSessionFixture(t, gen, "key")
	ctx := waitCtx(t)

	action, err := f.session.StartPlan(ctx, model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	<-gen.started

	state := f.session.Snapshot()
	assert.True(t, state.Busy)
	assert.Equal(t, model.ActionPlan, state.BusyAction)

	_, err = f.session.StartVideo(ctx, model.VideoRequest{Topic: "rain", Category: model.CategorySleepAid})
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.session.StartChat(ctx, "ciao")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, f.session.Snapshot().Messages, 1)

	close(gen.block)
	_, err = action.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, f.session.Snapshot().Messages, 2)
}

func TestSession_ResetDiscardsLateResult(t *testing.T) {
	gen := &stubGenerator{reply: "late", block: make(chan struct{}), started: make(chan struct{}, 1)}
	f := newSessionFixture(t, gen, "key")
	ctx := waitCtx(t)

	action, err := f.session.StartPlan(ctx, model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	<-gen.started

	state := f.session.Reset()
	assert.Empty(t, state.Messages)
	assert.Equal(t, model.ModeForm, state.Mode)
	assert.False(t, state.Busy)
	assert.Empty(t, state.Draft.Topic)

	_, err = action.Wait(ctx)
	assert.ErrorIs(t, err, ErrSessionReset)

	state = f.session.Snapshot()
	assert.Empty(t, state.Messages)
	assert.False(t, state.Busy)
	assert.Equal(t, model.EventSessionReset, f.events.types()[len(f.events.types())-1])

	// A new action is accepted right away.
	gen.mu.Lock()
	gen.block = nil
	gen.started = nil
	gen.mu.Unlock()
	_, err = f.session.SubmitPlan(ctx, model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	assert.Len(t, f.session.Snapshot().Messages, 2)
}

func TestSession_StateReadableDuringSlowPublish(t *testing.T) {
	pub := &gatedPublisher{entered: make(chan struct{}), gate: make(chan struct{})}
	sess := NewSession(SessionDeps{
		Generator:   &stubGenerator{reply: "ok"},
		Credentials: staticCredential("key"),
		Assets:      asset.NewStore(""),
		Publisher:   pub,
		Logger:      logger.NewNop(),
	})
	ctx := waitCtx(t)

	started := make(chan *Action, 1)
	go func() {
		action, err := sess.StartPlan(ctx, model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
		assert.NoError(t, err)
		started <- action
	}()
	<-pub.entered

	// The first event is still in flight; the reply is already committed.
	assert.Eventually(t, func() bool {
		state := sess.Snapshot()
		return len(state.Messages) == 2 && !state.Busy
	}, time.Second, 5*time.Millisecond)
	assert.False(t, sess.Busy())

	close(pub.gate)
	action := <-started
	require.NotNil(t, action)
	_, err := action.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, []model.EventType{model.EventMessageAppended, model.EventMessageAppended}, pub.types())
	assert.Equal(t, model.RoleUser, pub.events[0].Message.Role)
	assert.True(t, pub.events[0].Busy)
	assert.Equal(t, model.RoleModel, pub.events[1].Message.Role)
	assert.False(t, pub.events[1].Busy)
}

func TestSession_ResetReleasesAssets(t *testing.T) {
	gen := &stubGenerator{asset: &llm.Asset{Data: []byte("mp4"), ContentType: "video/mp4"}}
	f := newSessionFixture(t, gen, "key")

	_, err := f.session.SubmitVideo(waitCtx(t), model.VideoRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)
	require.Equal(t, 1, f.assets.Len())

	state := f.session.Reset()
	assert.Empty(t, state.Messages)
	assert.Zero(t, f.assets.Len())
}

func TestSession_ResetWhenIdle(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{}, "key")

	state := f.session.Reset()
	assert.Empty(t, state.Messages)
	assert.Equal(t, model.ModeForm, state.Mode)
	assert.False(t, state.Busy)
}

func TestSession_Message(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{reply: "## 🎬 Titolo"}, "key")

	reply, err := f.session.SubmitPlan(waitCtx(t), model.PlanRequest{Topic: "rain", Category: model.CategorySleepAid})
	require.NoError(t, err)

	msg, err := f.session.Message(reply.ID)
	require.NoError(t, err)
	assert.Equal(t, reply.Content, msg.Content)

	_, err = f.session.Message("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSession_UpdateDraft(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{}, "key")

	state := f.session.UpdateDraft(model.DraftRequest{Topic: ptr("rain")})
	assert.Equal(t, "rain", state.Draft.Topic)
	assert.Empty(t, state.Draft.ChatInput)

	state = f.session.UpdateDraft(model.DraftRequest{ChatInput: ptr("ciao")})
	assert.Equal(t, "rain", state.Draft.Topic)
	assert.Equal(t, "ciao", state.Draft.ChatInput)
}

func TestSession_Closed(t *testing.T) {
	f := newSessionFixture(t, &stubGenerator{}, "key")
	f.session.Close()

	_, err := f.session.StartChat(waitCtx(t), "ciao")
	assert.ErrorIs(t, err, ErrNotFound)
}

func ptr(s string) *string { return &s }
