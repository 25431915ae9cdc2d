package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asmr-studio/creator-studio/internal/events"
	"github.com/asmr-studio/creator-studio/internal/llm"
	"github.com/asmr-studio/creator-studio/internal/model"
	"github.com/asmr-studio/creator-studio/pkg/logger"
	"github.com/asmr-studio/creator-studio/pkg/metrics"
)

// publishTimeout bounds a single event delivery.
const publishTimeout = 5 * time.Second

// CredentialResolver yields the credential for the next generative call.
type CredentialResolver interface {
	Resolve(ctx context.Context) string
}

// AssetStore keeps downloaded previews behind playable handles.
type AssetStore interface {
	Put(sessionID, contentType string, data []byte) string
	Release(sessionID string) int
}

// SessionDeps are shared by every session of a studio.
type SessionDeps struct {
	Generator   ContentGenerator
	Credentials CredentialResolver
	Assets      AssetStore
	Publisher   events.Publisher
	Logger      *logger.Logger

	// ChatFailureNotice appends ChatApology when a chat continuation fails.
	// Failures are only logged otherwise.
	ChatFailureNotice bool
}

// Session is one conversation log plus the flags the page renders from.
// At most one action is in flight; results of actions started before the
// latest Reset are discarded.
type Session struct {
	id     string
	deps   SessionDeps
	logger *logger.Logger

	mu        sync.Mutex
	messages  []model.Message
	mode      model.Mode
	busy      model.Action
	draft     model.Draft
	epoch     uint64
	cancel    context.CancelFunc
	closed    bool
	createdAt time.Time
	updatedAt time.Time

	// Events are numbered under mu and published in that order without
	// holding mu. pubSeq is guarded by mu; pubNext by pubMu.
	pubSeq  uint64
	pubMu   sync.Mutex
	pubTurn *sync.Cond
	pubNext uint64
}

// NewSession creates an empty session in form mode.
func NewSession(deps SessionDeps) *Session {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now()
	s := &Session{
		id:        id,
		deps:      deps,
		logger:    deps.Logger.Named("session").With(zap.String("session_id", id)),
		mode:      model.ModeForm,
		createdAt: now,
		updatedAt: now,
	}
	s.pubTurn = sync.NewCond(&s.pubMu)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// LastActive returns when the session last changed.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Busy reports whether an action is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy != model.ActionNone
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() model.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.ConversationState {
	return model.ConversationState{
		SessionID:  s.id,
		Messages:   slices.Clone(s.messages),
		Mode:       s.mode,
		Busy:       s.busy != model.ActionNone,
		BusyAction: s.busy,
		Draft:      s.draft,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
}

// Message returns the turn with the given id.
func (s *Session) Message(id string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg, nil
		}
	}
	return model.Message{}, fmt.Errorf("%w: message %s", ErrNotFound, id)
}

// UpdateDraft sets the bound form fields present in req.
func (s *Session) UpdateDraft(req model.DraftRequest) model.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Topic != nil {
		s.draft.Topic = *req.Topic
	}
	if req.ChatInput != nil {
		s.draft.ChatInput = *req.ChatInput
	}
	s.updatedAt = time.Now()
	return s.snapshotLocked()
}

// Action is the handle of an accepted submit.
type Action struct {
	Kind     model.Action
	Accepted model.Message

	done  chan struct{}
	reply *model.Message
	err   error
	cause error
}

func newAction(kind model.Action, accepted model.Message) *Action {
	return &Action{Kind: kind, Accepted: accepted, done: make(chan struct{})}
}

func (a *Action) resolve(reply *model.Message, err, cause error) {
	a.reply = reply
	a.err = err
	a.cause = cause
	close(a.done)
}

// Done is closed once the action has settled.
func (a *Action) Done() <-chan struct{} {
	return a.done
}

// Result returns the appended model turn. A failure answered with an apology
// turn is not an error; err is set only when nothing was appended or the
// result was discarded. Only valid after Done is closed.
func (a *Action) Result() (*model.Message, error) {
	return a.reply, a.err
}

// Cause returns the generation error behind the action, including one that
// was answered with an apology. Only valid after Done is closed.
func (a *Action) Cause() error {
	return a.cause
}

// Wait blocks until the action settles or ctx is done.
func (a *Action) Wait(ctx context.Context) (*model.Message, error) {
	select {
	case <-a.done:
		return a.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// task describes one action from the user turn to the model turn.
type task struct {
	kind    model.Action
	prompt  string
	topic   string
	apology string
	run     func(ctx context.Context, prior []model.Message) (string, *llm.Asset, error)
}

// StartPlan appends the request turn and generates a content plan in the background.
func (s *Session) StartPlan(ctx context.Context, req model.PlanRequest) (*Action, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrValidation)
	}
	category, err := normalizeCategory(req.Category)
	if err != nil {
		return nil, err
	}
	req.Category = category

	credential, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	return s.begin(task{
		kind:    model.ActionPlan,
		prompt:  PlanUserTurn(req),
		topic:   req.Topic,
		apology: PlanApology,
		run: func(ctx context.Context, _ []model.Message) (string, *llm.Asset, error) {
			reply, err := s.deps.Generator.GeneratePlan(ctx, credential, req)
			return reply, nil, err
		},
	})
}

// StartVideo appends the request turn and generates a video preview in the background.
func (s *Session) StartVideo(ctx context.Context, req model.VideoRequest) (*Action, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrValidation)
	}
	category, err := normalizeCategory(req.Category)
	if err != nil {
		return nil, err
	}

	credential, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	return s.begin(task{
		kind:    model.ActionVideo,
		prompt:  VideoUserTurn(topic, category),
		topic:   topic,
		apology: VideoApology,
		run: func(ctx context.Context, _ []model.Message) (string, *llm.Asset, error) {
			asset, err := s.deps.Generator.GenerateVideoPreview(ctx, credential, topic, category)
			if err != nil {
				return "", nil, err
			}
			return VideoCaption(topic), asset, nil
		},
	})
}

// StartChat appends content as a user turn and continues the conversation in the background.
func (s *Session) StartChat(ctx context.Context, content string) (*Action, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}

	credential, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	var apology string
	if s.deps.ChatFailureNotice {
		apology = ChatApology
	}
	return s.begin(task{
		kind:    model.ActionChatContinue,
		prompt:  content,
		apology: apology,
		run: func(ctx context.Context, prior []model.Message) (string, *llm.Asset, error) {
			reply, err := s.deps.Generator.ContinueChat(ctx, credential, prior, content)
			return reply, nil, err
		},
	})
}

// SubmitPlan runs StartPlan and waits for its result.
func (s *Session) SubmitPlan(ctx context.Context, req model.PlanRequest) (*model.Message, error) {
	action, err := s.StartPlan(ctx, req)
	if err != nil {
		return nil, err
	}
	return action.Wait(ctx)
}

// SubmitVideo runs StartVideo and waits for its result.
func (s *Session) SubmitVideo(ctx context.Context, req model.VideoRequest) (*model.Message, error) {
	action, err := s.StartVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	return action.Wait(ctx)
}

// SubmitChatMessage runs StartChat and waits for its result.
func (s *Session) SubmitChatMessage(ctx context.Context, content string) (*model.Message, error) {
	action, err := s.StartChat(ctx, content)
	if err != nil {
		return nil, err
	}
	return action.Wait(ctx)
}

// Reset clears the log and returns to form mode. An in-flight action is
// cancelled and whatever it returns later is discarded.
func (s *Session) Reset() model.ConversationState {
	s.mu.Lock()
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	dropped := s.busy
	s.messages = nil
	s.busy = model.ActionNone
	s.mode = model.ModeForm
	s.draft.Topic = ""
	s.updatedAt = time.Now()
	released := s.deps.Assets.Release(s.id)
	state := s.snapshotLocked()
	out := s.eventLocked(model.EventSessionReset, nil)
	s.mu.Unlock()
	s.publish(out)

	s.logger.Info("session reset",
		zap.String("cancelled_action", string(dropped)),
		zap.Int("assets_released", released),
	)
	return state
}

// Close cancels any in-flight action and frees the session's assets.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.busy = model.ActionNone
	s.deps.Assets.Release(s.id)
}

// prepare rejects a second action early and resolves the credential.
// Nothing is mutated when it fails.
func (s *Session) prepare(ctx context.Context) (string, error) {
	s.mu.Lock()
	busy, closed := s.busy, s.closed
	s.mu.Unlock()
	if closed {
		return "", fmt.Errorf("%w: session %s", ErrNotFound, s.id)
	}
	if busy != model.ActionNone {
		return "", fmt.Errorf("%w: %s", ErrBusy, busy)
	}

	credential := s.deps.Credentials.Resolve(ctx)
	if credential == "" {
		return "", ErrCredentialUnavailable
	}
	return credential, nil
}

func (s *Session) begin(t task) (*Action, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, s.id)
	}
	if s.busy != model.ActionNone {
		busy := s.busy
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, busy)
	}

	prior := slices.Clone(s.messages)
	user := s.appendLocked(model.RoleUser, t.prompt, "")
	s.mode = model.ModeChat
	s.busy = t.kind
	if t.kind == model.ActionChatContinue {
		s.draft.ChatInput = ""
	}
	if t.topic != "" {
		s.draft.Topic = t.topic
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	epoch := s.epoch
	action := newAction(t.kind, user)
	out := s.eventLocked(model.EventMessageAppended, &user)
	go s.run(ctx, cancel, epoch, t, prior, action)
	s.mu.Unlock()
	s.publish(out)

	s.logger.Debug("action started", zap.String("action", string(t.kind)))
	return action, nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, epoch uint64, t task, prior []model.Message, action *Action) {
	defer cancel()
	reply, asset, err := t.run(ctx, prior)
	s.finish(epoch, t, action, reply, asset, err)
}

func (s *Session) finish(epoch uint64, t task, action *Action, reply string, asset *llm.Asset, err error) {
	s.mu.Lock()
	if epoch != s.epoch || s.closed {
		s.mu.Unlock()
		metrics.LateResultsDropped.WithLabelValues(string(t.kind)).Inc()
		s.logger.Info("late result discarded", zap.String("action", string(t.kind)), zap.Error(err))
		action.resolve(nil, ErrSessionReset, err)
		return
	}

	s.cancel = nil
	s.busy = model.ActionNone

	var msg *model.Message
	result := err
	switch {
	case err != nil:
		s.logger.Error("action failed", zap.String("action", string(t.kind)), zap.Error(err))
		if t.apology != "" {
			m := s.appendLocked(model.RoleModel, t.apology, "")
			msg = &m
			result = nil
		}
	default:
		var ref string
		if asset != nil {
			ref = s.deps.Assets.Put(s.id, asset.ContentType, asset.Data)
		}
		m := s.appendLocked(model.RoleModel, reply, ref)
		msg = &m
	}
	s.updatedAt = time.Now()

	var out outbound
	if msg != nil {
		out = s.eventLocked(model.EventMessageAppended, msg)
	} else {
		out = s.eventLocked(model.EventStateChanged, nil)
	}
	s.mu.Unlock()
	s.publish(out)
	action.resolve(msg, result, err)
}

func (s *Session) appendLocked(role model.Role, content, videoRef string) model.Message {
	now := time.Now()
	msg := model.Message{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Role:          role,
		Content:       content,
		VideoAssetRef: videoRef,
		Timestamp:     now,
	}
	s.messages = append(s.messages, msg)
	s.updatedAt = now
	metrics.MessagesTotal.WithLabelValues(string(role)).Inc()
	return msg
}

// outbound is an event together with its place in the publish order.
type outbound struct {
	seq   uint64
	event *model.SessionEvent
}

// eventLocked builds the event for the transition just committed and
// reserves its turn. The caller must pass the result to publish.
func (s *Session) eventLocked(typ model.EventType, msg *model.Message) outbound {
	seq := s.pubSeq
	s.pubSeq++
	return outbound{seq: seq, event: &model.SessionEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: s.id,
		Type:      typ,
		Message:   msg,
		Mode:      s.mode,
		Busy:      s.busy != model.ActionNone,
		Action:    s.busy,
		CreatedAt: time.Now(),
	}}
}

// publish waits for out's turn and delivers it. It must be called without mu
// held, exactly once per reserved event, or later events never leave.
func (s *Session) publish(out outbound) {
	s.pubMu.Lock()
	for s.pubNext != out.seq {
		s.pubTurn.Wait()
	}
	s.pubMu.Unlock()

	defer func() {
		s.pubMu.Lock()
		s.pubNext++
		s.pubTurn.Broadcast()
		s.pubMu.Unlock()
	}()

	if s.deps.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.deps.Publisher.Publish(ctx, out.event); err != nil {
		s.logger.Warn("failed to publish session event", zap.String("type", string(out.event.Type)), zap.Error(err))
	}
}

func normalizeCategory(c model.Category) (model.Category, error) {
	if c == "" {
		return model.DefaultCategory, nil
	}
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrValidation, c)
	}
	return c, nil
}
