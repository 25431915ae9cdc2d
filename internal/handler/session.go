package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/asmr-studio/creator-studio/internal/middleware"
	"github.com/asmr-studio/creator-studio/internal/model"
	"github.com/asmr-studio/creator-studio/internal/render"
	"github.com/asmr-studio/creator-studio/internal/service"
	"github.com/asmr-studio/creator-studio/pkg/logger"
)

// BlocksResponse is the renderer output for one message.
type BlocksResponse struct {
	MessageID string         `json:"message_id"`
	Blocks    []render.Block `json:"blocks"`
}

// SessionHandler handles session endpoints.
type SessionHandler struct {
	studio   *service.Studio
	secret   string
	tokenTTL time.Duration
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(studio *service.Studio, secret string, tokenTTL time.Duration, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		studio:   studio,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := h.studio.Create()

	token, err := middleware.IssueToken(h.secret, sess.ID(), h.tokenTTL)
	if err != nil {
		_ = h.studio.Delete(sess.ID())
		respondWithError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, &model.CreateSessionResponse{
		Session: sess.Snapshot(),
		Token:   token,
	})
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Reset handles DELETE /api/v1/session
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Reset())
}

// UpdateDraft handles PUT /api/v1/session/draft
func (h *SessionHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.DraftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.UpdateDraft(req))
}

// SubmitPlan handles POST /api/v1/session/plan
func (h *SessionHandler) SubmitPlan(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.PlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if req.Category == "" {
		req.Category = model.DefaultCategory
	}
	if err := middleware.Validate(req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	action, err := sess.StartPlan(r.Context(), req)
	h.accepted(w, r, sess, action, err)
}

// SubmitVideo handles POST /api/v1/session/video
func (h *SessionHandler) SubmitVideo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.VideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if req.Category == "" {
		req.Category = model.DefaultCategory
	}
	if err := middleware.Validate(req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	action, err := sess.StartVideo(r.Context(), req)
	h.accepted(w, r, sess, action, err)
}

// SubmitChat handles POST /api/v1/session/chat
func (h *SessionHandler) SubmitChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.SendChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := middleware.ValidateContent(req.Content); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	action, err := sess.StartChat(r.Context(), req.Content)
	h.accepted(w, r, sess, action, err)
}

// Blocks handles GET /api/v1/session/messages/{id}/blocks
func (h *SessionHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	messageID := chi.URLParam(r, "id")
	if err := middleware.ValidateID(messageID); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	msg, err := sess.Message(messageID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &BlocksResponse{
		MessageID: msg.ID,
		Blocks:    render.Collect(msg.Content),
	})
}

// accepted answers a submit: 202 right away, or 200 once it settles with ?wait=true.
func (h *SessionHandler) accepted(w http.ResponseWriter, r *http.Request, sess *service.Session, action *service.Action, err error) {
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if _, err := action.Wait(r.Context()); err != nil && r.Context().Err() != nil {
			h.logger.Debug("client left before action settled",
				zap.String("session_id", sess.ID()),
				zap.String("action", string(action.Kind)),
			)
			return
		}
		writeJSON(w, http.StatusOK, &model.SubmitResponse{
			Accepted: &action.Accepted,
			Session:  sess.Snapshot(),
		})
		return
	}

	writeJSON(w, http.StatusAccepted, &model.SubmitResponse{
		Accepted: &action.Accepted,
		Session:  sess.Snapshot(),
	})
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sess, err := h.lookup(r.Context())
	if err != nil {
		respondWithError(w, h.logger, err)
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) lookup(ctx context.Context) (*service.Session, error) {
	return h.studio.Get(middleware.GetSessionID(ctx))
}
