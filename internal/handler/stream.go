package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/asmr-studio/creator-studio/internal/events"
	"github.com/asmr-studio/creator-studio/internal/middleware"
	"github.com/asmr-studio/creator-studio/internal/model"
	"github.com/asmr-studio/creator-studio/internal/service"
	"github.com/asmr-studio/creator-studio/pkg/logger"
	"github.com/asmr-studio/creator-studio/pkg/metrics"
)

// DefaultHeartbeat is the interval between keep-alive events.
const DefaultHeartbeat = 30 * time.Second

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	studio    *service.Studio
	hub       *events.Hub
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(studio *service.Studio, hub *events.Hub, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandler{
		studio:    studio,
		hub:       hub,
		heartbeat: heartbeat,
		logger:    log,
	}
}

// Stream handles GET /api/v1/session/events
// The first event is a snapshot of the session; committed transitions follow.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	sess, err := h.studio.Get(sessionID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming not supported")
		return
	}

	// Subscribe before the snapshot so no transition falls in between.
	sub, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()
	h.logger.Debug("SSE client connected",
		zap.String("session_id", sessionID),
		zap.Int("subscribers", h.hub.Subscribers(sessionID)),
	)

	if err := sendSSEEvent(w, flusher, "snapshot", sess.Snapshot()); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("session_id", sessionID))
			return

		case event, ok := <-sub:
			if !ok {
				_ = sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
					Code:    "stream_closed",
					Message: "event stream closed",
				})
				return
			}
			if err := sendSSEEvent(w, flusher, string(event.Type), event); err != nil {
				h.logger.Warn("failed to write SSE event", zap.String("session_id", sessionID), zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
