// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/jobpilot/assistant-api/internal/middleware"
	"github.com/jobpilot/assistant-api/internal/model"
	"github.com/jobpilot/assistant-api/internal/service"
	"github.com/jobpilot/assistant-api/internal/store"
	"github.com/jobpilot/assistant-api/pkg/logger"
	"github.com/jobpilot/assistant-api/pkg/metrics"
)

// ChatHandler handles chat endpoints.
type ChatHandler struct {
	chat   *service.Chat
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.Chat, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: log}
}

func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request) (*model.ChatRequest, bool) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
	}

	return &req, true
}

// Send handles POST /api/v1/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.chat.Send(ctx, userID, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("chat turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stream handles POST /api/v1/chat/stream
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	flusher, okFlush := w.(http.Flusher)
	if !okFlush {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// SSE headers go out with the first frame, so a failed
	// conversation lookup can still produce a real status code.
	started := false
	err := h.chat.SendStream(ctx, userID, req.ConversationID, req.Message, func(ev model.StreamEvent) error {
		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
			w.WriteHeader(http.StatusOK)
			started = true
		}
		return sendSSEEvent(w, flusher, ev)
	})
	if err != nil {
		if !started {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "conversation not found")
				return
			}
			h.logger.Error("streamed chat turn failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to process message")
			return
		}
		// Headers are already out; the error event (if the client was
		// still connected) is all we can deliver.
		h.logger.Error("streamed chat turn failed", zap.Error(err))
	}
}

// sendSSEEvent writes one data-only SSE frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev model.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
