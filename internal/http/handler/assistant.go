package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatconnect.app/assistant/internal/assistant"
	"chatconnect.app/assistant/internal/http/dto"
	"chatconnect.app/assistant/internal/session"
	"chatconnect.app/assistant/internal/store"
)

// Sessions resolves the session named in the route.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (*session.Session, error)
}

type AssistantHandler struct {
	sessions Sessions
}

func NewAssistantHandler(sessions Sessions) *AssistantHandler {
	return &AssistantHandler{sessions: sessions}
}

func (h *AssistantHandler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *AssistantHandler) State(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Orchestrator.Snapshot())
}

func (h *AssistantHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	msg, err := s.Orchestrator.StartMessage(ctx, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.SendMessageResponse{MessageID: msg.ID, ThreadID: msg.ThreadID})
}

func (h *AssistantHandler) Stop(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.Orchestrator.StopMessage(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *AssistantHandler) SaveFunctionResult(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.FunctionResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	if err := s.Orchestrator.SaveFunctionResult(ctx, c.Param("message_id"), req.CallID, req.ToModel()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *AssistantHandler) ExecuteFunctionCalls(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.ExecuteFunctionCallsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	if err := s.Orchestrator.ExecuteFunctionCalls(ctx, c.Param("message_id"), req.CallIDs); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *AssistantHandler) NewThread(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, dto.NewThreadResponse{ThreadID: s.Orchestrator.StartNewThread(c.Request.Context())})
}

func (h *AssistantHandler) ListThreads(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	threads, err := s.Orchestrator.LoadThreads(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToThreadListResponse(threads))
}

func (h *AssistantHandler) SelectThread(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Orchestrator.SelectThread(c.Request.Context(), c.Param("thread_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Orchestrator.Snapshot())
}

func (h *AssistantHandler) DeleteThread(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Orchestrator.DeleteThread(c.Request.Context(), c.Param("thread_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, assistant.ErrNotConfigured):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, assistant.ErrEmptyMessage), errors.Is(err, session.ErrInvalidSessionID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, assistant.ErrMessageNotFound),
		errors.Is(err, assistant.ErrCallNotFound),
		errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, assistant.ErrNoPage):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		slog.ErrorContext(ctx, "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
