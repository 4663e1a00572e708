package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chatconnect.app/assistant/common/id"
	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/http/dto"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/page"
	"chatconnect.app/assistant/internal/queue"
)

// PageRelay connects extension streams to the page command queue.
type PageRelay interface {
	Open(ctx context.Context, sessionID, connectionID string) (page.CommandReader, error)
	Deliver(ctx context.Context, sessionID, commandID string, result model.FunctionResult) error
}

type StreamHandler struct {
	sessions     Sessions
	relay        PageRelay
	pingInterval time.Duration
}

// NewStreamHandler builds the SSE handler. relay may be nil, in which case
// the stream carries state only.
func NewStreamHandler(sessions Sessions, relay PageRelay, pingInterval time.Duration) *StreamHandler {
	if pingInterval <= 0 {
		pingInterval = 25 * time.Second
	}
	return &StreamHandler{sessions: sessions, relay: relay, pingInterval: pingInterval}
}

// Stream sends the session's state after every change and relays page
// commands to the extension.
func (h *StreamHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.sessions.Get(ctx, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	states, unsubscribe := s.Broker.Subscribe()
	defer unsubscribe()

	commands := make(chan queue.Command)
	if h.relay != nil {
		reader, err := h.relay.Open(ctx, s.ID, id.NewString())
		if err != nil {
			slog.ErrorContext(ctx, "opening page command reader failed", "error", err)
		} else {
			defer func() {
				if err := reader.Close(context.WithoutCancel(ctx)); err != nil {
					slog.WarnContext(ctx, "closing page command reader failed", "error", err)
				}
			}()
			go pumpCommands(ctx, reader, commands)
		}
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	sseWrite(c.Writer, "state", s.Orchestrator.Snapshot())
	flusher.Flush()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			sseWrite(c.Writer, "state", state)
		case cmd := <-commands:
			sseWrite(c.Writer, "page_command", cmd)
		case <-ticker.C:
			sseWrite(c.Writer, "ping", time.Now().UTC().Format(time.RFC3339Nano))
		}
		flusher.Flush()
	}
}

// PageResult accepts the extension's answer to a page command. The result
// only reaches a bridge call waiting in the same session.
func (h *StreamHandler) PageResult(c *gin.Context) {
	ctx := c.Request.Context()
	if h.relay == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "page bridge not configured"})
		return
	}

	s, err := h.sessions.Get(ctx, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var req dto.PageResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sc := logger.StartSpanFromTraceID(ctx, req.TraceID, req.SpanID, "page.result", trace.WithSpanKind(trace.SpanKindServer))
	defer sc.End()
	ctx = sc.Context()
	sc.Span().SetAttributes(
		attribute.String("page.command_id", req.CommandID),
		attribute.Bool("page.success", req.Success),
	)

	if err := h.relay.Deliver(ctx, s.ID, req.CommandID, req.ToModel()); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "delivering page result failed", "error", err, "command_id", req.CommandID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deliver result"})
		return
	}
	c.Status(http.StatusNoContent)
}

func pumpCommands(ctx context.Context, reader page.CommandReader, out chan<- queue.Command) {
	for ctx.Err() == nil {
		msgs, err := reader.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.WarnContext(ctx, "reading page commands failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for _, msg := range msgs {
			select {
			case out <- msg.Command:
			case <-ctx.Done():
				return
			}
			if err := reader.Ack(ctx, msg); err != nil {
				slog.WarnContext(ctx, "acking page command failed", "error", err, "command_id", msg.Command.ID)
			}
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, event string, data any) {
	payload := marshalPayload(data)
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case []byte:
		return string(payload)
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
