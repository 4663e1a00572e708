package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"chatconnect.app/assistant/common/id"
	"chatconnect.app/assistant/common/llm"
	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/tools"
)

// LLMAdapter is an Adapter over an llm.AgentClient. Streaming clients produce
// Created, deltas, function call events and Completed. Clients that cannot
// stream produce a single Fallback.
type LLMAdapter struct {
	client      llm.AgentClient
	newID       func() string
	maxAttempts int
	retryDelay  time.Duration

	mu         sync.Mutex
	cancel     context.CancelFunc
	generation uint64
}

type Option func(*LLMAdapter)

// WithIDGenerator sets how message and content ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(a *LLMAdapter) { a.newID = fn }
}

// WithRetry sets how often a request failing before its first event is attempted.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(a *LLMAdapter) {
		a.maxAttempts = maxAttempts
		a.retryDelay = delay
	}
}

func NewLLMAdapter(client llm.AgentClient, opts ...Option) *LLMAdapter {
	a := &LLMAdapter{
		client:      client,
		newID:       id.NewString,
		maxAttempts: 2,
		retryDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxAttempts < 1 {
		a.maxAttempts = 1
	}
	return a
}

func (a *LLMAdapter) Provider() string {
	return a.client.Provider()
}

func (a *LLMAdapter) SendMessage(ctx context.Context, p SendMessageParams) error {
	history := append(append([]*model.Message{}, p.History...), p.Message)
	req := llm.AgentRequest{
		Model:    p.Model,
		Messages: toWire(p.Instructions, history),
		Tools:    tools.LLMTools(p.Tools),
	}
	return a.run(ctx, p.Message.ThreadID, p.Message.ID, req, p.EventHandler)
}

func (a *LLMAdapter) SendFunctionCallResponse(ctx context.Context, p FunctionCallResponseParams) error {
	history := append(append([]*model.Message{}, p.History...), p.Message)
	req := llm.AgentRequest{
		Model:    p.Model,
		Messages: toWire(p.Instructions, history),
		Tools:    tools.LLMTools(p.Tools),
	}
	return a.run(ctx, p.Message.ThreadID, p.Message.ID, req, p.EventHandler)
}

// CancelActiveRequest aborts the request in flight, if any.
func (a *LLMAdapter) CancelActiveRequest() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// begin registers a new active request, superseding the previous one.
func (a *LLMAdapter) begin(cancel context.CancelFunc) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
	a.generation++
	a.cancel = cancel
	return a.generation
}

func (a *LLMAdapter) finish(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation == gen {
		a.cancel = nil
	}
}

func (a *LLMAdapter) run(ctx context.Context, threadID, userMessageID string, req llm.AgentRequest, handle EventHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := a.begin(cancel)
	defer a.finish(gen)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ThreadID:  logger.Ptr(threadID),
		Provider:  logger.Ptr(a.client.Provider()),
		Component: "assistant.provider",
	})
	sc := logger.StartSpan(ctx, "provider.request")
	defer sc.End()
	ctx = sc.Context()
	sc.Span().SetAttributes(
		attribute.String("llm.provider", a.client.Provider()),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	s := &stream{
		threadID:      threadID,
		userMessageID: userMessageID,
		messageID:     a.newID(),
		newID:         a.newID,
		handle:        handle,
	}

	var err error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		_, err = a.client.StreamWithTools(ctx, req, s.onChunk)
		if err == nil {
			s.complete()
			return nil
		}
		if errors.Is(err, llm.ErrStreamingUnsupported) {
			return a.fallback(ctx, req, s)
		}
		if s.started || ctx.Err() != nil || attempt == a.maxAttempts || !llm.IsRetryable(ctx, err) {
			break
		}
		slog.WarnContext(ctx, "provider request failed, retrying", "attempt", attempt, "error", err)
		if !sleep(ctx, a.retryDelay) {
			break
		}
	}

	return a.fail(ctx, s, err)
}

func (a *LLMAdapter) fallback(ctx context.Context, req llm.AgentRequest, s *stream) error {
	resp, err := a.client.ChatWithTools(ctx, req)
	if err != nil {
		return a.fail(ctx, s, err)
	}
	content := fromResponse(resp, a.newID)
	s.handle(Fallback{
		ThreadID:      s.threadID,
		MessageID:     s.messageID,
		UserMessageID: s.userMessageID,
		Content:       content,
		HasTools:      len(resp.ToolCalls) > 0,
	})
	return nil
}

func (a *LLMAdapter) fail(ctx context.Context, s *stream, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		slog.InfoContext(ctx, "provider request cancelled", "streamed", s.started)
		return nil
	}
	slog.ErrorContext(ctx, "provider request failed", "error", err, "streamed", s.started)
	if s.started {
		s.handle(Error{
			ThreadID:      s.threadID,
			MessageID:     s.messageID,
			UserMessageID: s.userMessageID,
			Err:           err,
		})
		return nil
	}
	return fmt.Errorf("%s request: %w", a.client.Provider(), err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// stream translates client chunks into events for one assistant message.
type stream struct {
	threadID      string
	userMessageID string
	messageID     string
	textID        string
	newID         func() string
	handle        EventHandler
	started       bool
}

func (s *stream) start() {
	if s.started {
		return
	}
	s.started = true
	s.handle(Created{ThreadID: s.threadID, MessageID: s.messageID})
}

func (s *stream) onChunk(chunk llm.StreamChunk) {
	s.start()

	switch {
	case chunk.TextDelta != "":
		if s.textID == "" {
			s.textID = s.newID()
		}
		s.handle(OutputTextDelta{
			ThreadID:  s.threadID,
			MessageID: s.messageID,
			ContentID: s.textID,
			TextDelta: chunk.TextDelta,
		})
	case chunk.ToolCallOpen != nil:
		s.handle(FunctionCallAdded{
			ThreadID:  s.threadID,
			MessageID: s.messageID,
			Content: &model.FunctionCall{
				ID:     chunk.ToolCallOpen.ID,
				Name:   chunk.ToolCallOpen.Name,
				Status: model.FunctionCallStatusIdle,
			},
		})
	case chunk.ToolCallDone != nil:
		s.handle(FunctionCallDone{
			ThreadID:  s.threadID,
			MessageID: s.messageID,
			Content: &model.FunctionCall{
				ID:        chunk.ToolCallDone.ID,
				Name:      chunk.ToolCallDone.Name,
				Arguments: chunk.ToolCallDone.Arguments,
				Status:    model.FunctionCallStatusIdle,
			},
		})
	}
}

func (s *stream) complete() {
	s.start()
	s.handle(Completed{ThreadID: s.threadID, MessageID: s.messageID, UserMessageID: s.userMessageID})
}
