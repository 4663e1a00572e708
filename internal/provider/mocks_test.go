package provider_test

import (
	"context"
	"sync"

	"chatconnect.app/assistant/common/llm"
	"chatconnect.app/assistant/internal/provider"
)

type mockAgentClient struct {
	chatFn   func(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error)
	streamFn func(ctx context.Context, req llm.AgentRequest, onChunk func(llm.StreamChunk)) (*llm.AgentResponse, error)

	mu       sync.Mutex
	requests []llm.AgentRequest
}

func (m *mockAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	m.record(req)
	if m.chatFn != nil {
		return m.chatFn(ctx, req)
	}
	return &llm.AgentResponse{}, nil
}

func (m *mockAgentClient) StreamWithTools(ctx context.Context, req llm.AgentRequest, onChunk func(llm.StreamChunk)) (*llm.AgentResponse, error) {
	m.record(req)
	if m.streamFn != nil {
		return m.streamFn(ctx, req, onChunk)
	}
	return &llm.AgentResponse{}, nil
}

func (m *mockAgentClient) Provider() string { return "mock" }
func (m *mockAgentClient) Model() string    { return "mock-model" }

func (m *mockAgentClient) record(req llm.AgentRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
}

func (m *mockAgentClient) Requests() []llm.AgentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.AgentRequest(nil), m.requests...)
}

type eventLog struct {
	mu     sync.Mutex
	events []provider.Event
}

func (l *eventLog) Handle(e provider.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Events() []provider.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]provider.Event(nil), l.events...)
}

func sequence() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "id" + string(rune('0'+n))
	}
}
