package handler_test

import (
	"context"
	"errors"
	"sync"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/page"
	"chatconnect.app/assistant/internal/provider"
	"chatconnect.app/assistant/internal/queue"
)

type mockProvider struct {
	sendMessageFn func(ctx context.Context, p provider.SendMessageParams) error
}

func (m *mockProvider) SendMessage(ctx context.Context, p provider.SendMessageParams) error {
	if m.sendMessageFn != nil {
		return m.sendMessageFn(ctx, p)
	}
	return nil
}

func (m *mockProvider) SendFunctionCallResponse(context.Context, provider.FunctionCallResponseParams) error {
	return nil
}

func (m *mockProvider) CancelActiveRequest() {}

func (m *mockProvider) Provider() string { return "mock" }

type mockRelay struct {
	commands  chan queue.Command
	deliverFn func(ctx context.Context, sessionID, commandID string, result model.FunctionResult) error

	mu        sync.Mutex
	delivered map[string]model.FunctionResult
}

func newMockRelay() *mockRelay {
	return &mockRelay{commands: make(chan queue.Command, 4), delivered: map[string]model.FunctionResult{}}
}

func (m *mockRelay) Open(context.Context, string, string) (page.CommandReader, error) {
	return &mockReader{commands: m.commands}, nil
}

func (m *mockRelay) Deliver(ctx context.Context, sessionID, commandID string, result model.FunctionResult) error {
	if m.deliverFn != nil {
		return m.deliverFn(ctx, sessionID, commandID, result)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[sessionID+"/"+commandID] = result
	return nil
}

func (m *mockRelay) Delivered(sessionID, commandID string) (model.FunctionResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.delivered[sessionID+"/"+commandID]
	return r, ok
}

type mockReader struct {
	commands chan queue.Command
}

func (r *mockReader) Read(ctx context.Context) ([]queue.Message, error) {
	select {
	case cmd := <-r.commands:
		return []queue.Message{{ID: cmd.ID, Command: cmd}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *mockReader) Ack(context.Context, queue.Message) error { return nil }

func (r *mockReader) Close(context.Context) error { return nil }

var errDeliver = errors.New("redis down")
