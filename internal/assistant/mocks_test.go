package assistant_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/page"
	"chatconnect.app/assistant/internal/provider"
	"chatconnect.app/assistant/internal/store"
	"chatconnect.app/assistant/internal/store/memory"
)

type mockProvider struct {
	sendMessageFn      func(ctx context.Context, p provider.SendMessageParams) error
	sendFunctionCallFn func(ctx context.Context, p provider.FunctionCallResponseParams) error

	mu            sync.Mutex
	sent          []provider.SendMessageParams
	continuations []provider.FunctionCallResponseParams
	cancels       int
}

func (m *mockProvider) SendMessage(ctx context.Context, p provider.SendMessageParams) error {
	m.mu.Lock()
	m.sent = append(m.sent, p)
	m.mu.Unlock()
	if m.sendMessageFn != nil {
		return m.sendMessageFn(ctx, p)
	}
	return nil
}

func (m *mockProvider) SendFunctionCallResponse(ctx context.Context, p provider.FunctionCallResponseParams) error {
	m.mu.Lock()
	m.continuations = append(m.continuations, p)
	m.mu.Unlock()
	if m.sendFunctionCallFn != nil {
		return m.sendFunctionCallFn(ctx, p)
	}
	return nil
}

func (m *mockProvider) CancelActiveRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
}

func (m *mockProvider) Provider() string { return "mock" }

func (m *mockProvider) Sent() []provider.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.SendMessageParams(nil), m.sent...)
}

func (m *mockProvider) Continuations() []provider.FunctionCallResponseParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.FunctionCallResponseParams(nil), m.continuations...)
}

func (m *mockProvider) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

type mockPage struct {
	setFieldValueFn  func(ctx context.Context, selector, value string) model.FunctionResult
	getPageContentFn func(ctx context.Context, format page.Format) model.FunctionResult
	getPageContextFn func(ctx context.Context) (*model.MessageContext, error)

	mu     sync.Mutex
	filled []string
}

func (m *mockPage) SetFieldValue(ctx context.Context, selector, value string) model.FunctionResult {
	m.mu.Lock()
	m.filled = append(m.filled, selector)
	m.mu.Unlock()
	if m.setFieldValueFn != nil {
		return m.setFieldValueFn(ctx, selector, value)
	}
	return model.FunctionResult{Success: true}
}

func (m *mockPage) ClickElement(context.Context, string) model.FunctionResult {
	return model.FunctionResult{Success: true}
}

func (m *mockPage) GetPageContent(ctx context.Context, format page.Format) model.FunctionResult {
	if m.getPageContentFn != nil {
		return m.getPageContentFn(ctx, format)
	}
	return model.FunctionResult{Success: true, Result: "page text"}
}

func (m *mockPage) GetPageContext(ctx context.Context) (*model.MessageContext, error) {
	if m.getPageContextFn != nil {
		return m.getPageContextFn(ctx)
	}
	return nil, page.ErrUnavailable
}

func (m *mockPage) Filled() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.filled...)
}

// failingStore fails reads while writes go to memory.
type failingStore struct {
	*memory.Store
}

var errStoreDown = errors.New("store down")

func (failingStore) GetMessages(context.Context, string) ([]*model.Message, error) {
	return nil, errStoreDown
}

func (failingStore) GetThreads(context.Context, string) ([]model.Thread, error) {
	return nil, errStoreDown
}

var _ store.Store = failingStore{}

func sequence(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// reply streams a plain text answer for the message being sent.
func reply(messageID, text string) func(context.Context, provider.SendMessageParams) error {
	return func(_ context.Context, p provider.SendMessageParams) error {
		threadID := p.Message.ThreadID
		p.EventHandler(provider.Created{ThreadID: threadID, MessageID: messageID})
		p.EventHandler(provider.OutputTextDelta{ThreadID: threadID, MessageID: messageID, ContentID: messageID + "-text", TextDelta: text})
		p.EventHandler(provider.Completed{ThreadID: threadID, MessageID: messageID, UserMessageID: p.Message.ID})
		return nil
	}
}

// callTools streams an assistant turn that only requests calls.
func callTools(messageID string, calls ...*model.FunctionCall) func(context.Context, provider.SendMessageParams) error {
	return func(_ context.Context, p provider.SendMessageParams) error {
		threadID := p.Message.ThreadID
		p.EventHandler(provider.Created{ThreadID: threadID, MessageID: messageID})
		for _, c := range calls {
			p.EventHandler(provider.FunctionCallAdded{ThreadID: threadID, MessageID: messageID, Content: &model.FunctionCall{ID: c.ID, Name: c.Name, Status: model.FunctionCallStatusIdle}})
			p.EventHandler(provider.FunctionCallDone{ThreadID: threadID, MessageID: messageID, Content: c})
		}
		p.EventHandler(provider.Completed{ThreadID: threadID, MessageID: messageID, UserMessageID: p.Message.ID})
		return nil
	}
}

func fill(id, selector string) *model.FunctionCall {
	return &model.FunctionCall{
		ID:        id,
		Name:      "set_field_value",
		Arguments: fmt.Sprintf(`{"selector":%q,"value":"x"}`, selector),
		Status:    model.FunctionCallStatusIdle,
	}
}
