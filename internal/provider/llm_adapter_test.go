package provider_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chatconnect.app/assistant/common/llm"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/provider"
	"chatconnect.app/assistant/internal/tools"
)

func textMessage(id string, role model.Role, text string) *model.Message {
	return &model.Message{
		ID:       id,
		Role:     role,
		ThreadID: "thread-1",
		Complete: true,
		Content:  model.Contents{&model.OutputText{ID: id + "-t", Text: text}},
	}
}

var _ = Describe("LLMAdapter", func() {
	var (
		ctx     context.Context
		client  *mockAgentClient
		adapter *provider.LLMAdapter
		log     *eventLog
		user    *model.Message
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockAgentClient{}
		adapter = provider.NewLLMAdapter(client, provider.WithIDGenerator(sequence()), provider.WithRetry(2, 0))
		log = &eventLog{}
		user = textMessage("u1", model.RoleUser, "Fill in my email")
	})

	send := func() error {
		return adapter.SendMessage(ctx, provider.SendMessageParams{
			Model:        "gpt-test",
			Message:      user,
			Instructions: "The user is on Checkout.",
			Tools:        tools.Catalog(),
			EventHandler: log.Handle,
		})
	}

	It("turns a stream into lifecycle events", func() {
		client.streamFn = func(_ context.Context, _ llm.AgentRequest, onChunk func(llm.StreamChunk)) (*llm.AgentResponse, error) {
			onChunk(llm.StreamChunk{TextDelta: "Sure"})
			onChunk(llm.StreamChunk{TextDelta: "!"})
			onChunk(llm.StreamChunk{ToolCallOpen: &llm.ToolCall{ID: "call_1", Name: tools.SetFieldValue}})
			onChunk(llm.StreamChunk{ToolCallDone: &llm.ToolCall{ID: "call_1", Name: tools.SetFieldValue, Arguments: `{"selector":"#email","value":"a@b.c"}`}})
			return &llm.AgentResponse{}, nil
		}

		Expect(send()).To(Succeed())

		// id1 is the message, id2 the text content.
		Expect(log.Events()).To(Equal([]provider.Event{
			provider.Created{ThreadID: "thread-1", MessageID: "id1"},
			provider.OutputTextDelta{ThreadID: "thread-1", MessageID: "id1", ContentID: "id2", TextDelta: "Sure"},
			provider.OutputTextDelta{ThreadID: "thread-1", MessageID: "id1", ContentID: "id2", TextDelta: "!"},
			provider.FunctionCallAdded{ThreadID: "thread-1", MessageID: "id1", Content: &model.FunctionCall{
				ID: "call_1", Name: tools.SetFieldValue, Status: model.FunctionCallStatusIdle,
			}},
			provider.FunctionCallDone{ThreadID: "thread-1", MessageID: "id1", Content: &model.FunctionCall{
				ID: "call_1", Name: tools.SetFieldValue, Arguments: `{"selector":"#email","value":"a@b.c"}`, Status: model.FunctionCallStatusIdle,
			}},
			provider.Completed{ThreadID: "thread-1", MessageID: "id1", UserMessageID: "u1"},
		}))
	})

	It("sends instructions, history and tools", func() {
		Expect(send()).To(Succeed())

		req := client.Requests()[0]
		Expect(req.Model).To(Equal("gpt-test"))
		Expect(req.Messages).To(Equal([]llm.Message{
			{Role: "system", Content: "The user is on Checkout."},
			{Role: "user", Content: "Fill in my email"},
		}))
		Expect(req.Tools).To(HaveLen(3))
	})

	It("announces an empty response as created and completed", func() {
		Expect(send()).To(Succeed())

		Expect(log.Events()).To(Equal([]provider.Event{
			provider.Created{ThreadID: "thread-1", MessageID: "id1"},
			provider.Completed{ThreadID: "thread-1", MessageID: "id1", UserMessageID: "u1"},
		}))
	})

	It("falls back to a single message when the client cannot stream", func() {
		client.streamFn = func(context.Context, llm.AgentRequest, func(llm.StreamChunk)) (*llm.AgentResponse, error) {
			return nil, llm.ErrStreamingUnsupported
		}
		client.chatFn = func(context.Context, llm.AgentRequest) (*llm.AgentResponse, error) {
			return &llm.AgentResponse{
				Content:   "Reading the page",
				ToolCalls: []llm.ToolCall{{ID: "tu_1", Name: tools.GetPageContent, Arguments: `{"format":"text"}`}},
			}, nil
		}

		Expect(send()).To(Succeed())

		events := log.Events()
		Expect(events).To(HaveLen(1))
		fallback, ok := events[0].(provider.Fallback)
		Expect(ok).To(BeTrue())
		Expect(fallback.MessageID).To(Equal("id1"))
		Expect(fallback.UserMessageID).To(Equal("u1"))
		Expect(fallback.HasTools).To(BeTrue())
		Expect(fallback.Content).To(HaveLen(2))
		Expect(fallback.Content[0]).To(Equal(&model.OutputText{ID: "id2", Text: "Reading the page"}))
		Expect(fallback.Content[1].(*model.FunctionCall).Status).To(Equal(model.FunctionCallStatusIdle))
	})

	It("retries a failure before any event and then returns it", func() {
		client.streamFn = func(context.Context, llm.AgentRequest, func(llm.StreamChunk)) (*llm.AgentResponse, error) {
			return nil, errors.New("connection reset")
		}

		err := send()
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
		Expect(client.Requests()).To(HaveLen(2))
		Expect(log.Events()).To(BeEmpty())
	})

	It("reports a failure after streaming began as an Error event", func() {
		client.streamFn = func(_ context.Context, _ llm.AgentRequest, onChunk func(llm.StreamChunk)) (*llm.AgentResponse, error) {
			onChunk(llm.StreamChunk{TextDelta: "Half"})
			return nil, errors.New("stream broke")
		}

		Expect(send()).To(Succeed())

		events := log.Events()
		Expect(events).To(HaveLen(3))
		failure, ok := events[2].(provider.Error)
		Expect(ok).To(BeTrue())
		Expect(failure.MessageID).To(Equal("id1"))
		Expect(failure.UserMessageID).To(Equal("u1"))
		Expect(failure.Err).To(MatchError("stream broke"))
		Expect(client.Requests()).To(HaveLen(1))
	})

	It("returns quietly when the active request is cancelled", func() {
		started := make(chan struct{})
		client.streamFn = func(ctx context.Context, _ llm.AgentRequest, onChunk func(llm.StreamChunk)) (*llm.AgentResponse, error) {
			onChunk(llm.StreamChunk{TextDelta: "Partial"})
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}

		done := make(chan error, 1)
		go func() { done <- send() }()

		Eventually(started).Should(BeClosed())
		adapter.CancelActiveRequest()

		Eventually(done, time.Second).Should(Receive(BeNil()))
		for _, e := range log.Events() {
			Expect(e).NotTo(BeAssignableToTypeOf(provider.Error{}))
			Expect(e).NotTo(BeAssignableToTypeOf(provider.Completed{}))
		}
	})

	Describe("SendFunctionCallResponse", func() {
		It("answers every call in the history, resolved or not", func() {
			assistant := &model.Message{
				ID: "a1", Role: model.RoleAssistant, ThreadID: "thread-1", Complete: true,
				Content: model.Contents{
					&model.FunctionCall{ID: "c1", Name: tools.ClickElement, Arguments: `{"selector":"#go"}`,
						Status: model.FunctionCallStatusSuccess, Result: &model.FunctionResult{Success: true}},
				},
			}
			abandoned := &model.Message{
				ID: "a0", Role: model.RoleAssistant, ThreadID: "thread-1", Complete: true,
				Content: model.Contents{
					&model.FunctionCall{ID: "c0", Name: tools.ClickElement, Arguments: `{"selector":"#old"}`, Status: model.FunctionCallStatusIdle},
				},
			}

			Expect(adapter.SendFunctionCallResponse(ctx, provider.FunctionCallResponseParams{
				Model:        "gpt-test",
				Message:      assistant,
				History:      []*model.Message{user, abandoned},
				Tools:        tools.Catalog(),
				EventHandler: log.Handle,
			})).To(Succeed())

			req := client.Requests()[0]
			Expect(req.Messages).To(Equal([]llm.Message{
				{Role: "user", Content: "Fill in my email"},
				{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "c0", Name: tools.ClickElement, Arguments: `{"selector":"#old"}`}}},
				{Role: "tool", ToolCallID: "c0", Content: `{"success":false,"error":"not executed"}`},
				{Role: "assistant", ToolCalls: []llm.ToolCall{{ID: "c1", Name: tools.ClickElement, Arguments: `{"selector":"#go"}`}}},
				{Role: "tool", ToolCallID: "c1", Content: `{"success":true}`},
			}))

			completed := log.Events()[1].(provider.Completed)
			Expect(completed.UserMessageID).To(Equal("a1"))
		})
	})
})
