package conversation_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chatconnect.app/assistant/internal/conversation"
	"chatconnect.app/assistant/internal/model"
)

func userMessage(id, text string) *model.Message {
	return &model.Message{
		ID:        id,
		Role:      model.RoleUser,
		ThreadID:  "thread-1",
		Complete:  true,
		CreatedAt: time.Now(),
		Content:   model.Contents{&model.OutputText{ID: id + "-text", Text: text}},
	}
}

func assistantMessage(id string, content ...model.Content) *model.Message {
	return &model.Message{ID: id, Role: model.RoleAssistant, ThreadID: "thread-1", Content: content}
}

func idleCall(id string) *model.FunctionCall {
	return &model.FunctionCall{ID: id, Name: "set_field_value", Arguments: `{"selector":"#a","value":"b"}`, Status: model.FunctionCallStatusIdle}
}

var _ = Describe("ErrorString", func() {
	DescribeTable("normalizes errors for display",
		func(input any, expected string) {
			Expect(conversation.ErrorString(input)).To(Equal(expected))
		},
		Entry("error uses its message", errors.New("boom"), "boom"),
		Entry("string is kept", "boom", "boom"),
		Entry("empty struct is unknown", struct{}{}, "Unknown error"),
		Entry("map is unknown", map[string]any{}, "Unknown error"),
		Entry("nil is unknown", nil, "Unknown error"),
		Entry("number is unknown", 42, "Unknown error"),
	)
})

var _ = Describe("Reducer", func() {
	var (
		user      *model.Message
		assistant *model.Message
		base      conversation.Collection
	)

	BeforeEach(func() {
		user = userMessage("u1", "Hello")
		assistant = assistantMessage("a1")
		base = conversation.AddMessage(conversation.AddMessage(conversation.New(), user), assistant)
	})

	Describe("AddMessage", func() {
		It("appends without touching the input", func() {
			extra := userMessage("u2", "again")
			next := conversation.AddMessage(base, extra)

			Expect(next.List).To(HaveLen(3))
			Expect(next.List[2]).To(BeIdenticalTo(extra))
			Expect(base.List).To(HaveLen(2))
			Expect(next.List[0]).To(BeIdenticalTo(user))
		})
	})

	Describe("AppendTextDelta", func() {
		It("concatenates deltas in arrival order", func() {
			next := base
			for _, delta := range []string{"Hel", "lo", " World"} {
				next = conversation.AppendTextDelta(next, "a1", "t1", delta)
			}

			msg, ok := conversation.Find(next, "a1")
			Expect(ok).To(BeTrue())
			Expect(msg.Content).To(HaveLen(1))
			Expect(msg.Content[0]).To(Equal(&model.OutputText{ID: "t1", Text: "Hello World"}))
		})

		It("keeps separate text items per content id", func() {
			next := conversation.AppendTextDelta(base, "a1", "t1", "one")
			next = conversation.AppendTextDelta(next, "a1", "t2", "two")
			next = conversation.AppendTextDelta(next, "a1", "t1", "!")

			msg, _ := conversation.Find(next, "a1")
			Expect(msg.Text()).To(Equal("one!two"))
		})

		It("keeps untouched messages by reference", func() {
			next := conversation.AppendTextDelta(base, "a1", "t1", "x")
			Expect(next.List[0]).To(BeIdenticalTo(user))
			Expect(next.List[1]).NotTo(BeIdenticalTo(assistant))
			Expect(assistant.Content).To(BeEmpty())
		})

		It("ignores a content id that belongs to a function call", func() {
			next := conversation.AddMessageContent(base, "a1", idleCall("c1"))
			Expect(conversation.AppendTextDelta(next, "a1", "c1", "x")).To(Equal(next))
		})
	})

	Describe("unknown message ids", func() {
		It("returns the input unchanged", func() {
			Expect(conversation.AddMessageContent(base, "missing", idleCall("c1"))).To(Equal(base))
			Expect(conversation.AppendTextDelta(base, "missing", "t", "x")).To(Equal(base))
			Expect(conversation.UpdateFunctionResult(base, "missing", "c1", model.FunctionResult{Success: true})).To(Equal(base))
			Expect(conversation.SetComplete(base, "missing")).To(Equal(base))

			next := conversation.SetComplete(base, "missing")
			Expect(next.List[0]).To(BeIdenticalTo(user))
			Expect(next.List[1]).To(BeIdenticalTo(assistant))
		})
	})

	Describe("SetComplete", func() {
		It("is idempotent", func() {
			once := conversation.SetComplete(base, "a1")
			twice := conversation.SetComplete(once, "a1")

			Expect(twice).To(Equal(once))
			Expect(twice.List[1]).To(BeIdenticalTo(once.List[1]))
			Expect(twice.List[1].Complete).To(BeTrue())
		})
	})

	Describe("SetError", func() {
		It("marks the assistant message when one is given", func() {
			next := conversation.SetError(base, errors.New("boom"), "u1", "a1")

			a, _ := conversation.Find(next, "a1")
			u, _ := conversation.Find(next, "u1")
			Expect(a.HasError).To(BeTrue())
			Expect(a.Error).To(Equal("boom"))
			Expect(u.HasError).To(BeFalse())
			Expect(u).To(BeIdenticalTo(user))
		})

		It("marks the user message otherwise", func() {
			next := conversation.SetError(base, "boom", "u1", "")

			u, _ := conversation.Find(next, "u1")
			Expect(u.HasError).To(BeTrue())
			Expect(u.Error).To(Equal("boom"))
		})

		It("falls back to the user message when the assistant message is missing", func() {
			next := conversation.SetError(base, struct{}{}, "u1", "never-created")

			u, _ := conversation.Find(next, "u1")
			Expect(u.Error).To(Equal("Unknown error"))
		})
	})

	Describe("UpdateFunctionResult", func() {
		BeforeEach(func() {
			base = conversation.AddMessageContent(base, "a1", idleCall("c1"))
		})

		It("moves a successful call to Success", func() {
			next := conversation.UpdateFunctionResult(base, "a1", "c1", model.FunctionResult{Success: true, Result: "ok"})

			msg, _ := conversation.Find(next, "a1")
			fc, _ := msg.FunctionCall("c1")
			Expect(fc.Status).To(Equal(model.FunctionCallStatusSuccess))
			Expect(fc.Result.Result).To(Equal("ok"))
		})

		It("moves a failed call to Error and keeps the error text", func() {
			next := conversation.UpdateFunctionResult(base, "a1", "c1", model.FunctionResult{Success: false, Error: "x"})

			msg, _ := conversation.Find(next, "a1")
			fc, _ := msg.FunctionCall("c1")
			Expect(fc.Status).To(Equal(model.FunctionCallStatusError))
			Expect(fc.Result.Error).To(Equal("x"))
		})

		It("ignores unknown call ids", func() {
			Expect(conversation.UpdateFunctionResult(base, "a1", "nope", model.FunctionResult{Success: true})).To(Equal(base))
		})
	})

	Describe("UpsertFunctionCall", func() {
		It("appends a new call as Idle", func() {
			call := idleCall("c1")
			call.Status = ""
			next := conversation.UpsertFunctionCall(base, "a1", call)

			msg, _ := conversation.Find(next, "a1")
			Expect(msg.Content).To(HaveLen(1))
			fc, _ := msg.FunctionCall("c1")
			Expect(fc.Status).To(Equal(model.FunctionCallStatusIdle))
		})

		It("replaces the call with the same id instead of duplicating it", func() {
			next := conversation.AddMessageContent(base, "a1", &model.FunctionCall{ID: "c1", Name: "set_field_value", Status: model.FunctionCallStatusIdle})
			next = conversation.UpsertFunctionCall(next, "a1", idleCall("c1"))

			msg, _ := conversation.Find(next, "a1")
			Expect(msg.FunctionCalls()).To(HaveLen(1))
			Expect(msg.FunctionCalls()[0].Arguments).To(Equal(`{"selector":"#a","value":"b"}`))
		})

		It("never moves a resolved call back to Idle", func() {
			next := conversation.AddMessageContent(base, "a1", idleCall("c1"))
			next = conversation.UpdateFunctionResult(next, "a1", "c1", model.FunctionResult{Success: true})
			next = conversation.UpsertFunctionCall(next, "a1", idleCall("c1"))

			msg, _ := conversation.Find(next, "a1")
			fc, _ := msg.FunctionCall("c1")
			Expect(fc.Status).To(Equal(model.FunctionCallStatusSuccess))
			Expect(fc.Result).NotTo(BeNil())
		})
	})

	Describe("MarkFunctionCallPending", func() {
		It("moves Idle to Pending only", func() {
			next := conversation.AddMessageContent(base, "a1", idleCall("c1"))
			next = conversation.MarkFunctionCallPending(next, "a1", "c1")

			msg, _ := conversation.Find(next, "a1")
			fc, _ := msg.FunctionCall("c1")
			Expect(fc.Status).To(Equal(model.FunctionCallStatusPending))

			resolved := conversation.UpdateFunctionResult(next, "a1", "c1", model.FunctionResult{Success: false, Error: "gone"})
			Expect(conversation.MarkFunctionCallPending(resolved, "a1", "c1")).To(Equal(resolved))
		})
	})

	Describe("SetMessageContext", func() {
		It("attaches the page snapshot", func() {
			next := conversation.SetMessageContext(base, "u1", &model.MessageContext{Title: "Checkout", URL: "https://shop.example/checkout"})

			u, _ := conversation.Find(next, "u1")
			Expect(u.Context.Title).To(Equal("Checkout"))
		})

		It("does nothing without a snapshot", func() {
			Expect(conversation.SetMessageContext(base, "u1", nil)).To(Equal(base))
		})
	})

	Describe("collection states", func() {
		It("reports a failed load as empty, idle and errored", func() {
			failed := conversation.Failed(errors.New("disk gone"))
			Expect(failed.List).To(BeEmpty())
			Expect(failed.Loading).To(BeFalse())
			Expect(failed.Ready).To(BeFalse())
			Expect(failed.Error).To(Equal("disk gone"))
		})

		It("finds the latest assistant message", func() {
			next := conversation.AddMessage(base, userMessage("u2", "more"))
			msg, ok := conversation.LatestAssistant(next)
			Expect(ok).To(BeTrue())
			Expect(msg.ID).To(Equal("a1"))

			_, ok = conversation.LatestAssistant(conversation.New())
			Expect(ok).To(BeFalse())
		})
	})
})
