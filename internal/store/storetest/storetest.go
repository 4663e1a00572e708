// Package storetest holds the behavior every store.Store must satisfy.
package storetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/store"
)

// ItBehavesLikeAStore registers the shared store specs. open is called
// before each test and the returned store is closed afterwards.
func ItBehavesLikeAStore(open func() store.Store) {
	var (
		ctx  context.Context
		s    store.Store
		base time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = open()
		Expect(s.Init(ctx)).To(Succeed())
		base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		DeferCleanup(func() {
			Expect(s.Close()).To(Succeed())
		})
	})

	thread := func(id string, updated time.Duration) model.Thread {
		return model.Thread{ID: id, Title: "Thread " + id, CreatedAt: base, UpdatedAt: base.Add(updated)}
	}

	message := func(id, threadID string, offset time.Duration, content ...model.Content) *model.Message {
		return &model.Message{
			ID:        id,
			Role:      model.RoleAssistant,
			ThreadID:  threadID,
			CreatedAt: base.Add(offset),
			Content:   content,
		}
	}

	Describe("threads", func() {
		It("lists threads by most recent update", func() {
			Expect(s.CreateThread(ctx, thread("a", time.Minute))).To(Succeed())
			Expect(s.CreateThread(ctx, thread("b", 3*time.Minute))).To(Succeed())
			Expect(s.CreateThread(ctx, thread("c", 2*time.Minute))).To(Succeed())

			threads, err := s.GetThreads(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			ids := make([]string, len(threads))
			for i, t := range threads {
				ids[i] = t.ID
			}
			Expect(ids).To(Equal([]string{"b", "c", "a"}))
		})

		It("lists only the threads of the given session", func() {
			mine := thread("a", time.Minute)
			mine.SessionID = "tab-1"
			theirs := thread("b", 2*time.Minute)
			theirs.SessionID = "tab-2"
			Expect(s.CreateThread(ctx, mine)).To(Succeed())
			Expect(s.CreateThread(ctx, theirs)).To(Succeed())

			threads, err := s.GetThreads(ctx, "tab-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(threads).To(HaveLen(1))
			Expect(threads[0].ID).To(Equal("a"))
			Expect(threads[0].SessionID).To(Equal("tab-1"))

			t, err := s.GetThread(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(t.SessionID).To(Equal("tab-2"))

			threads, err = s.GetThreads(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(threads).To(BeEmpty())
		})

		It("treats a repeated create as an upsert", func() {
			t := thread("a", 0)
			Expect(s.CreateThread(ctx, t)).To(Succeed())
			t.Title = "renamed"
			Expect(s.CreateThread(ctx, t)).To(Succeed())

			threads, err := s.GetThreads(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(threads).To(HaveLen(1))
			Expect(threads[0].Title).To(Equal("renamed"))
		})

		It("applies partial updates", func() {
			Expect(s.CreateThread(ctx, thread("a", 0))).To(Succeed())
			title := "Checkout help"
			later := base.Add(time.Hour)
			Expect(s.UpdateThread(ctx, model.ThreadUpdate{ID: "a", Title: &title})).To(Succeed())
			Expect(s.UpdateThread(ctx, model.ThreadUpdate{ID: "a", UpdatedAt: &later})).To(Succeed())

			t, err := s.GetThread(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Title).To(Equal(title))
			Expect(t.UpdatedAt.Equal(later)).To(BeTrue())
		})

		It("never moves updated_at backwards", func() {
			Expect(s.CreateThread(ctx, thread("a", time.Hour))).To(Succeed())
			earlier := base
			Expect(s.UpdateThread(ctx, model.ThreadUpdate{ID: "a", UpdatedAt: &earlier})).To(Succeed())

			t, err := s.GetThread(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(t.UpdatedAt.Equal(base.Add(time.Hour))).To(BeTrue())
		})

		It("reports missing threads", func() {
			_, err := s.GetThread(ctx, "missing")
			Expect(err).To(MatchError(store.ErrNotFound))

			title := "x"
			err = s.UpdateThread(ctx, model.ThreadUpdate{ID: "missing", Title: &title})
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("deletes a thread together with its messages", func() {
			Expect(s.CreateThread(ctx, thread("a", 0))).To(Succeed())
			Expect(s.CreateThread(ctx, thread("b", 0))).To(Succeed())
			Expect(s.CreateMessage(ctx, message("m1", "a", 0))).To(Succeed())
			Expect(s.CreateMessage(ctx, message("m2", "b", 0))).To(Succeed())

			Expect(s.DeleteThread(ctx, "a")).To(Succeed())

			_, err := s.GetThread(ctx, "a")
			Expect(err).To(MatchError(store.ErrNotFound))
			msgs, err := s.GetMessages(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(BeEmpty())
			Expect(s.UpdateMessage(ctx, message("m1", "a", 0))).To(MatchError(store.ErrNotFound))

			msgs, err = s.GetMessages(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
		})
	})

	Describe("messages", func() {
		BeforeEach(func() {
			Expect(s.CreateThread(ctx, thread("t1", 0))).To(Succeed())
		})

		It("returns messages in creation order", func() {
			Expect(s.CreateMessage(ctx, message("m2", "t1", 2*time.Second))).To(Succeed())
			Expect(s.CreateMessage(ctx, message("m1", "t1", time.Second))).To(Succeed())

			msgs, err := s.GetMessages(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].ID).To(Equal("m1"))
			Expect(msgs[1].ID).To(Equal("m2"))
		})

		It("round-trips every content kind", func() {
			msg := message("m1", "t1", 0,
				&model.Reasoning{ID: "r1", SummaryText: "thinking"},
				&model.OutputText{ID: "o1", Text: "Filling the form."},
				&model.FunctionCall{
					ID:        "c1",
					Name:      "set_field_value",
					Arguments: `{"selector":"#email","value":"a@b.c"}`,
					Status:    model.FunctionCallStatusSuccess,
					Result:    &model.FunctionResult{Success: true},
				},
			)
			msg.Complete = true
			msg.Context = &model.MessageContext{Title: "Checkout", URL: "https://shop.test/checkout"}
			Expect(s.CreateMessage(ctx, msg)).To(Succeed())

			msgs, err := s.GetMessages(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			got := msgs[0]
			Expect(got.Complete).To(BeTrue())
			Expect(got.Context).To(Equal(msg.Context))
			Expect(got.Content).To(HaveLen(3))
			Expect(got.Content[1]).To(Equal(&model.OutputText{ID: "o1", Text: "Filling the form."}))
			fc, ok := got.FunctionCall("c1")
			Expect(ok).To(BeTrue())
			Expect(fc.Status).To(Equal(model.FunctionCallStatusSuccess))
			Expect(fc.Result.Success).To(BeTrue())
		})

		It("updates an existing message in place", func() {
			msg := message("m1", "t1", 0)
			Expect(s.CreateMessage(ctx, msg)).To(Succeed())

			updated := msg.Clone()
			updated.Content = model.Contents{&model.OutputText{ID: "o1", Text: "done"}}
			updated.Complete = true
			updated.Error = "boom"
			updated.HasError = true
			Expect(s.UpdateMessage(ctx, updated)).To(Succeed())

			msgs, err := s.GetMessages(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Text()).To(Equal("done"))
			Expect(msgs[0].HasError).To(BeTrue())
			Expect(msgs[0].Error).To(Equal("boom"))
		})

		It("treats a repeated create as an upsert", func() {
			msg := message("m1", "t1", 0)
			Expect(s.CreateMessage(ctx, msg)).To(Succeed())
			again := msg.Clone()
			again.Complete = true
			Expect(s.CreateMessage(ctx, again)).To(Succeed())

			msgs, err := s.GetMessages(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs).To(HaveLen(1))
			Expect(msgs[0].Complete).To(BeTrue())
		})

		It("rejects updates to unknown messages", func() {
			Expect(s.UpdateMessage(ctx, message("nope", "t1", 0))).To(MatchError(store.ErrNotFound))
		})

		It("does not share state with callers", func() {
			msg := message("m1", "t1", 0, &model.OutputText{ID: "o1", Text: "hi"})
			Expect(s.CreateMessage(ctx, msg)).To(Succeed())
			msg.Content[0] = &model.OutputText{ID: "o1", Text: "mutated"}

			msgs, err := s.GetMessages(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(msgs[0].Text()).To(Equal("hi"))
		})
	})
}
