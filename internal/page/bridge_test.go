package page_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/page"
	"chatconnect.app/assistant/internal/queue"
)

var _ = Describe("Bridge", func() {
	var (
		ctx      context.Context
		client   *redis.Client
		bridge   *page.Bridge
		consumer *queue.RedisConsumer
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr := miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		producer := queue.NewRedisProducer(client, "page-commands:", nil)
		bridge = page.NewBridge(client, producer, "s1", page.BridgeConfig{
			ResultKeyPrefix: "page-result:",
			Timeout:         time.Second,
		})

		var err error
		consumer, err = queue.NewRedisConsumer(ctx, client, queue.ConsumerConfig{
			StreamPrefix: "page-commands:",
			SessionID:    "s1",
			Consumer:     "test",
			Block:        -1,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = client.Close()
	})

	nextCommand := func() queue.Command {
		var msgs []queue.Message
		Eventually(func() []queue.Message {
			msgs, _ = consumer.Read(ctx)
			return msgs
		}).Should(HaveLen(1))
		return msgs[0].Command
	}

	It("relays a field fill and returns the extension's result", func() {
		done := make(chan model.FunctionResult, 1)
		go func() {
			defer GinkgoRecover()
			done <- bridge.SetFieldValue(ctx, " #email ", "a@b.c")
		}()

		cmd := nextCommand()
		Expect(cmd.Action).To(Equal(queue.ActionSetFieldValue))
		Expect(cmd.Selector).To(Equal("#email"))
		Expect(cmd.Value).To(Equal("a@b.c"))
		Expect(cmd.SessionID).To(Equal("s1"))

		Expect(page.Deliver(ctx, client, "page-result:", "s1", cmd.ID, model.FunctionResult{Success: true})).To(Succeed())
		Eventually(done).Should(Receive(Equal(model.FunctionResult{Success: true})))
	})

	It("decodes the page context", func() {
		done := make(chan *model.MessageContext, 1)
		go func() {
			defer GinkgoRecover()
			pc, err := bridge.GetPageContext(ctx)
			Expect(err).NotTo(HaveOccurred())
			done <- pc
		}()

		cmd := nextCommand()
		Expect(cmd.Action).To(Equal(queue.ActionGetPageContext))

		payload, _ := json.Marshal(model.MessageContext{Title: "Checkout", URL: "https://shop.example/checkout"})
		Expect(page.Deliver(ctx, client, "page-result:", "s1", cmd.ID, model.FunctionResult{Success: true, Result: string(payload)})).To(Succeed())

		var pc *model.MessageContext
		Eventually(done).Should(Receive(&pc))
		Expect(pc.Title).To(Equal("Checkout"))
	})

	It("ignores results delivered under another session", func() {
		patient := page.NewBridge(client, queue.NewRedisProducer(client, "page-commands:", nil), "s1", page.BridgeConfig{
			ResultKeyPrefix: "page-result:",
			Timeout:         5 * time.Second,
		})
		done := make(chan model.FunctionResult, 1)
		go func() {
			defer GinkgoRecover()
			done <- patient.ClickElement(ctx, "#buy")
		}()

		cmd := nextCommand()
		Expect(page.Deliver(ctx, client, "page-result:", "s2", cmd.ID, model.FunctionResult{Success: true, Result: "forged"})).To(Succeed())
		Consistently(done, 300*time.Millisecond).ShouldNot(Receive())

		Expect(page.Deliver(ctx, client, "page-result:", "s1", cmd.ID, model.FunctionResult{Success: true, Result: "clicked"})).To(Succeed())
		Eventually(done).Should(Receive(Equal(model.FunctionResult{Success: true, Result: "clicked"})))
	})

	It("gives up on the page context before the command timeout", func() {
		producer := queue.NewRedisProducer(client, "page-commands:", nil)
		slow := page.NewBridge(client, producer, "s1", page.BridgeConfig{
			ResultKeyPrefix: "page-result:",
			Timeout:         30 * time.Second,
			ContextTimeout:  time.Second,
		})

		start := time.Now()
		_, err := slow.GetPageContext(ctx)
		Expect(err).To(MatchError(ContainSubstring(page.ErrTimeout.Error())))
		Expect(time.Since(start)).To(BeNumerically("<", 5*time.Second))

		cmd := nextCommand()
		Expect(cmd.Action).To(Equal(queue.ActionGetPageContext))
		Expect(cmd.ExpiresAt).To(BeTemporally("<", start.Add(5*time.Second)))
	})

	It("rejects unsafe selectors without contacting the page", func() {
		res := bridge.ClickElement(ctx, `a[href="javascript:void(0)"]`)
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring("invalid selector"))

		msgs, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(BeEmpty())
	})

	It("rejects unknown content formats", func() {
		res := bridge.GetPageContent(ctx, page.Format("pdf"))
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(ContainSubstring(`unsupported format "pdf"`))
	})

	It("times out when the extension never answers", func() {
		res := bridge.ClickElement(ctx, "#go")
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(Equal(page.ErrTimeout.Error()))
	})
})
