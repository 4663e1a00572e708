package tools_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/page"
	"chatconnect.app/assistant/internal/tools"
)

func fill(id string) *model.FunctionCall {
	return &model.FunctionCall{ID: id, Name: tools.SetFieldValue, Arguments: `{"selector":"#` + id + `","value":"v"}`, Status: model.FunctionCallStatusIdle}
}

func click(id string) *model.FunctionCall {
	return &model.FunctionCall{ID: id, Name: tools.ClickElement, Arguments: `{"selector":"#` + id + `"}`, Status: model.FunctionCallStatusIdle}
}

func read(id string) *model.FunctionCall {
	return &model.FunctionCall{ID: id, Name: tools.GetPageContent, Arguments: `{"format":"markdown"}`, Status: model.FunctionCallStatusIdle}
}

func batchIDs(batches []tools.Batch) [][]string {
	out := make([][]string, len(batches))
	for i, b := range batches {
		out[i] = b.IDs()
	}
	return out
}

var _ = Describe("Catalog", func() {
	It("offers the page tools", func() {
		names := []string{}
		for _, d := range tools.Catalog() {
			names = append(names, d.Name)
		}
		Expect(names).To(Equal([]string{tools.SetFieldValue, tools.ClickElement, tools.GetPageContent}))
	})

	It("renders parameters as a closed object schema", func() {
		d, ok := tools.Lookup(tools.GetPageContent)
		Expect(ok).To(BeTrue())

		data, err := json.Marshal(d.JSONSchema())
		Expect(err).NotTo(HaveOccurred())

		var schema map[string]any
		Expect(json.Unmarshal(data, &schema)).To(Succeed())
		Expect(schema["type"]).To(Equal("object"))
		Expect(schema["required"]).To(ConsistOf("format"))
		Expect(schema["additionalProperties"]).To(BeFalse())
		format := schema["properties"].(map[string]any)["format"].(map[string]any)
		Expect(format["enum"]).To(ConsistOf("text", "markdown", "html"))
	})

	It("does not know other tools", func() {
		_, ok := tools.Lookup("submit_form")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("GroupBatches", func() {
	It("groups consecutive fills and isolates everything else", func() {
		content := model.Contents{
			fill("a"), fill("b"),
			click("c"),
			fill("d"),
			&model.OutputText{ID: "t", Text: "then"},
			fill("e"), fill("f"),
			read("g"),
		}
		Expect(batchIDs(tools.GroupBatches(content, nil))).To(Equal([][]string{
			{"a", "b"}, {"c"}, {"d"}, {"e", "f"}, {"g"},
		}))
	})

	It("skips calls the filter rejects and breaks the batch there", func() {
		done := fill("b")
		done.Status = model.FunctionCallStatusSuccess
		content := model.Contents{fill("a"), done, fill("c"), fill("d")}

		Expect(batchIDs(tools.GroupBatches(content, tools.Idle))).To(Equal([][]string{{"a"}, {"c", "d"}}))
	})

	It("returns nothing for content without calls", func() {
		Expect(tools.GroupBatches(model.Contents{&model.OutputText{ID: "t"}}, nil)).To(BeEmpty())
	})
})

var _ = Describe("Policy", func() {
	It("auto-executes only allowed idle calls", func() {
		policy := tools.NewPolicy([]string{tools.GetPageContent})
		pending := read("p")
		pending.Status = model.FunctionCallStatusPending
		msg := &model.Message{Content: model.Contents{fill("a"), read("r"), pending}}

		Expect(batchIDs(policy.AutoBatches(msg))).To(Equal([][]string{{"r"}}))
	})
})

var _ = Describe("Runner", func() {
	var (
		ctx    context.Context
		pg     *mockPage
		sink   *recordingSink
		runner *tools.Runner
	)

	BeforeEach(func() {
		ctx = context.Background()
		pg = &mockPage{}
		sink = &recordingSink{}
		runner = tools.NewRunner(pg)
	})

	Describe("Execute", func() {
		It("passes decoded arguments to the page", func() {
			var gotSelector, gotValue string
			pg.setFieldValueFn = func(_ context.Context, selector, value string) model.FunctionResult {
				gotSelector, gotValue = selector, value
				return model.FunctionResult{Success: true}
			}

			res := runner.Execute(ctx, &model.FunctionCall{ID: "1", Name: tools.SetFieldValue, Arguments: `{"selector":"#email","value":"a@b.c"}`})
			Expect(res.Success).To(BeTrue())
			Expect(gotSelector).To(Equal("#email"))
			Expect(gotValue).To(Equal("a@b.c"))
		})

		It("passes the requested format", func() {
			var got page.Format
			pg.getPageContentFn = func(_ context.Context, format page.Format) model.FunctionResult {
				got = format
				return model.FunctionResult{Success: true, Result: "# Title"}
			}

			res := runner.Execute(ctx, read("r"))
			Expect(res.Result).To(Equal("# Title"))
			Expect(got).To(Equal(page.FormatMarkdown))
		})

		It("fails unknown tools", func() {
			res := runner.Execute(ctx, &model.FunctionCall{ID: "1", Name: "submit_form"})
			Expect(res.Success).To(BeFalse())
			Expect(res.Error).To(Equal("unknown tool: submit_form"))
		})

		It("fails malformed arguments", func() {
			res := runner.Execute(ctx, &model.FunctionCall{ID: "1", Name: tools.ClickElement, Arguments: `{"selector":`})
			Expect(res.Success).To(BeFalse())
			Expect(res.Error).To(ContainSubstring("parse tool arguments"))
		})
	})

	Describe("Run", func() {
		It("runs a fill batch concurrently and saves every result", func() {
			var inFlight, peak int32
			release := make(chan struct{})
			pg.setFieldValueFn = func(_ context.Context, selector, _ string) model.FunctionResult {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				select {
				case <-release:
				case <-time.After(2 * time.Second):
				}
				atomic.AddInt32(&inFlight, -1)
				if selector == "#b" {
					return model.FunctionResult{Success: false, Error: "field is disabled"}
				}
				return model.FunctionResult{Success: true}
			}

			batches := tools.GroupBatches(model.Contents{fill("a"), fill("b"), fill("c")}, nil)
			errCh := make(chan error, 1)
			go func() { errCh <- runner.Run(ctx, "m1", batches, sink) }()

			Eventually(func() int32 { return atomic.LoadInt32(&peak) }).Should(Equal(int32(3)))
			close(release)
			Eventually(errCh).Should(Receive(BeNil()))

			Expect(sink.pending).To(Equal([][]string{{"a", "b", "c"}}))
			saved := sink.Saved()
			Expect(saved).To(HaveLen(3))
			Expect(saved).To(ContainElement(savedResult{MessageID: "m1", CallID: "b", Result: model.FunctionResult{Success: false, Error: "field is disabled"}}))
		})

		It("marks each batch pending just before running it", func() {
			batches := tools.GroupBatches(model.Contents{fill("a"), click("b")}, nil)
			Expect(runner.Run(ctx, "m1", batches, sink)).To(Succeed())

			Expect(sink.Events()).To(Equal([]string{"pending", "saved:a", "pending", "saved:b"}))
		})

		It("runs only the calls the sink claimed", func() {
			var filled []string
			pg.setFieldValueFn = func(_ context.Context, selector, _ string) model.FunctionResult {
				filled = append(filled, selector)
				return model.FunctionResult{Success: true}
			}
			sink.claimFn = func([]string) []string { return []string{"b"} }

			batches := tools.GroupBatches(model.Contents{fill("a"), fill("b")}, nil)
			Expect(runner.Run(ctx, "m1", batches, sink)).To(Succeed())

			Expect(filled).To(Equal([]string{"#b"}))
			Expect(sink.Saved()).To(ConsistOf(savedResult{MessageID: "m1", CallID: "b", Result: model.FunctionResult{Success: true}}))
		})

		It("runs nothing when another run already claimed the batch", func() {
			sink.claimFn = func([]string) []string { return nil }

			batches := tools.GroupBatches(model.Contents{fill("a"), click("b")}, nil)
			Expect(runner.Run(ctx, "m1", batches, sink)).To(Succeed())

			Expect(sink.Saved()).To(BeEmpty())
			Expect(sink.Events()).To(Equal([]string{"pending", "pending"}))
		})

		It("stops before the next batch when cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			pg.setFieldValueFn = func(context.Context, string, string) model.FunctionResult {
				cancel()
				return model.FunctionResult{Success: true}
			}

			batches := tools.GroupBatches(model.Contents{fill("a"), click("b")}, nil)
			Expect(runner.Run(cctx, "m1", batches, sink)).To(MatchError(context.Canceled))
			Expect(sink.pending).To(Equal([][]string{{"a"}}))
		})
	})
})
