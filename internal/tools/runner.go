package tools

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"chatconnect.app/assistant/common/llm"
	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/page"
)

// Sink receives the lifecycle of executed calls. MarkFunctionCallsPending
// returns the ids it moved from Idle to Pending; the rest belong to another run.
type Sink interface {
	MarkFunctionCallsPending(ctx context.Context, messageID string, callIDs []string) []string
	SaveFunctionResult(ctx context.Context, messageID, callID string, result model.FunctionResult) error
}

type fillArgs struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

type clickArgs struct {
	Selector string `json:"selector"`
}

type contentArgs struct {
	Format page.Format `json:"format"`
}

// Runner executes tool calls against a page.
type Runner struct {
	page page.Adapter
}

func NewRunner(p page.Adapter) *Runner {
	return &Runner{page: p}
}

// Execute runs one call and reports its outcome as a result.
func (r *Runner) Execute(ctx context.Context, call *model.FunctionCall) model.FunctionResult {
	switch call.Name {
	case SetFieldValue:
		args, err := llm.ParseToolArguments[fillArgs](call.Arguments)
		if err != nil {
			return page.Failure(err)
		}
		return r.page.SetFieldValue(ctx, args.Selector, args.Value)

	case ClickElement:
		args, err := llm.ParseToolArguments[clickArgs](call.Arguments)
		if err != nil {
			return page.Failure(err)
		}
		return r.page.ClickElement(ctx, args.Selector)

	case GetPageContent:
		args, err := llm.ParseToolArguments[contentArgs](call.Arguments)
		if err != nil {
			return page.Failure(err)
		}
		return r.page.GetPageContent(ctx, args.Format)

	default:
		return page.Failure(fmt.Errorf("%w: %s", ErrUnknownTool, call.Name))
	}
}

// Run executes batches in order. Calls inside a batch run concurrently and
// each result is handed to sink as soon as it resolves. A cancelled context
// stops before the next batch; its calls stay Idle.
func (r *Runner) Run(ctx context.Context, messageID string, batches []Batch, sink Sink) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(messageID),
		Component: "assistant.tools.runner",
	})

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.runBatch(ctx, messageID, batch, sink)
	}
	return nil
}

func (r *Runner) runBatch(ctx context.Context, messageID string, batch Batch, sink Sink) {
	sc := logger.StartSpan(ctx, "tools.batch")
	defer sc.End()
	ctx = sc.Context()
	sc.Span().SetAttributes(attribute.Int("tools.batch_size", len(batch.Calls)))

	claimed := make(map[string]bool, len(batch.Calls))
	for _, id := range sink.MarkFunctionCallsPending(ctx, messageID, batch.IDs()) {
		claimed[id] = true
	}

	var g errgroup.Group
	for _, call := range batch.Calls {
		if !claimed[call.ID] {
			slog.DebugContext(ctx, "skipping tool call claimed elsewhere", "call_id", call.ID)
			continue
		}
		g.Go(func() error {
			callCtx := logger.WithLogFields(ctx, logger.LogFields{CallID: logger.Ptr(call.ID)})
			result := r.Execute(callCtx, call)
			if !result.Success {
				slog.InfoContext(callCtx, "tool call failed", "tool", call.Name, "error", result.Error)
			}
			if err := sink.SaveFunctionResult(callCtx, messageID, call.ID, result); err != nil {
				slog.WarnContext(callCtx, "saving tool result failed", "tool", call.Name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.DebugContext(ctx, "tool batch finished", "calls", len(claimed))
}
