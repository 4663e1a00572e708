package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/conversation"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/tools"
)

var _ tools.Sink = (*Orchestrator)(nil)

// SaveFunctionResult records the outcome of one tool call. The turn is
// continued once the message is complete and every call in it is resolved;
// until then the result is only stored.
func (o *Orchestrator) SaveFunctionResult(ctx context.Context, messageID, callID string, result model.FunctionResult) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = o.withLogFields(ctx, o.state.ThreadID)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(messageID),
		CallID:    logger.Ptr(callID),
	})

	msg, ok := conversation.Find(o.state.Messages, messageID)
	if !ok {
		return ErrMessageNotFound
	}
	fc, ok := msg.FunctionCall(callID)
	if !ok {
		return ErrCallNotFound
	}
	if fc.Status.Terminal() {
		slog.DebugContext(ctx, "function call already resolved", "status", fc.Status)
		return nil
	}

	o.state.Messages = conversation.UpdateFunctionResult(o.state.Messages, messageID, callID, result)
	msg, _ = conversation.Find(o.state.Messages, messageID)

	if msg.Complete {
		if latest, ok := conversation.LatestAssistant(o.state.Messages); ok && latest.ID == msg.ID {
			o.state.WaitingForTools = msg.HasUnresolvedCalls()
		}
		o.persist.updateMessage(ctx, msg)
		o.continueIfReady(ctx, msg)
	}

	o.publishLocked()
	return nil
}

// MarkFunctionCallsPending moves the given Idle calls to Pending and
// returns the ids it moved. Only those may be executed: a call is claimed
// once, whoever asks first.
func (o *Orchestrator) MarkFunctionCallsPending(ctx context.Context, messageID string, callIDs []string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	msg, ok := conversation.Find(o.state.Messages, messageID)
	if !ok {
		return nil
	}
	var claimed []string
	for _, callID := range callIDs {
		if fc, ok := msg.FunctionCall(callID); ok && tools.Idle(fc) {
			o.state.Messages = conversation.MarkFunctionCallPending(o.state.Messages, messageID, callID)
			claimed = append(claimed, callID)
		}
	}
	if len(claimed) == 0 {
		slog.DebugContext(ctx, "function calls already claimed", "message_id", messageID, "call_ids", callIDs)
		return nil
	}
	o.state.WaitingForTools = true
	o.publishLocked()
	return claimed
}

// ExecuteFunctionCalls runs the user-approved Idle calls of a message in
// the background. Consecutive fill calls run together; every result goes
// through SaveFunctionResult.
func (o *Orchestrator) ExecuteFunctionCalls(ctx context.Context, messageID string, callIDs []string) error {
	if o.runner == nil {
		return ErrNoPage
	}

	o.mu.Lock()
	msg, ok := conversation.Find(o.state.Messages, messageID)
	threadID := o.state.ThreadID
	o.mu.Unlock()
	if !ok {
		return ErrMessageNotFound
	}

	wanted := make(map[string]bool, len(callIDs))
	for _, callID := range callIDs {
		if _, ok := msg.FunctionCall(callID); !ok {
			return fmt.Errorf("%w: %s", ErrCallNotFound, callID)
		}
		wanted[callID] = true
	}

	batches := tools.GroupBatches(msg.Content, func(fc *model.FunctionCall) bool {
		return wanted[fc.ID] && tools.Idle(fc)
	})
	if len(batches) == 0 {
		return nil
	}

	ctx = o.withLogFields(ctx, threadID)
	slog.InfoContext(ctx, "executing function calls", "message_id", messageID, "batches", len(batches))
	o.goBackground(ctx, func(ctx context.Context) {
		if err := o.runner.Run(ctx, messageID, batches, o); err != nil {
			slog.WarnContext(ctx, "function call execution stopped", "error", err)
		}
	})
	return nil
}
