package assistant

import (
	"context"
	"errors"
	"log/slog"

	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/conversation"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/provider"
)

// HandleMessageEvent folds one provider event into the conversation.
// Events for any thread but the active one are dropped.
func (o *Orchestrator) HandleMessageEvent(ev provider.Event) {
	o.handleEvent(context.Background(), ev)
}

func (o *Orchestrator) eventHandler(ctx context.Context) provider.EventHandler {
	return func(ev provider.Event) {
		o.handleEvent(ctx, ev)
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev provider.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ev.Thread() != o.state.ThreadID {
		slog.DebugContext(ctx, "dropping event for inactive thread", "event_thread_id", ev.Thread())
		return
	}
	ctx = o.withLogFields(ctx, ev.Thread())

	switch e := ev.(type) {
	case provider.Created:
		o.state.Messages = conversation.AddMessage(o.state.Messages, &model.Message{
			ID:        e.MessageID,
			Role:      model.RoleAssistant,
			Content:   model.Contents{},
			CreatedAt: o.now(),
			ThreadID:  e.ThreadID,
		})

	case provider.OutputTextDelta:
		o.state.Messages = conversation.AppendTextDelta(o.state.Messages, e.MessageID, e.ContentID, e.TextDelta)

	case provider.FunctionCallAdded:
		o.state.Messages = conversation.UpsertFunctionCall(o.state.Messages, e.MessageID, e.Content)
		o.state.WaitingForTools = true

	case provider.FunctionCallDone:
		o.state.Messages = conversation.UpsertFunctionCall(o.state.Messages, e.MessageID, e.Content)
		o.state.WaitingForTools = true

	case provider.Completed:
		o.state.Messages = conversation.SetComplete(o.state.Messages, e.MessageID)
		o.state.WaitingForReply = false
		if msg, ok := conversation.Find(o.state.Messages, e.MessageID); ok {
			o.state.WaitingForTools = msg.HasUnresolvedCalls()
			o.finishTurnLocked(ctx, msg)
		}

	case provider.Error:
		o.failLocked(ctx, e.Err, e.UserMessageID, e.MessageID)

	case provider.Fallback:
		msg := &model.Message{
			ID:        e.MessageID,
			Role:      model.RoleAssistant,
			Content:   e.Content,
			CreatedAt: o.now(),
			ThreadID:  e.ThreadID,
			Complete:  true,
		}
		if msg.Content == nil {
			msg.Content = model.Contents{}
		}
		o.state.Messages = conversation.AddMessage(o.state.Messages, msg)
		o.state.WaitingForReply = false
		o.state.WaitingForTools = e.HasTools
		o.finishTurnLocked(ctx, msg)
	}

	o.publishLocked()
}

// finishTurnLocked persists a completed assistant turn, then either starts
// its auto-executable tools or continues it when nothing is left to run.
func (o *Orchestrator) finishTurnLocked(ctx context.Context, msg *model.Message) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(msg.ID)})
	now := o.now()
	o.persist.saveMessage(ctx, msg)
	if o.threadPersisted {
		o.persist.touchThread(ctx, model.ThreadUpdate{ID: msg.ThreadID, UpdatedAt: &now})
	}

	o.continueIfReady(ctx, msg)

	if o.runner == nil {
		return
	}
	batches := o.policy.AutoBatches(msg)
	if len(batches) == 0 {
		return
	}
	slog.InfoContext(ctx, "auto-executing tool calls", "batches", len(batches))
	o.goBackground(ctx, func(ctx context.Context) {
		if err := o.runner.Run(ctx, msg.ID, batches, o); err != nil {
			slog.WarnContext(ctx, "auto-execution stopped", "error", err)
		}
	})
}

// HandleMessageError attributes err to the assistant message when given,
// else to the user message, and clears both waiting flags. Errors for an
// inactive thread are ignored; cancellation only clears the flags.
func (o *Orchestrator) HandleMessageError(ctx context.Context, threadID string, err any, userMessageID, assistantMessageID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if threadID != o.state.ThreadID {
		return
	}
	o.failLocked(o.withLogFields(ctx, threadID), err, userMessageID, assistantMessageID)
	o.publishLocked()
}

func (o *Orchestrator) failLocked(ctx context.Context, err any, userMessageID, assistantMessageID string) {
	o.state.WaitingForReply = false
	o.state.WaitingForTools = false

	if e, ok := err.(error); ok && errors.Is(e, context.Canceled) {
		slog.InfoContext(ctx, "request cancelled")
		return
	}
	slog.WarnContext(ctx, "message failed",
		"error", conversation.ErrorString(err),
		"user_message_id", userMessageID,
		"assistant_message_id", assistantMessageID)

	o.state.Messages = conversation.SetError(o.state.Messages, err, userMessageID, assistantMessageID)

	target := assistantMessageID
	if _, ok := conversation.Find(o.state.Messages, target); !ok {
		target = userMessageID
	}
	if msg, ok := conversation.Find(o.state.Messages, target); ok {
		o.persist.saveMessage(ctx, msg)
	}
}
