package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/conversation"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/provider"
)

// outgoing is a user message ready to hand to the provider.
type outgoing struct {
	threadID     string
	message      *model.Message
	history      []*model.Message
	instructions string
	stale        bool
}

// SendMessage appends a user message, persists it and streams the reply.
// It blocks until the provider call returns.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) error {
	out, err := o.prepareMessage(ctx, text)
	if err != nil {
		return err
	}
	return o.deliver(ctx, out)
}

// StartMessage is SendMessage with the provider call moved to the
// background. Configuration and input errors are still returned directly.
func (o *Orchestrator) StartMessage(ctx context.Context, text string) (*model.Message, error) {
	out, err := o.prepareMessage(ctx, text)
	if err != nil {
		return nil, err
	}
	o.goBackground(ctx, func(ctx context.Context) {
		_ = o.deliver(ctx, out)
	})
	return out.message, nil
}

func (o *Orchestrator) prepareMessage(ctx context.Context, text string) (outgoing, error) {
	if !o.Configured() {
		return outgoing{}, ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return outgoing{}, ErrEmptyMessage
	}

	now := o.now()
	msg := &model.Message{
		ID:        o.newID(),
		Role:      model.RoleUser,
		Content:   model.Contents{&model.OutputText{ID: o.newID(), Text: text}},
		CreatedAt: now,
		Complete:  true,
	}

	o.mu.Lock()
	threadID := o.state.ThreadID
	msg.ThreadID = threadID
	history := o.state.Messages.List
	o.state.Messages = conversation.AddMessage(o.state.Messages, msg)
	o.state.WaitingForReply = true
	o.state.View = ViewConversation
	o.publishLocked()
	o.mu.Unlock()

	ctx = o.withLogFields(ctx, threadID)
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(msg.ID)})
	slog.InfoContext(ctx, "sending message", "text", logger.Truncate(text, 120))

	pageCtx := o.pageContext(ctx)

	o.mu.Lock()
	if pageCtx != nil {
		o.state.Messages = conversation.SetMessageContext(o.state.Messages, msg.ID, pageCtx)
		if updated, ok := conversation.Find(o.state.Messages, msg.ID); ok {
			msg = updated
		}
	}
	stale := o.state.ThreadID != threadID
	if !stale {
		o.persistThreadLocked(ctx, msg, now)
		o.persist.saveMessage(ctx, msg)
		o.publishLocked()
	}
	o.mu.Unlock()

	return outgoing{
		threadID:     threadID,
		message:      msg,
		history:      history,
		instructions: Instructions(pageCtx),
		stale:        stale,
	}, nil
}

func (o *Orchestrator) deliver(ctx context.Context, out outgoing) error {
	ctx = o.withLogFields(ctx, out.threadID)
	if out.stale {
		slog.InfoContext(ctx, "thread changed before send, dropping message", "message_id", out.message.ID)
		return nil
	}
	err := o.provider.SendMessage(ctx, provider.SendMessageParams{
		Model:        o.cfg.Model,
		Message:      out.message,
		Instructions: out.instructions,
		History:      out.history,
		Tools:        o.cfg.Tools,
		EventHandler: o.eventHandler(ctx),
	})
	if err != nil {
		o.HandleMessageError(ctx, out.threadID, err, out.message.ID, "")
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// SendFunctionResults hands a fully resolved assistant turn back to the
// model so it can react to the tool outputs.
func (o *Orchestrator) SendFunctionResults(ctx context.Context, msg *model.Message) error {
	if !o.Configured() {
		return ErrNotConfigured
	}

	o.mu.Lock()
	threadID := o.state.ThreadID
	if msg.ThreadID != threadID {
		o.mu.Unlock()
		return nil
	}
	var history []*model.Message
	for _, m := range o.state.Messages.List {
		if m.ID == msg.ID {
			break
		}
		history = append(history, m)
	}
	o.state.WaitingForReply = true
	o.publishLocked()
	o.mu.Unlock()

	ctx = o.withLogFields(ctx, threadID)
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(msg.ID)})
	slog.InfoContext(ctx, "sending function results", "calls", len(msg.FunctionCalls()))

	err := o.provider.SendFunctionCallResponse(ctx, provider.FunctionCallResponseParams{
		Model:        o.cfg.Model,
		Message:      msg,
		Instructions: Instructions(latestContext(history)),
		History:      history,
		Tools:        o.cfg.Tools,
		EventHandler: o.eventHandler(ctx),
	})
	if err != nil {
		o.HandleMessageError(ctx, threadID, err, msg.ID, "")
		return fmt.Errorf("sending function results: %w", err)
	}
	return nil
}

// continueIfReady is the only place a resolved assistant turn is sent back
// to the model. Each message continues at most once. Must be called with
// o.mu held; the continuation itself runs in the background.
func (o *Orchestrator) continueIfReady(ctx context.Context, msg *model.Message) {
	if !msg.ReadyToContinue() || o.continued[msg.ID] {
		return
	}
	o.continued[msg.ID] = true
	o.goBackground(ctx, func(ctx context.Context) {
		if err := o.SendFunctionResults(ctx, msg); err != nil {
			slog.WarnContext(ctx, "continuation failed", "message_id", msg.ID, "error", err)
		}
	})
}

// persistThreadLocked creates the thread on its first message and bumps
// its update time afterwards.
func (o *Orchestrator) persistThreadLocked(ctx context.Context, first *model.Message, now time.Time) {
	if !o.threadPersisted {
		o.threadPersisted = true
		o.persist.createThread(ctx, model.Thread{
			ID:        first.ThreadID,
			SessionID: o.cfg.SessionID,
			Title:     Title(first.Text(), now, o.cfg.TitleMaxLength),
			CreatedAt: now,
			UpdatedAt: now,
		})
		return
	}
	o.persist.touchThread(ctx, model.ThreadUpdate{ID: first.ThreadID, UpdatedAt: &now})
}

// pageContext fetches the active page's context. Failures mean no context.
func (o *Orchestrator) pageContext(ctx context.Context) *model.MessageContext {
	if o.page == nil {
		return nil
	}
	pc, err := o.page.GetPageContext(ctx)
	if err != nil {
		slog.InfoContext(ctx, "page context unavailable", "error", err)
		return nil
	}
	return pc
}

func latestContext(msgs []*model.Message) *model.MessageContext {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser && msgs[i].Context != nil {
			return msgs[i].Context
		}
	}
	return nil
}

// Instructions describes the page the user is on. Without context there are
// no instructions.
func Instructions(pc *model.MessageContext) string {
	if pc == nil || (pc.Title == "" && pc.URL == "") {
		return ""
	}
	var b strings.Builder
	b.WriteString("You are a browser assistant helping the user with the page they have open.\n")
	if pc.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", pc.Title)
	}
	if pc.URL != "" {
		fmt.Fprintf(&b, "Page URL: %s\n", pc.URL)
	}
	b.WriteString("Use the available tools to read the page or fill and click its elements when the user asks for it.")
	return b.String()
}

// Title derives a thread title from the first non-empty line of text,
// capped at maxLen runes. Empty text falls back to the creation time.
func Title(text string, createdAt time.Time, maxLen int) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > maxLen {
			return strings.TrimSpace(string(r[:maxLen]))
		}
		return line
	}
	return createdAt.Format(titleTimeLayout)
}
