package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chatconnect.app/assistant/internal/conversation"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/store"
)

// StopMessage clears the waiting flags and cancels the provider request in
// flight. Content already streamed stays as it is.
func (o *Orchestrator) StopMessage(ctx context.Context) {
	o.mu.Lock()
	o.state.WaitingForReply = false
	o.state.WaitingForTools = false
	o.publishLocked()
	threadID := o.state.ThreadID
	o.mu.Unlock()

	slog.InfoContext(o.withLogFields(ctx, threadID), "stopping message")
	if o.provider != nil {
		o.provider.CancelActiveRequest()
	}
}

// StartNewThread switches to a fresh, empty thread. The thread is only
// persisted once its first message is sent.
func (o *Orchestrator) StartNewThread(ctx context.Context) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startNewThreadLocked()
	slog.InfoContext(o.withLogFields(ctx, o.state.ThreadID), "started new thread")
	o.publishLocked()
	return o.state.ThreadID
}

func (o *Orchestrator) startNewThreadLocked() {
	o.state.ThreadID = o.newID()
	o.state.Messages = conversation.New()
	o.state.WaitingForReply = false
	o.state.WaitingForTools = false
	o.state.View = ViewConversation
	o.threadPersisted = false
	o.continued = map[string]bool{}
}

// SelectThread makes a stored thread active and loads its messages. A
// failed load leaves an empty, errored collection.
func (o *Orchestrator) SelectThread(ctx context.Context, threadID string) error {
	ctx = o.withLogFields(ctx, threadID)
	if o.persist.store == nil {
		return store.ErrNotFound
	}
	if _, err := o.ownedThread(ctx, threadID); err != nil {
		return err
	}

	o.mu.Lock()
	o.state.ThreadID = threadID
	o.state.Messages = conversation.Loading()
	o.state.WaitingForReply = false
	o.state.WaitingForTools = false
	o.state.View = ViewConversation
	o.threadPersisted = true
	o.continued = map[string]bool{}
	o.publishLocked()
	o.mu.Unlock()

	// Pending writes for this thread must land before it is read back.
	o.persist.flush()
	msgs, err := o.persist.store.GetMessages(ctx, threadID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.ThreadID != threadID {
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "loading messages failed", "error", err)
		o.state.Messages = conversation.Failed(err)
		o.publishLocked()
		return fmt.Errorf("loading messages: %w", err)
	}

	for i, m := range msgs {
		if !m.History {
			m = m.Clone()
			m.History = true
			msgs[i] = m
		}
		if m.ReadyToContinue() {
			o.continued[m.ID] = true
		}
	}
	o.state.Messages = conversation.Loaded(msgs)
	if latest, ok := conversation.LatestAssistant(o.state.Messages); ok {
		o.state.WaitingForTools = latest.Complete && latest.HasUnresolvedCalls()
	}
	slog.InfoContext(ctx, "thread selected", "messages", len(msgs))
	o.publishLocked()
	return nil
}

// LoadThreads refreshes the thread history and shows it.
func (o *Orchestrator) LoadThreads(ctx context.Context) ([]model.Thread, error) {
	o.mu.Lock()
	o.state.Threads = ThreadList{List: []model.Thread{}, Loading: true}
	o.state.View = ViewHistory
	o.publishLocked()
	o.mu.Unlock()

	var (
		threads []model.Thread
		err     error
	)
	if o.persist.store != nil {
		o.persist.flush()
		threads, err = o.persist.store.GetThreads(ctx, o.cfg.SessionID)
	}
	if threads == nil {
		threads = []model.Thread{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		slog.ErrorContext(ctx, "loading threads failed", "error", err)
		o.state.Threads = ThreadList{List: []model.Thread{}, Error: conversation.ErrorString(err)}
		o.publishLocked()
		return nil, fmt.Errorf("loading threads: %w", err)
	}
	o.state.Threads = ThreadList{List: threads, Ready: true}
	o.publishLocked()
	return threads, nil
}

// DeleteThread removes a thread and its messages. Deleting the active
// thread starts a new one.
func (o *Orchestrator) DeleteThread(ctx context.Context, threadID string) error {
	ctx = o.withLogFields(ctx, threadID)
	err := o.persist.do(ctx, "delete_thread", func(ctx context.Context, s store.Store) error {
		t, err := s.GetThread(ctx, threadID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.SessionID != o.cfg.SessionID {
			return store.ErrNotFound
		}
		return s.DeleteThread(ctx, threadID)
	})
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	list := make([]model.Thread, 0, len(o.state.Threads.List))
	for _, t := range o.state.Threads.List {
		if t.ID != threadID {
			list = append(list, t)
		}
	}
	o.state.Threads.List = list
	if o.state.ThreadID == threadID {
		o.startNewThreadLocked()
	}
	slog.InfoContext(ctx, "thread deleted")
	o.publishLocked()
	return nil
}

// ownedThread returns the stored thread when it belongs to this session.
// Threads of other sessions are reported as missing.
func (o *Orchestrator) ownedThread(ctx context.Context, threadID string) (*model.Thread, error) {
	t, err := o.persist.store.GetThread(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread: %w", err)
	}
	if t.SessionID != o.cfg.SessionID {
		slog.WarnContext(ctx, "thread belongs to another session")
		return nil, store.ErrNotFound
	}
	return t, nil
}
