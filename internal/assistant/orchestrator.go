// Package assistant coordinates one side-panel conversation: it folds
// provider events into the message collection through the reducer, gates
// tool execution and continuation, and mirrors every change to the store.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"chatconnect.app/assistant/common/id"
	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/conversation"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/page"
	"chatconnect.app/assistant/internal/provider"
	"chatconnect.app/assistant/internal/store"
	"chatconnect.app/assistant/internal/tools"
)

var (
	// ErrNotConfigured is returned when no provider or model is bound.
	ErrNotConfigured   = errors.New("assistant is not configured")
	ErrEmptyMessage    = errors.New("message text is empty")
	ErrMessageNotFound = errors.New("message not found")
	ErrCallNotFound    = errors.New("function call not found")
	ErrNoPage          = errors.New("no page adapter bound")
)

const (
	defaultTitleMaxLength = 80
	titleTimeLayout       = "Jan 2, 2006 3:04 PM"
)

type Config struct {
	// SessionID owns the threads this orchestrator creates; only those
	// threads can be listed, opened or deleted through it.
	SessionID        string
	Model            string
	TitleMaxLength   int
	AutoExecuteTools []string
	Tools            []tools.Descriptor
}

// Deps are the collaborators of an Orchestrator. Provider and Page may be
// nil: without a provider every send fails with ErrNotConfigured, without
// a page messages are sent without context and tools cannot run.
type Deps struct {
	Provider provider.Adapter
	Page     page.Adapter
	Store    store.Store
	NewID    func() string
	Now      func() time.Time
}

type Orchestrator struct {
	cfg      Config
	provider provider.Adapter
	page     page.Adapter
	runner   *tools.Runner
	policy   tools.Policy
	persist  *persister
	newID    func() string
	now      func() time.Time

	mu              sync.Mutex
	state           State
	threadPersisted bool
	continued       map[string]bool
	subscribers     map[int]func(State)
	nextSub         int

	background sync.WaitGroup
}

func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.TitleMaxLength <= 0 {
		cfg.TitleMaxLength = defaultTitleMaxLength
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.Catalog()
	}
	if deps.NewID == nil {
		deps.NewID = id.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	o := &Orchestrator{
		cfg:         cfg,
		provider:    deps.Provider,
		page:        deps.Page,
		policy:      tools.NewPolicy(cfg.AutoExecuteTools),
		persist:     newPersister(deps.Store),
		newID:       deps.NewID,
		now:         deps.Now,
		continued:   map[string]bool{},
		subscribers: map[int]func(State){},
	}
	if deps.Page != nil {
		o.runner = tools.NewRunner(deps.Page)
	}
	o.state = State{
		ThreadID: o.newID(),
		Messages: conversation.New(),
		Threads:  ThreadList{List: []model.Thread{}},
		View:     ViewConversation,
	}
	return o
}

// Configured reports whether messages can be sent.
func (o *Orchestrator) Configured() bool {
	return o.provider != nil && o.cfg.Model != ""
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers fn to receive the state after every change. fn runs
// with the state lock held: it must not block or call the Orchestrator.
func (o *Orchestrator) Subscribe(fn func(State)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := o.nextSub
	o.nextSub++
	o.subscribers[key] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subscribers, key)
	}
}

func (o *Orchestrator) publishLocked() {
	for _, fn := range o.subscribers {
		fn(o.state)
	}
}

// Wait blocks until background continuations, tool runs and queued
// persistence have finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
	o.persist.flush()
}

// Close waits for background work and stops the persistence worker.
func (o *Orchestrator) Close() {
	o.background.Wait()
	o.persist.close()
}

// goBackground runs fn detached from the caller's cancellation while
// keeping its log fields and trace.
func (o *Orchestrator) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "background task panicked", "panic", r)
			}
		}()
		fn(ctx)
	}()
}

func (o *Orchestrator) withLogFields(ctx context.Context, threadID string) context.Context {
	fields := logger.LogFields{
		ThreadID:  logger.Ptr(threadID),
		Component: "assistant.orchestrator",
	}
	if o.cfg.SessionID != "" {
		fields.SessionID = logger.Ptr(o.cfg.SessionID)
	}
	return logger.WithLogFields(ctx, fields)
}
