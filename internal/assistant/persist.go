package assistant

import (
	"context"
	"log/slog"
	"sync"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/store"
)

type job struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
	done chan error
}

// persister applies store writes one at a time in submission order, so a
// message update can never overtake its create. Failures are logged and
// dropped unless the submitter waits for the result.
type persister struct {
	store store.Store

	mu      sync.Mutex
	queue   []job
	running bool
	closed  bool
}

func newPersister(s store.Store) *persister {
	return &persister{store: s}
}

// submit queues fn without waiting for it.
func (p *persister) submit(ctx context.Context, name string, fn func(ctx context.Context, s store.Store) error) {
	p.enqueue(ctx, name, fn, nil)
}

// do queues fn behind every earlier write and waits for its result.
func (p *persister) do(ctx context.Context, name string, fn func(ctx context.Context, s store.Store) error) error {
	done := make(chan error, 1)
	if !p.enqueue(ctx, name, fn, done) {
		return context.Canceled
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) enqueue(ctx context.Context, name string, fn func(context.Context, store.Store) error, done chan error) bool {
	if p.store == nil {
		if done != nil {
			done <- nil
		}
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		slog.WarnContext(ctx, "store write after close dropped", "op", name)
		return false
	}
	p.queue = append(p.queue, job{
		ctx:  context.WithoutCancel(ctx),
		name: name,
		fn:   func(ctx context.Context) error { return fn(ctx, p.store) },
		done: done,
	})
	if !p.running {
		p.running = true
		go p.drain()
	}
	return true
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.running = false
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		err := j.fn(j.ctx)
		if err != nil {
			slog.WarnContext(j.ctx, "store write failed", "op", j.name, "error", err)
		}
		if j.done != nil {
			j.done <- err
		}
	}
}

// flush waits until every write queued so far has been applied.
func (p *persister) flush() {
	if p.store == nil {
		return
	}
	done := make(chan error, 1)
	p.mu.Lock()
	p.queue = append(p.queue, job{
		ctx:  context.Background(),
		name: "flush",
		fn:   func(context.Context) error { return nil },
		done: done,
	})
	if !p.running {
		p.running = true
		go p.drain()
	}
	p.mu.Unlock()
	<-done
}

func (p *persister) close() {
	p.flush()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *persister) createThread(ctx context.Context, t model.Thread) {
	p.submit(ctx, "create_thread", func(ctx context.Context, s store.Store) error {
		return s.CreateThread(ctx, t)
	})
}

func (p *persister) touchThread(ctx context.Context, update model.ThreadUpdate) {
	p.submit(ctx, "update_thread", func(ctx context.Context, s store.Store) error {
		return s.UpdateThread(ctx, update)
	})
}

// saveMessage upserts msg. Messages are values, so the queued write sees
// the state at submission time.
func (p *persister) saveMessage(ctx context.Context, msg *model.Message) {
	p.submit(ctx, "create_message", func(ctx context.Context, s store.Store) error {
		return s.CreateMessage(ctx, msg)
	})
}

func (p *persister) updateMessage(ctx context.Context, msg *model.Message) {
	p.submit(ctx, "update_message", func(ctx context.Context, s store.Store) error {
		return s.UpdateMessage(ctx, msg)
	})
}
