package store

import (
	"context"
	"errors"

	"chatconnect.app/assistant/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Store persists threads and their messages. Creates are upserts so a
// repeated write is harmless.
type Store interface {
	Init(ctx context.Context) error
	// GetThreads lists the session's threads, most recently updated first.
	GetThreads(ctx context.Context, sessionID string) ([]model.Thread, error)
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	CreateThread(ctx context.Context, thread model.Thread) error
	UpdateThread(ctx context.Context, update model.ThreadUpdate) error
	// DeleteThread removes the thread and all of its messages.
	DeleteThread(ctx context.Context, id string) error
	// GetMessages returns the thread's messages in creation order.
	GetMessages(ctx context.Context, threadID string) ([]*model.Message, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	UpdateMessage(ctx context.Context, msg *model.Message) error
	Close() error
}
