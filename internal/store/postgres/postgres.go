package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"chatconnect.app/assistant/core/db"
	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS threads (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE threads ADD COLUMN IF NOT EXISTS session_id TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS threads_session_idx ON threads (session_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	complete   BOOLEAN NOT NULL DEFAULT FALSE,
	error      TEXT NOT NULL DEFAULT '',
	has_error  BOOLEAN NOT NULL DEFAULT FALSE,
	context    JSONB,
	seq        BIGSERIAL
);

CREATE INDEX IF NOT EXISTS messages_thread_idx ON messages (thread_id, created_at, seq);
`

const (
	listThreadsSQL = `
SELECT id, session_id, title, created_at, updated_at FROM threads
WHERE session_id = $1 ORDER BY updated_at DESC, id DESC`
	getThreadSQL = `SELECT id, session_id, title, created_at, updated_at FROM threads WHERE id = $1`

	upsertThreadSQL = `
INSERT INTO threads (id, session_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, updated_at = EXCLUDED.updated_at`

	updateThreadSQL = `
UPDATE threads SET
	title = COALESCE($2, title),
	updated_at = GREATEST(updated_at, COALESCE($3, updated_at))
WHERE id = $1`

	deleteThreadSQL = `DELETE FROM threads WHERE id = $1`

	listMessagesSQL = `
SELECT id, thread_id, role, content, created_at, complete, error, has_error, context
FROM messages WHERE thread_id = $1 ORDER BY created_at, seq`

	upsertMessageSQL = `
INSERT INTO messages (id, thread_id, role, content, created_at, complete, error, has_error, context)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	content = EXCLUDED.content,
	complete = EXCLUDED.complete,
	error = EXCLUDED.error,
	has_error = EXCLUDED.has_error,
	context = EXCLUDED.context`

	updateMessageSQL = `
UPDATE messages SET content = $2, complete = $3, error = $4, has_error = $5, context = $6
WHERE id = $1`
)

// Store persists threads and messages in PostgreSQL.
type Store struct {
	db *db.DB
}

func New(database *db.DB) *Store {
	return &Store{db: database}
}

// Init creates the schema if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.Querier().Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) GetThreads(ctx context.Context, sessionID string) ([]model.Thread, error) {
	rows, err := s.db.Querier().Query(ctx, listThreadsSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	threads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Thread, error) {
		return scanThread(row)
	})
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	return threads, nil
}

func (s *Store) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	t, err := scanThread(s.db.Querier().QueryRow(ctx, getThreadSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread %s: %w", id, err)
	}
	return &t, nil
}

func (s *Store) CreateThread(ctx context.Context, t model.Thread) error {
	_, err := s.db.Querier().Exec(ctx, upsertThreadSQL, t.ID, t.SessionID, t.Title, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating thread %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) UpdateThread(ctx context.Context, u model.ThreadUpdate) error {
	tag, err := s.db.Querier().Exec(ctx, updateThreadSQL, u.ID, u.Title, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating thread %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteThread(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(q db.Querier) error {
		if _, err := q.Exec(ctx, `DELETE FROM messages WHERE thread_id = $1`, id); err != nil {
			return fmt.Errorf("deleting messages of %s: %w", id, err)
		}
		if _, err := q.Exec(ctx, deleteThreadSQL, id); err != nil {
			return fmt.Errorf("deleting thread %s: %w", id, err)
		}
		return nil
	})
}

func (s *Store) GetMessages(ctx context.Context, threadID string) ([]*model.Message, error) {
	rows, err := s.db.Querier().Query(ctx, listMessagesSQL, threadID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return msgs, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	content, msgCtx, err := encode(m)
	if err != nil {
		return err
	}
	_, err = s.db.Querier().Exec(ctx, upsertMessageSQL,
		m.ID, m.ThreadID, string(m.Role), content, m.CreatedAt, m.Complete, m.Error, m.HasError, msgCtx)
	if err != nil {
		return fmt.Errorf("creating message %s: %w", m.ID, err)
	}
	return nil
}

func (s *Store) UpdateMessage(ctx context.Context, m *model.Message) error {
	content, msgCtx, err := encode(m)
	if err != nil {
		return err
	}
	tag, err := s.db.Querier().Exec(ctx, updateMessageSQL,
		m.ID, content, m.Complete, m.Error, m.HasError, msgCtx)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encode(m *model.Message) ([]byte, []byte, error) {
	contents := m.Content
	if contents == nil {
		contents = model.Contents{}
	}
	content, err := json.Marshal(contents)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding content of %s: %w", m.ID, err)
	}
	if m.Context == nil {
		return content, nil, nil
	}
	msgCtx, err := json.Marshal(m.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding context of %s: %w", m.ID, err)
	}
	return content, msgCtx, nil
}

func scanThread(row pgx.Row) (model.Thread, error) {
	var t model.Thread
	err := row.Scan(&t.ID, &t.SessionID, &t.Title, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanMessage(row pgx.CollectableRow) (*model.Message, error) {
	var (
		m       model.Message
		role    string
		content []byte
		msgCtx  []byte
		created time.Time
	)
	if err := row.Scan(&m.ID, &m.ThreadID, &role, &content, &created, &m.Complete, &m.Error, &m.HasError, &msgCtx); err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	m.CreatedAt = created
	if err := json.Unmarshal(content, &m.Content); err != nil {
		return nil, fmt.Errorf("decoding content of %s: %w", m.ID, err)
	}
	if len(msgCtx) > 0 {
		m.Context = &model.MessageContext{}
		if err := json.Unmarshal(msgCtx, m.Context); err != nil {
			return nil, fmt.Errorf("decoding context of %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

var _ store.Store = (*Store)(nil)
