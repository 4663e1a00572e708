package pebble

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/store"
)

// Key layout:
//
//	t:<threadID>                          thread record
//	m:<threadID>:<created unixnano>:<id>  message record
//	i:<messageID>                         message key index
const (
	threadPrefix  = "t:"
	messagePrefix = "m:"
	indexPrefix   = "i:"
)

// Store persists threads and messages in an embedded Pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble at %s: %w", path, err)
	}
	slog.Info("pebble store opened", "path", path)
	return &Store{db: db}, nil
}

// OpenInMemory opens a database backed by an in-memory filesystem.
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("opening in-memory pebble: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Init(context.Context) error { return nil }

func (s *Store) Close() error {
	return s.db.Close()
}

func threadKey(id string) []byte { return []byte(threadPrefix + id) }

func indexKey(id string) []byte { return []byte(indexPrefix + id) }

func messageKey(msg *model.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", messagePrefix, msg.ThreadID, msg.CreatedAt.UnixNano(), msg.ID))
}

func messageRange(threadID string) ([]byte, []byte) {
	lower := []byte(messagePrefix + threadID + ":")
	upper := append(bytes.Clone(lower[:len(lower)-1]), ';')
	return lower, upper
}

func (s *Store) GetThreads(_ context.Context, sessionID string) ([]model.Thread, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(threadPrefix),
		UpperBound: []byte("t;"),
	})
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer iter.Close()

	var threads []model.Thread
	for iter.First(); iter.Valid(); iter.Next() {
		var t model.Thread
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("decoding thread %s: %w", iter.Key(), err)
		}
		if t.SessionID == sessionID {
			threads = append(threads, t)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].UpdatedAt.Equal(threads[j].UpdatedAt) {
			return threads[i].ID > threads[j].ID
		}
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

func (s *Store) GetThread(_ context.Context, id string) (*model.Thread, error) {
	var t model.Thread
	if err := s.get(threadKey(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateThread(_ context.Context, thread model.Thread) error {
	return s.put(threadKey(thread.ID), thread)
}

func (s *Store) UpdateThread(ctx context.Context, update model.ThreadUpdate) error {
	t, err := s.GetThread(ctx, update.ID)
	if err != nil {
		return err
	}
	return s.put(threadKey(update.ID), update.Apply(*t))
}

func (s *Store) DeleteThread(_ context.Context, id string) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	lower, upper := messageRange(id)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("deleting thread %s: %w", id, err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		msgID := key[bytes.LastIndexByte(key, ':')+1:]
		if err := batch.Delete(indexKey(string(msgID)), nil); err != nil {
			iter.Close()
			return err
		}
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("deleting thread %s: %w", id, err)
	}

	if err := batch.DeleteRange(lower, upper, nil); err != nil {
		return err
	}
	if err := batch.Delete(threadKey(id), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) GetMessages(_ context.Context, threadID string) ([]*model.Message, error) {
	lower, upper := messageRange(threadID)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer iter.Close()

	msgs := []*model.Message{}
	for iter.First(); iter.Valid(); iter.Next() {
		var m model.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("decoding message %s: %w", iter.Key(), err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, iter.Error()
}

func (s *Store) CreateMessage(_ context.Context, msg *model.Message) error {
	key, err := s.lookup(msg.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		key = messageKey(msg)
	case err != nil:
		return err
	}
	return s.writeMessage(key, msg)
}

func (s *Store) UpdateMessage(_ context.Context, msg *model.Message) error {
	key, err := s.lookup(msg.ID)
	if err != nil {
		return err
	}
	return s.writeMessage(key, msg)
}

func (s *Store) writeMessage(key []byte, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", msg.ID, err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(key, data, nil); err != nil {
		return err
	}
	if err := batch.Set(indexKey(msg.ID), key, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) lookup(msgID string) ([]byte, error) {
	val, closer, err := s.db.Get(indexKey(msgID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up message %s: %w", msgID, err)
	}
	defer closer.Close()
	return bytes.Clone(val), nil
}

func (s *Store) get(key []byte, v any) error {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, v)
}

func (s *Store) put(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(key, data, pebble.Sync)
}

var _ store.Store = (*Store)(nil)
