package memory

import (
	"context"
	"sort"
	"sync"

	"chatconnect.app/assistant/internal/model"
	"chatconnect.app/assistant/internal/store"
)

// Store keeps threads and messages in process memory.
type Store struct {
	mu       sync.RWMutex
	threads  map[string]model.Thread
	messages map[string][]*model.Message
	owner    map[string]string
}

func New() *Store {
	return &Store{
		threads:  map[string]model.Thread{},
		messages: map[string][]*model.Message{},
		owner:    map[string]string{},
	}
}

func (s *Store) Init(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) GetThreads(_ context.Context, sessionID string) ([]model.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	sortThreads(out)
	return out, nil
}

func (s *Store) GetThread(_ context.Context, id string) (*model.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) CreateThread(_ context.Context, thread model.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.ID] = thread
	return nil
}

func (s *Store) UpdateThread(_ context.Context, update model.ThreadUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[update.ID]
	if !ok {
		return store.ErrNotFound
	}
	s.threads[update.ID] = update.Apply(t)
	return nil
}

func (s *Store) DeleteThread(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages[id] {
		delete(s.owner, m.ID)
	}
	delete(s.messages, id)
	delete(s.threads, id)
	return nil
}

func (s *Store) GetMessages(_ context.Context, threadID string) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[threadID]
	out := make([]*model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out, nil
}

func (s *Store) CreateMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if threadID, ok := s.owner[msg.ID]; ok {
		s.replace(threadID, msg)
		return nil
	}
	s.owner[msg.ID] = msg.ThreadID
	s.messages[msg.ThreadID] = append(s.messages[msg.ThreadID], msg.Clone())
	return nil
}

func (s *Store) UpdateMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threadID, ok := s.owner[msg.ID]
	if !ok {
		return store.ErrNotFound
	}
	s.replace(threadID, msg)
	return nil
}

func (s *Store) replace(threadID string, msg *model.Message) {
	for i, m := range s.messages[threadID] {
		if m.ID == msg.ID {
			s.messages[threadID][i] = msg.Clone()
			return
		}
	}
}

func sortThreads(threads []model.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].UpdatedAt.Equal(threads[j].UpdatedAt) {
			return threads[i].ID > threads[j].ID
		}
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
}
