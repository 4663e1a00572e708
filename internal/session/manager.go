// Package session keeps one orchestrator per browser side-panel session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"chatconnect.app/assistant/common/logger"
	"chatconnect.app/assistant/internal/assistant"
)

var ErrInvalidSessionID = errors.New("invalid session id")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Session is a browser session's conversation and its state stream.
type Session struct {
	ID           string
	Orchestrator *assistant.Orchestrator
	Broker       *Broker

	unsubscribe func()
}

// Builder creates the orchestrator for a new session.
type Builder func(ctx context.Context, sessionID string) (*assistant.Orchestrator, error)

type Manager struct {
	build Builder

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(build Builder) *Manager {
	return &Manager{build: build, sessions: map[string]*Session{}}
}

// Get returns the session, creating it on first use.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		return s, nil
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		SessionID: logger.Ptr(sessionID),
		Component: "assistant.session",
	})
	orch, err := m.build(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("building session %s: %w", sessionID, err)
	}

	s := &Session{ID: sessionID, Orchestrator: orch, Broker: NewBroker()}
	s.unsubscribe = orch.Subscribe(s.Broker.Publish)
	m.sessions[sessionID] = s
	slog.InfoContext(ctx, "session created")
	return s, nil
}

// Remove closes the session's orchestrator and forgets it.
func (m *Manager) Remove(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close shuts down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (s *Session) close() {
	s.unsubscribe()
	s.Orchestrator.StopMessage(context.Background())
	s.Orchestrator.Close()
}
