package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager tracks active sessions and which connection belongs to which.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byConn   map[string]string // connID -> session ID
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session), byConn: make(map[string]string)}
}

// Create registers a new active session. It fails if either human side is
// already part of one.
func (m *Manager) Create(detective, responder Participant, isBot bool, duration time.Duration, persona Persona) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range []Participant{detective, responder} {
		if p.ConnID == "" {
			continue
		}
		if _, busy := m.byConn[p.ConnID]; busy {
			return nil, ErrAlreadyInSession
		}
	}
	id := uuid.NewString()
	for m.sessions[id] != nil {
		id = uuid.NewString()
	}
	s := NewSession(id, detective, responder, isBot, duration, persona)
	m.sessions[id] = s
	for _, p := range []Participant{detective, responder} {
		if p.ConnID != "" {
			m.byConn[p.ConnID] = id
		}
	}
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sessions[id]
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// ForConn returns the session connID is playing in, if any.
func (m *Manager) ForConn(connID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byConn[connID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.sessions[id], nil
}

// Remove drops the session and frees both participants. Idempotent.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[id]
	if s == nil {
		return
	}
	delete(m.sessions, id)
	for _, p := range []Participant{s.Detective, s.Responder} {
		if p.ConnID != "" && m.byConn[p.ConnID] == id {
			delete(m.byConn, p.ConnID)
		}
	}
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
