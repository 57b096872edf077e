package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tracks a session through its lifecycle.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session is one live voice connection.
type Session struct {
	ID             string
	CustomerID     string
	VoiceKey       string
	Status         Status
	StartedAt      time.Time
	LastActivityAt time.Time
	EndedAt        time.Time
}

// Manager owns session records for the lifetime of the process.
type Manager struct {
	mu                sync.Mutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	expireHook        func(Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
		now:               time.Now,
	}
}

// SetExpireHook registers a callback invoked with a snapshot of each
// session the janitor expires.
func (m *Manager) SetExpireHook(hook func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireHook = hook
}

func (m *Manager) Create(customerID, voiceKey string) Session {
	now := m.now()
	s := &Session{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		VoiceKey:       voiceKey,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return *s
}

func (m *Manager) Get(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Touch records activity on a session, deferring expiry.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.Status == StatusActive {
		s.LastActivityAt = m.now()
	}
}

// SetVoice updates the voice key recorded for a session.
func (m *Manager) SetVoice(id, voiceKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.VoiceKey = voiceKey
	}
}

func (m *Manager) End(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if s.Status == StatusActive {
		s.Status = StatusEnded
		s.EndedAt = m.now()
	}
	return *s, true
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			n++
		}
	}
	return n
}

// List returns snapshots of all known sessions.
func (m *Manager) List() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

func (m *Manager) expireIdle() {
	cutoff := m.now().Add(-m.inactivityTimeout)

	var expired []Session
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Status == StatusActive && s.LastActivityAt.Before(cutoff) {
			s.Status = StatusEnded
			s.EndedAt = m.now()
			expired = append(expired, *s)
		}
	}
	hook := m.expireHook
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

// RunJanitor expires idle sessions until stop closes. Callers run it in
// its own goroutine.
func (m *Manager) RunJanitor(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.expireIdle()
		}
	}
}
