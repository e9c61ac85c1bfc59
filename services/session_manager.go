package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound  = errors.New("wizard session not found")
	ErrSessionForbidden = errors.New("wizard session belongs to another user")
	ErrOwnerRequired    = errors.New("session owner is required")
)

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = 2 * time.Hour

// SessionManager owns every live wizard session.
type SessionManager interface {
	Start(owner string) (*Session, error)
	Get(id, owner string) (*Session, error)
	Discard(id, owner string) error
	Count() int
	// EvictIdle cancels sessions idle longer than the TTL.
	EvictIdle() int
	// Run calls EvictIdle periodically until ctx is done.
	Run(ctx context.Context, every time.Duration)
	// Drain waits for background work started by submissions.
	Drain()
}

type sessionManagerImpl struct {
	deps       SessionDeps
	ttl        time.Duration
	logger     *zap.Logger
	background *sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager builds a manager. All sessions share deps.
func NewSessionManager(deps SessionDeps, ttl time.Duration, logger *zap.Logger) SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Bus == nil {
		deps.Bus = NewEventBus()
	}
	if deps.Engine == nil {
		deps.Engine = NewValidationEngine()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	if deps.Submission.Background == nil {
		deps.Submission.Background = &sync.WaitGroup{}
	}
	return &sessionManagerImpl{
		deps:       deps,
		ttl:        ttl,
		logger:     logger,
		background: deps.Submission.Background,
		sessions:   make(map[string]*Session),
	}
}

func (m *sessionManagerImpl) Start(owner string) (*Session, error) {
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	s := NewSession(uuid.NewString(), owner, m.deps)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("Wizard session started", zap.String("session_id", s.ID()), zap.String("owner", owner))
	return s, nil
}

func (m *sessionManagerImpl) Get(id, owner string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Owner() != owner {
		return nil, ErrSessionForbidden
	}
	return s, nil
}

// Discard cancels the session and forgets it.
func (m *sessionManagerImpl) Discard(id, owner string) error {
	s, err := m.Get(id, owner)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if err := s.Cancel(); err != nil && !errors.Is(err, ErrSessionClosed) {
		return err
	}
	m.logger.Info("Wizard session discarded", zap.String("session_id", id))
	return nil
}

func (m *sessionManagerImpl) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *sessionManagerImpl) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

func (m *sessionManagerImpl) EvictIdle() int {
	cutoff := m.deps.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		_ = s.Cancel()
		m.logger.Info("Evicted idle wizard session", zap.String("session_id", s.ID()))
	}
	return len(expired)
}

func (m *sessionManagerImpl) Drain() {
	m.background.Wait()
}
