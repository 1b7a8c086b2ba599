package web

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Viral-Card/server/internal/engine"
)

var ErrSessionNotFound = errors.New("session not found")

// EngineFactory builds the engine backing a new session
type EngineFactory func(sessionID string) *engine.CardEngine

// Sessions maps session ids to their card engines
type Sessions struct {
	newEngine EngineFactory
	engines   map[string]*engine.CardEngine
	log       *zap.Logger
	mu        sync.RWMutex
}

func NewSessions(factory EngineFactory, log *zap.Logger) *Sessions {
	return &Sessions{
		newEngine: factory,
		engines:   make(map[string]*engine.CardEngine),
		log:       log,
	}
}

// Create starts a session holding the seed card
func (s *Sessions) Create() *engine.CardEngine {
	id := uuid.NewString()
	e := s.newEngine(id)

	s.mu.Lock()
	s.engines[id] = e
	n := len(s.engines)
	s.mu.Unlock()

	s.log.Info("session created", zap.String("session", id), zap.Int("active", n))
	return e
}

func (s *Sessions) Get(id string) (*engine.CardEngine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.engines[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// End removes the session and revokes its assets
func (s *Sessions) End(id string) error {
	s.mu.Lock()
	e, ok := s.engines[id]
	delete(s.engines, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	e.Close()
	return nil
}

// CloseAll ends every session, used on shutdown
func (s *Sessions) CloseAll() int {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[string]*engine.CardEngine)
	s.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
	return len(engines)
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.engines)
}
