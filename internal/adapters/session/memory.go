// Package session provides the in-memory session store.
// Clean Architecture: Adapter implementing ports.SessionStore.
// History is process-lifetime only: unbounded session count, bounded
// per-session history, nothing persisted across restarts.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

// MemoryStore keeps every session in memory. A per-session mutex
// serializes appends for the same id while different sessions proceed
// fully in parallel.
type MemoryStore struct {
	mu         sync.RWMutex
	maxHistory int
	sessions   map[string]*sessionState
}

type sessionState struct {
	mu      sync.Mutex
	history []entities.Turn
}

// NewMemoryStore creates a store with the given per-session history cap.
// The cap counts total turns, not turn pairs.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	return &MemoryStore{
		maxHistory: maxHistory,
		sessions:   make(map[string]*sessionState),
	}
}

// GetOrCreate returns the session for id. An absent or unknown id is
// never an error: a new unique id and empty session are allocated.
func (s *MemoryStore) GetOrCreate(id string) (string, *entities.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if state, ok := s.sessions[id]; ok {
			return id, &entities.Session{ID: id, History: copyTurns(state.history)}
		}
	}
	id = uuid.NewString()
	s.sessions[id] = &sessionState{}
	return id, &entities.Session{ID: id}
}

// History returns a copy of the session's turns, oldest first.
func (s *MemoryStore) History(id string) []entities.Turn {
	s.mu.RLock()
	state, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return copyTurns(state.history)
}

// Append adds a turn, strictly FIFO-evicting the oldest turns once the
// cap is exceeded. Appends to the same session are serialized.
func (s *MemoryStore) Append(id string, turn entities.Turn) {
	s.mu.Lock()
	state, ok := s.sessions[id]
	if !ok {
		state = &sessionState{}
		s.sessions[id] = state
	}
	s.mu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()
	state.history = append(state.history, turn)
	if overflow := len(state.history) - s.maxHistory; overflow > 0 {
		state.history = append([]entities.Turn(nil), state.history[overflow:]...)
	}
}

// Reset drops the session's history.
func (s *MemoryStore) Reset(id string) {
	s.mu.RLock()
	state, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.history = nil
}

func copyTurns(turns []entities.Turn) []entities.Turn {
	if len(turns) == 0 {
		return nil
	}
	out := make([]entities.Turn, len(turns))
	copy(out, turns)
	return out
}
