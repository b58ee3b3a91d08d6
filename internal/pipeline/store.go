package pipeline

import (
	"context"
	"sync"

	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
)

// StateStore persists EmergencyState between checks and restarts.
type StateStore interface {
	Load(ctx context.Context) (domain.EmergencyState, error)
	Save(ctx context.Context, st domain.EmergencyState) error
}

// Pinger is implemented by stores backed by an external resource.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MemoryStore keeps state for the life of the process only.
type MemoryStore struct {
	mu    sync.Mutex
	state domain.EmergencyState
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(_ context.Context) (domain.EmergencyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *MemoryStore) Save(_ context.Context, st domain.EmergencyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}
