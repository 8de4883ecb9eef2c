package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/example/emergency-dispatch/internal/models"
)

// RequestStore defines persistence for dispatch and bed requests. ListActive
// backs the polling fallback and the cold-start reconciliation pass.
type RequestStore interface {
	SaveRequest(ctx context.Context, r *models.DispatchRequest) error
	UpdateRequest(ctx context.Context, r *models.DispatchRequest) error
	ListActive(ctx context.Context, userID string) ([]models.DispatchRequest, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]models.DispatchRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]models.DispatchRequest)}
}

func (m *MemoryStore) SaveRequest(ctx context.Context, r *models.DispatchRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = *r
	return nil
}

func (m *MemoryStore) UpdateRequest(ctx context.Context, r *models.DispatchRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = *r
	return nil
}

// ListActive returns the user's non-terminal requests, most recent first.
func (m *MemoryStore) ListActive(ctx context.Context, userID string) ([]models.DispatchRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DispatchRequest, 0)
	for _, r := range m.requests {
		if r.UserID != userID || terminal(r.Status) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Get(id string) (models.DispatchRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	return r, ok
}

func terminal(status string) bool { return status == "completed" || status == "cancelled" }
