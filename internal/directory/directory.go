// Package directory maintains the searchable hospital index the dispatcher
// ranks against, plus best-effort responder detail lookups. Hospitals are
// replaced wholesale on refresh, never partially mutated.
package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
)

// Directory is the minimal surface the dispatch handlers need.
type Directory interface {
	Upsert(ctx context.Context, h models.Hospital) error
	DiscoverNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]models.Hospital, error)
}

// maxRadiusDoublings caps the sparse-result radius expansion.
const maxRadiusDoublings = 2

// MemoryDirectory is the in-process fallback used when Redis is unconfigured.
type MemoryDirectory struct {
	mu        sync.RWMutex
	hospitals map[string]models.Hospital
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{hospitals: make(map[string]models.Hospital)}
}

func (m *MemoryDirectory) Upsert(ctx context.Context, h models.Hospital) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hospitals[h.ID] = h
	return nil
}

// naive scan; fine for the in-process fallback
func (m *MemoryDirectory) DiscoverNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]models.Hospital, error) {
	from := models.Coordinate{Lat: lat, Lng: lng}
	if !geo.Valid(from) {
		return nil, nil
	}

	radius := radiusMeters
	for attempt := 0; attempt <= maxRadiusDoublings; attempt++ {
		out := m.scan(from, radius, limit)
		if len(out) > 0 {
			return out, nil
		}
		radius *= 2
	}
	return nil, nil
}

func (m *MemoryDirectory) scan(from models.Coordinate, radiusMeters float64, limit int) []models.Hospital {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type pair struct {
		h    models.Hospital
		dist float64
	}
	arr := make([]pair, 0, len(m.hospitals))
	for _, h := range m.hospitals {
		if !geo.Valid(h.Loc) {
			continue
		}
		d := geo.Haversine(from, h.Loc)
		if d > radiusMeters {
			continue
		}
		arr = append(arr, pair{h, d})
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].dist < arr[j].dist })

	n := limit
	if n <= 0 || n > len(arr) {
		n = len(arr)
	}
	out := make([]models.Hospital, 0, n)
	for i := 0; i < n; i++ {
		h := arr[i].h
		h.DistanceKm = arr[i].dist / 1000
		out = append(out, h)
	}
	return out
}
