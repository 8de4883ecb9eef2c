package directory

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/example/emergency-dispatch/internal/models"
)

// ResponderLookup hydrates a trip's assigned responder with detail fields not
// present in update payloads. Lookups are best-effort; callers swallow
// failures and keep the trip usable with partial info.
type ResponderLookup interface {
	GetResponderByID(ctx context.Context, id string) (*models.Responder, error)
}

// RedisResponders reads responder details from the metadata hashes the
// location consumer maintains.
type RedisResponders struct {
	client *redis.Client
}

func NewRedisResponders(client *redis.Client) *RedisResponders {
	return &RedisResponders{client: client}
}

func NewRedisRespondersFromAddr(addr, password string) *RedisResponders {
	return &RedisResponders{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func (r *RedisResponders) GetResponderByID(ctx context.Context, id string) (*models.Responder, error) {
	m, err := r.client.HGetAll(ctx, responderKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	resp := &models.Responder{
		ID:           id,
		Name:         m["name"],
		Phone:        m["phone"],
		VehiclePlate: m["plate"],
	}
	if v, ok := m["rating"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			resp.Rating = f
		}
	}
	lat, latErr := strconv.ParseFloat(m["lat"], 64)
	lng, lngErr := strconv.ParseFloat(m["lng"], 64)
	if latErr == nil && lngErr == nil {
		resp.Loc = &models.Coordinate{Lat: lat, Lng: lng}
	}
	if v, ok := m["heading"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			resp.Heading = f
		}
	}
	return resp, nil
}

func responderKey(id string) string { return "responder:meta:" + id }

// MemoryResponders is the in-process ResponderLookup used in tests and when
// Redis is unconfigured.
type MemoryResponders struct {
	mu         sync.RWMutex
	responders map[string]models.Responder
}

func NewMemoryResponders() *MemoryResponders {
	return &MemoryResponders{responders: make(map[string]models.Responder)}
}

func (m *MemoryResponders) Put(r models.Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responders[r.ID] = r
}

func (m *MemoryResponders) GetResponderByID(ctx context.Context, id string) (*models.Responder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.responders[id]
	if !ok {
		return nil, nil
	}
	out := r
	return &out, nil
}
