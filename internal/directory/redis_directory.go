package directory

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/emergency-dispatch/internal/models"
)

// RedisDirectory implements Directory on Redis GEO commands, with hospital
// metadata alongside in hashes.
type RedisDirectory struct {
	client *redis.Client
	key    string
}

func NewRedisDirectory(addr, password, key string) *RedisDirectory {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisDirectory{client: c, key: key}
}

func (r *RedisDirectory) Upsert(ctx context.Context, h models.Hospital) error {
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: h.Loc.Lng, Latitude: h.Loc.Lat, Name: h.ID,
	}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(h.ID), map[string]interface{}{
		"name":        h.Name,
		"rating":      strconv.FormatFloat(h.Rating, 'f', -1, 64),
		"verified":    strconv.FormatBool(h.Verified),
		"beds":        strconv.Itoa(h.AvailableBeds),
		"ambulances":  strconv.Itoa(h.Ambulances),
		"wait_min":    strconv.Itoa(h.WaitTimeMinutes),
		"specialties": strings.Join(h.Specialties, ","),
		"updated":     time.Now().Format(time.RFC3339),
	}).Err()
}

// DiscoverNearby searches within radiusMeters, doubling the radius on a
// sparse result up to a cap. Metadata hydration is best-effort: a missing
// hash still yields a usable hospital record.
func (r *RedisDirectory) DiscoverNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]models.Hospital, error) {
	radius := radiusMeters
	for attempt := 0; attempt <= maxRadiusDoublings; attempt++ {
		res, err := r.client.GeoRadius(ctx, r.key, lng, lat, &redis.GeoRadiusQuery{
			Radius: radius, Unit: "m", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
		}).Result()
		if err != nil {
			return nil, err
		}
		if len(res) == 0 {
			radius *= 2
			continue
		}
		out := make([]models.Hospital, 0, len(res))
		for _, g := range res {
			h := models.Hospital{ID: g.Name}
			h.Loc.Lat = g.Latitude
			h.Loc.Lng = g.Longitude
			h.DistanceKm = g.Dist / 1000
			r.hydrate(ctx, &h)
			out = append(out, h)
		}
		return out, nil
	}
	return nil, nil
}

func (r *RedisDirectory) hydrate(ctx context.Context, h *models.Hospital) {
	m, err := r.client.HGetAll(ctx, metaKey(h.ID)).Result()
	if err != nil {
		return
	}
	h.Name = m["name"]
	if v, ok := m["rating"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			h.Rating = f
		}
	}
	if v, ok := m["verified"]; ok {
		h.Verified = v == "true"
	}
	if v, ok := m["beds"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			h.AvailableBeds = n
		}
	}
	if v, ok := m["ambulances"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			h.Ambulances = n
		}
	}
	if v, ok := m["wait_min"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			h.WaitTimeMinutes = n
		}
	}
	if v := m["specialties"]; v != "" {
		h.Specialties = strings.Split(v, ",")
	}
}

func metaKey(id string) string { return "hospital:meta:" + id }
