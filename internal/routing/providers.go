package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
)

// ProviderTimeout is the default per-call deadline the fetcher applies when no
// timeout is configured. The same bound covers the primary and the secondary
// provider.
const ProviderTimeout = 2 * time.Second

// Provider fetches a driving route between two points.
type Provider interface {
	FetchRoute(ctx context.Context, origin, dest models.Coordinate) (*models.Route, error)
}

// OSRMProvider queries an OSRM-compatible HTTP server for the full route
// geometry as GeoJSON coordinate pairs. The per-call context carries the
// deadline, so the client itself sets none; a configured fetch timeout is
// never capped here.
type OSRMProvider struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMProvider(endpoint string) *OSRMProvider {
	return &OSRMProvider{Endpoint: endpoint, Client: &http.Client{}}
}

func (o *OSRMProvider) FetchRoute(ctx context.Context, origin, dest models.Coordinate) (*models.Route, error) {
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		o.Endpoint, origin.Lng, origin.Lat, dest.Lng, dest.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm status %d", resp.StatusCode)
	}
	var out struct {
		Code   string `json:"code"`
		Routes []struct {
			Duration float64 `json:"duration"`
			Distance float64 `json:"distance"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Code != "Ok" || len(out.Routes) == 0 {
		return nil, fmt.Errorf("osrm no route: %v", out.Code)
	}
	r := out.Routes[0]
	coords := make([]models.Coordinate, 0, len(r.Geometry.Coordinates))
	for _, p := range r.Geometry.Coordinates {
		if len(p) < 2 {
			continue
		}
		c := models.Coordinate{Lat: p[1], Lng: p[0]}
		if !geo.Valid(c) {
			continue
		}
		coords = append(coords, c)
	}
	dur, dist := r.Duration, r.Distance
	return &models.Route{Coordinates: coords, DurationSec: &dur, DistanceMeters: &dist}, nil
}

// PolylineProvider queries a directions API that returns its geometry as an
// encoded polyline. A malformed polyline decodes to an empty path, which the
// fetcher then rejects as too short.
type PolylineProvider struct {
	Endpoint string
	Client   *http.Client
}

func NewPolylineProvider(endpoint string) *PolylineProvider {
	return &PolylineProvider{Endpoint: endpoint, Client: &http.Client{}}
}

func (p *PolylineProvider) FetchRoute(ctx context.Context, origin, dest models.Coordinate) (*models.Route, error) {
	url := fmt.Sprintf("%s/directions?origin=%.6f,%.6f&destination=%.6f,%.6f",
		p.Endpoint, origin.Lat, origin.Lng, dest.Lat, dest.Lng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directions status %d", resp.StatusCode)
	}
	var out struct {
		Geometry string   `json:"geometry"`
		Duration *float64 `json:"duration_sec"`
		Distance *float64 `json:"distance_meters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	coords := geo.DecodePolyline(out.Geometry)
	return &models.Route{Coordinates: coords, DurationSec: out.Duration, DistanceMeters: out.Distance}, nil
}
