package geo

import (
	"math"

	"github.com/twpayne/go-polyline"

	"github.com/example/emergency-dispatch/internal/models"
)

// Valid reports whether both components of a coordinate are finite.
// Non-finite coordinates are treated as absent everywhere downstream;
// nothing in this package returns NaN.
func Valid(c models.Coordinate) bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lng) && !math.IsInf(c.Lng, 0)
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b models.Coordinate) float64 {
	const R = 6371000.0
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}

// Bearing returns the initial course from a to b in degrees, normalized to [0, 360).
func Bearing(a, b models.Coordinate) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Bounds returns the south-west and north-east corners enclosing the given
// points, skipping non-finite entries. ok is false when no valid point exists.
func Bounds(coords []models.Coordinate) (sw, ne models.Coordinate, ok bool) {
	for _, c := range coords {
		if !Valid(c) {
			continue
		}
		if !ok {
			sw, ne = c, c
			ok = true
			continue
		}
		sw.Lat = math.Min(sw.Lat, c.Lat)
		sw.Lng = math.Min(sw.Lng, c.Lng)
		ne.Lat = math.Max(ne.Lat, c.Lat)
		ne.Lng = math.Max(ne.Lng, c.Lng)
	}
	return sw, ne, ok
}

// DecodePolyline decodes an encoded polyline at 1e5 precision.
// Malformed input decodes to an empty slice, never an error.
func DecodePolyline(encoded string) []models.Coordinate {
	pairs, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil
	}
	out := make([]models.Coordinate, 0, len(pairs))
	for _, p := range pairs {
		c := models.Coordinate{Lat: p[0], Lng: p[1]}
		if !Valid(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Interpolate returns the point a fraction t of the way from a to b.
// t is clamped to [0, 1].
func Interpolate(a, b models.Coordinate, t float64) models.Coordinate {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return models.Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
