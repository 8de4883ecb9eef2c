package geo

import (
	"math"
	"testing"

	"github.com/example/emergency-dispatch/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(models.Coordinate{}, models.Coordinate{})
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineOneDegreeLat(t *testing.T) {
	// one degree of latitude is ~111.2km
	d := Haversine(models.Coordinate{Lat: 0, Lng: 0}, models.Coordinate{Lat: 1, Lng: 0})
	if d < 110_000 || d > 112_500 {
		t.Fatalf("unexpected distance %f", d)
	}
}

func TestBearingCardinal(t *testing.T) {
	origin := models.Coordinate{Lat: 0, Lng: 0}
	cases := []struct {
		to   models.Coordinate
		want float64
	}{
		{models.Coordinate{Lat: 1, Lng: 0}, 0},
		{models.Coordinate{Lat: 0, Lng: 1}, 90},
		{models.Coordinate{Lat: -1, Lng: 0}, 180},
		{models.Coordinate{Lat: 0, Lng: -1}, 270},
	}
	for _, c := range cases {
		got := Bearing(origin, c.to)
		if math.Abs(got-c.want) > 0.01 {
			t.Fatalf("bearing to %+v: got %f want %f", c.to, got, c.want)
		}
	}
}

func TestValidRejectsNonFinite(t *testing.T) {
	if Valid(models.Coordinate{Lat: math.NaN(), Lng: 0}) {
		t.Fatal("NaN lat accepted")
	}
	if Valid(models.Coordinate{Lat: 0, Lng: math.Inf(1)}) {
		t.Fatal("Inf lng accepted")
	}
	if !Valid(models.Coordinate{Lat: 51.5, Lng: -0.1}) {
		t.Fatal("finite coordinate rejected")
	}
}

func TestDecodePolyline(t *testing.T) {
	// canonical example from the polyline format docs
	coords := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	if len(coords) != 3 {
		t.Fatalf("expected 3 points, got %d", len(coords))
	}
	if math.Abs(coords[0].Lat-38.5) > 1e-5 || math.Abs(coords[0].Lng+120.2) > 1e-5 {
		t.Fatalf("unexpected first point %+v", coords[0])
	}
}

func TestDecodePolylineMalformed(t *testing.T) {
	if got := DecodePolyline("\x01"); len(got) != 0 {
		t.Fatalf("expected empty decode, got %v", got)
	}
}

func TestBounds(t *testing.T) {
	sw, ne, ok := Bounds([]models.Coordinate{
		{Lat: 1, Lng: 4},
		{Lat: math.NaN(), Lng: 0},
		{Lat: -2, Lng: 7},
	})
	if !ok {
		t.Fatal("expected bounds")
	}
	if sw.Lat != -2 || sw.Lng != 4 || ne.Lat != 1 || ne.Lng != 7 {
		t.Fatalf("bad bounds sw=%+v ne=%+v", sw, ne)
	}
	if _, _, ok := Bounds(nil); ok {
		t.Fatal("expected no bounds for empty input")
	}
}

func TestInterpolateClamps(t *testing.T) {
	a := models.Coordinate{Lat: 0, Lng: 0}
	b := models.Coordinate{Lat: 10, Lng: 20}
	if got := Interpolate(a, b, 0.5); got.Lat != 5 || got.Lng != 10 {
		t.Fatalf("midpoint wrong: %+v", got)
	}
	if got := Interpolate(a, b, 2); got != b {
		t.Fatalf("expected clamp to b, got %+v", got)
	}
	if got := Interpolate(a, b, -1); got != a {
		t.Fatalf("expected clamp to a, got %+v", got)
	}
}
