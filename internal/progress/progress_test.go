package progress

import (
	"testing"
	"time"
)

func TestFractionClamp(t *testing.T) {
	eta := 600.0
	t0 := time.UnixMilli(1_700_000_000_000)
	startedAt := t0.UnixMilli()

	cases := []struct {
		now  time.Time
		want float64
	}{
		{t0, 0},
		{t0.Add(600 * time.Second), 1},
		{t0.Add(900 * time.Second), 1}, // no overshoot
	}
	for _, c := range cases {
		got := Fraction(&eta, startedAt, c.now)
		if got == nil || *got != c.want {
			t.Fatalf("at %v: got %v want %f", c.now, got, c.want)
		}
	}
}

func TestFractionAbsentInputs(t *testing.T) {
	if got := Fraction(nil, 1, time.Now()); got != nil {
		t.Fatalf("nil eta: got %v", got)
	}
	zero := 0.0
	if got := Fraction(&zero, 1, time.Now()); got != nil {
		t.Fatalf("zero eta: got %v", got)
	}
	eta := 60.0
	if got := Fraction(&eta, 0, time.Now()); got != nil {
		t.Fatalf("absent start: got %v", got)
	}
}

func TestRemaining(t *testing.T) {
	eta := 90.0
	t0 := time.UnixMilli(1_700_000_000_000)

	got := Remaining(&eta, t0.UnixMilli(), t0.Add(30*time.Second))
	if got == nil || *got != 60 {
		t.Fatalf("got %v want 60", got)
	}
	got = Remaining(&eta, t0.UnixMilli(), t0.Add(10*time.Minute))
	if got == nil || *got != 0 {
		t.Fatalf("overdue should clamp to 0, got %v", got)
	}
	if got := Remaining(nil, t0.UnixMilli(), t0); got != nil {
		t.Fatalf("nil eta: got %v", got)
	}
}

func TestTripStatusLabels(t *testing.T) {
	cases := []struct {
		frac float64
		want string
	}{
		{0.1, "Dispatched"},
		{0.5, "En Route"},
		{0.9, "Arriving"},
		{1, "Arrived"},
	}
	for _, c := range cases {
		if got := TripStatusLabel(c.frac); got != c.want {
			t.Fatalf("frac %f: got %q want %q", c.frac, got, c.want)
		}
	}
}

func TestBookingStatusLabels(t *testing.T) {
	cases := []struct {
		frac float64
		want string
	}{
		{0.1, "Reserved"},
		{0.5, "Waiting"},
		{1, "Ready"},
	}
	for _, c := range cases {
		if got := BookingStatusLabel(c.frac); got != c.want {
			t.Fatalf("frac %f: got %q want %q", c.frac, got, c.want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		sec  int
		want string
	}{
		{45, "45s"},
		{60, "1m"},
		{125, "2m 5s"},
		{0, "0s"},
		{-5, "0s"},
	}
	for _, c := range cases {
		if got := FormatRemaining(c.sec); got != c.want {
			t.Fatalf("%d: got %q want %q", c.sec, got, c.want)
		}
	}
}
