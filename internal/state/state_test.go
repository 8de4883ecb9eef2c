package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/emergency-dispatch/internal/models"
)

type fakeTracker struct {
	mu    sync.Mutex
	stops int
	live  []models.Coordinate
}

func (f *fakeTracker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeTracker) SetLive(c models.Coordinate, heading float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = append(f.live, c)
}

func (f *fakeTracker) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type fakeLookup struct {
	responder *models.Responder
	err       error
	calls     int
}

func (f *fakeLookup) GetResponderByID(ctx context.Context, id string) (*models.Responder, error) {
	f.calls++
	return f.responder, f.err
}

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }

func activeTrip() models.Trip {
	return models.Trip{
		RequestID:    "req-1",
		HospitalID:   "hosp-1",
		HospitalName: "X",
		Status:       models.TripAccepted,
		ETASeconds:   f64p(600),
		StartedAt:    time.Now().UnixMilli(),
	}
}

func TestMergePreservesUntouchedFields(t *testing.T) {
	r := NewReconciler()
	r.SetTrip(activeTrip())

	r.ApplyRemote(context.Background(), models.Update{
		RequestID: "req-1",
		Status:    strp("en_route"),
	})

	got, ok := r.Trip()
	if !ok {
		t.Fatal("trip missing")
	}
	if got.Status != models.TripEnRoute {
		t.Fatalf("status not merged: %s", got.Status)
	}
	if got.HospitalName != "X" {
		t.Fatalf("untouched field lost: %q", got.HospitalName)
	}
	if got.ETASeconds == nil || *got.ETASeconds != 600 {
		t.Fatalf("eta lost: %v", got.ETASeconds)
	}
}

func TestMismatchedRequestIgnored(t *testing.T) {
	r := NewReconciler()
	r.SetTrip(activeTrip())

	r.ApplyRemote(context.Background(), models.Update{
		RequestID: "abandoned-req",
		Status:    strp("cancelled"),
	})

	got, ok := r.Trip()
	if !ok || got.Status != models.TripAccepted {
		t.Fatalf("mismatched update mutated state: %+v ok=%v", got, ok)
	}
}

func TestTerminalStatusDeletesTripAndStopsTracker(t *testing.T) {
	tr := &fakeTracker{}
	r := NewReconciler()
	r.Tracker = tr
	r.SetTrip(activeTrip())

	r.ApplyRemote(context.Background(), models.Update{
		RequestID: "req-1",
		Status:    strp("completed"),
	})

	if _, ok := r.Trip(); ok {
		t.Fatal("terminal trip must be deleted, not retained")
	}
	if tr.stopCount() != 1 {
		t.Fatalf("tracker stops = %d, want 1", tr.stopCount())
	}
}

func TestDuplicateUpdatesIdempotent(t *testing.T) {
	r := NewReconciler()
	r.SetTrip(activeTrip())

	u := models.Update{RequestID: "req-1", Status: strp("en_route"), ETASeconds: f64p(300)}
	r.ApplyRemote(context.Background(), u)
	first, _ := r.Trip()
	r.ApplyRemote(context.Background(), u)
	second, _ := r.Trip()

	if first.Status != second.Status || *first.ETASeconds != *second.ETASeconds {
		t.Fatalf("duplicate delivery changed state: %+v vs %+v", first, second)
	}
}

func TestUnknownStatusIsNoChange(t *testing.T) {
	r := NewReconciler()
	trip := activeTrip()
	trip.Status = models.TripEnRoute
	r.SetTrip(trip)

	r.ApplyRemote(context.Background(), models.Update{
		RequestID: "req-1",
		Status:    strp("garbled-status"),
	})

	got, ok := r.Trip()
	if !ok {
		t.Fatal("trip missing")
	}
	if got.Status != models.TripEnRoute {
		t.Fatalf("unknown status must not change state, got %s", got.Status)
	}

	r.SetBooking(models.BedBooking{RequestID: "bed-1", Status: models.BookingReady})
	r.ApplyRemote(context.Background(), models.Update{
		RequestID: "bed-1",
		Status:    strp("garbled-status"),
	})
	booking, ok := r.Booking()
	if !ok || booking.Status != models.BookingReady {
		t.Fatalf("unknown booking status must not change state, got %+v ok=%v", booking, ok)
	}
}

func TestMalformedLocationIsNoChange(t *testing.T) {
	r := NewReconciler()
	trip := activeTrip()
	trip.Responder = &models.Responder{ID: "amb-1", Loc: &models.Coordinate{Lat: 1, Lng: 2}}
	r.SetTrip(trip)

	r.ApplyRemote(context.Background(), models.Update{
		RequestID:    "req-1",
		ResponderLoc: strp("garbage"),
	})

	got, _ := r.Trip()
	if got.Responder == nil || got.Responder.Loc == nil {
		t.Fatal("previous position nulled out")
	}
	if got.Responder.Loc.Lat != 1 || got.Responder.Loc.Lng != 2 {
		t.Fatalf("position changed: %+v", got.Responder.Loc)
	}
}

func TestValidLocationUpdatesAndFeedsTracker(t *testing.T) {
	tr := &fakeTracker{}
	r := NewReconciler()
	r.Tracker = tr
	trip := activeTrip()
	trip.Responder = &models.Responder{ID: "amb-1"}
	r.SetTrip(trip)

	r.ApplyRemote(context.Background(), models.Update{
		RequestID:    "req-1",
		ResponderLoc: strp("12.97,77.59"),
		Heading:      f64p(45),
	})

	got, _ := r.Trip()
	if got.Responder.Loc == nil || got.Responder.Loc.Lat != 12.97 {
		t.Fatalf("location not merged: %+v", got.Responder.Loc)
	}
	tr.mu.Lock()
	fed := len(tr.live)
	tr.mu.Unlock()
	if fed != 1 {
		t.Fatalf("tracker live fixes = %d, want 1", fed)
	}
}

func TestResponderHydrationBestEffort(t *testing.T) {
	lookup := &fakeLookup{responder: &models.Responder{ID: "amb-1", Name: "Unit 7", VehiclePlate: "KA-01"}}
	r := NewReconciler()
	r.Lookup = lookup
	r.SetTrip(activeTrip())

	r.ApplyRemote(context.Background(), models.Update{
		RequestID:   "req-1",
		ResponderID: strp("amb-1"),
	})

	got, _ := r.Trip()
	if got.Responder == nil || got.Responder.Name != "Unit 7" {
		t.Fatalf("responder not hydrated: %+v", got.Responder)
	}

	// lookup failure leaves the partial responder usable
	failing := &fakeLookup{err: errors.New("down")}
	r2 := NewReconciler()
	r2.Lookup = failing
	r2.SetTrip(activeTrip())
	r2.ApplyRemote(context.Background(), models.Update{RequestID: "req-1", ResponderID: strp("amb-2")})
	got2, _ := r2.Trip()
	if got2.Responder == nil || got2.Responder.ID != "amb-2" {
		t.Fatalf("partial responder lost on lookup failure: %+v", got2.Responder)
	}
}

func TestBookingMergeAndTerminal(t *testing.T) {
	r := NewReconciler()
	r.SetBooking(models.BedBooking{
		RequestID:  "bed-1",
		HospitalID: "hosp-2",
		Status:     models.BookingReserved,
		StartedAt:  time.Now().UnixMilli(),
	})

	r.ApplyRemote(context.Background(), models.Update{
		RequestID: "bed-1",
		Status:    strp("ready"),
		BedNumber: strp("B-204"),
	})
	got, ok := r.Booking()
	if !ok || got.Status != models.BookingReady || got.BedNumber != "B-204" {
		t.Fatalf("booking merge wrong: %+v ok=%v", got, ok)
	}
	if got.HospitalID != "hosp-2" {
		t.Fatal("untouched booking field lost")
	}

	r.ApplyRemote(context.Background(), models.Update{RequestID: "bed-1", Status: strp("cancelled")})
	if _, ok := r.Booking(); ok {
		t.Fatal("terminal booking must be deleted")
	}
}
