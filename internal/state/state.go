// Package state owns the canonical in-memory trip and bed-booking records.
// A user has at most one active instance of each. Two producers feed the same
// reducer: the change subscription and the polling fallback. The merge rule
// tolerates out-of-order and duplicate delivery, since the transport offers no
// ordering guarantee. All other components receive read-only snapshots.
package state

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/emergency-dispatch/internal/directory"
	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
	"github.com/example/emergency-dispatch/internal/storage"
)

// Subscription is the handle returned at subscribe time. It must be retained
// and released on teardown.
type Subscription interface {
	Updates() <-chan models.Update
	Close() error
}

// Subscriber opens the change-subscription channel for a user's requests.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (Subscription, error)
}

// Tracker is the slice of the animation engine the reconciler drives.
type Tracker interface {
	Stop()
	SetLive(c models.Coordinate, heading float64)
}

const (
	defaultPollInterval = 10 * time.Second
	defaultStaleAfter   = 30 * time.Second
)

type Reconciler struct {
	Lookup       directory.ResponderLookup
	Store        storage.RequestStore
	Subscriber   Subscriber
	Tracker      Tracker
	PollInterval time.Duration
	StaleAfter   time.Duration
	Log          *slog.Logger

	mu      sync.Mutex
	trip    *models.Trip
	booking *models.BedBooking

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewReconciler() *Reconciler {
	return &Reconciler{done: make(chan struct{})}
}

// SetTrip installs an optimistic local trip, replacing any previous one.
func (r *Reconciler) SetTrip(t models.Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := t
	if t.Responder != nil {
		resp := *t.Responder
		cp.Responder = &resp
	}
	r.trip = &cp
}

// SetBooking installs an optimistic local bed booking.
func (r *Reconciler) SetBooking(b models.BedBooking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := b
	r.booking = &cp
}

// Trip returns a read-only snapshot of the active trip.
func (r *Reconciler) Trip() (models.Trip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trip == nil {
		return models.Trip{}, false
	}
	cp := *r.trip
	if r.trip.Responder != nil {
		resp := *r.trip.Responder
		cp.Responder = &resp
	}
	return cp, true
}

// Booking returns a read-only snapshot of the active bed booking.
func (r *Reconciler) Booking() (models.BedBooking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.booking == nil {
		return models.BedBooking{}, false
	}
	return *r.booking, true
}

// ApplyRemote merges an asynchronous update into whichever record it
// correlates with. An update for a request id we do not hold is discarded,
// not logged as an error: it belongs to a request the user already abandoned.
func (r *Reconciler) ApplyRemote(ctx context.Context, u models.Update) {
	r.mu.Lock()
	var hydrateID string
	switch {
	case r.trip != nil && r.trip.RequestID == u.RequestID:
		hydrateID = r.mergeTripLocked(u)
		observability.MergesTotal.Inc()
	case r.booking != nil && r.booking.RequestID == u.RequestID:
		r.mergeBookingLocked(u)
		observability.MergesTotal.Inc()
	default:
		observability.MismatchedTotal.Inc()
	}
	r.mu.Unlock()

	if hydrateID != "" {
		r.hydrateResponder(ctx, u.RequestID, hydrateID)
	}
}

// mergeTripLocked merges field-by-field: only fields present in the payload
// overwrite. It returns a responder id to hydrate, if the assignment changed.
func (r *Reconciler) mergeTripLocked(u models.Update) (hydrateID string) {
	t := r.trip
	if u.Status != nil {
		// an unrecognized status is malformed data, never a state change
		if st, ok := normalizeTripStatus(*u.Status); ok {
			if st.Terminal() {
				r.deleteTripLocked()
				return ""
			}
			t.Status = st
		}
	}
	if u.ETASeconds != nil {
		v := *u.ETASeconds
		t.ETASeconds = &v
	}
	if u.HospitalID != nil {
		t.HospitalID = *u.HospitalID
	}
	if u.HospitalName != nil {
		t.HospitalName = *u.HospitalName
	}
	if u.ResponderID != nil && *u.ResponderID != "" {
		if t.Responder == nil || t.Responder.ID != *u.ResponderID {
			t.Responder = &models.Responder{ID: *u.ResponderID}
			hydrateID = *u.ResponderID
		}
	}
	if u.ResponderLoc != nil {
		// a malformed point yields "no change", never a nil-ed position
		if c := parsePoint(*u.ResponderLoc); c != nil {
			if t.Responder == nil {
				t.Responder = &models.Responder{}
			}
			t.Responder.Loc = c
			if r.Tracker != nil {
				heading := t.Responder.Heading
				if u.Heading != nil {
					heading = *u.Heading
				}
				r.Tracker.SetLive(*c, heading)
			}
		}
	}
	if u.Heading != nil && t.Responder != nil {
		t.Responder.Heading = *u.Heading
	}
	return hydrateID
}

func (r *Reconciler) mergeBookingLocked(u models.Update) {
	b := r.booking
	if u.Status != nil {
		if st, ok := normalizeBookingStatus(*u.Status); ok {
			if st.Terminal() {
				r.booking = nil
				observability.TerminalDeletesTotal.Inc()
				return
			}
			b.Status = st
		}
	}
	if u.ETASeconds != nil {
		v := *u.ETASeconds
		b.ETASeconds = &v
	}
	if u.HospitalID != nil {
		b.HospitalID = *u.HospitalID
	}
	if u.HospitalName != nil {
		b.HospitalName = *u.HospitalName
	}
	if u.BedNumber != nil {
		b.BedNumber = *u.BedNumber
	}
	if u.BedType != nil {
		b.BedType = *u.BedType
	}
}

func (r *Reconciler) deleteTripLocked() {
	r.trip = nil
	observability.TerminalDeletesTotal.Inc()
	if r.Tracker != nil {
		r.Tracker.Stop()
	}
}

// hydrateResponder enriches the assigned responder with detail fields the
// update payload lacks. Best-effort: failures are swallowed and retried on
// the next assignment change.
func (r *Reconciler) hydrateResponder(ctx context.Context, requestID, responderID string) {
	if r.Lookup == nil {
		return
	}
	detail, err := r.Lookup.GetResponderByID(ctx, responderID)
	if err != nil || detail == nil {
		if err != nil && r.Log != nil {
			r.Log.Debug("responder lookup failed", "responder_id", responderID, "error", err)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.trip
	if t == nil || t.RequestID != requestID || t.Responder == nil || t.Responder.ID != responderID {
		return
	}
	loc, heading := t.Responder.Loc, t.Responder.Heading
	cp := *detail
	t.Responder = &cp
	// fields learned from updates win over the stale directory copy
	if loc != nil {
		t.Responder.Loc = loc
		t.Responder.Heading = heading
	}
}

// Resume performs the cold-start reconciliation pass: adopt the most recent
// non-terminal ambulance and bed requests as the initial records, then start
// listening for updates. Adopting first avoids a window where a resumed
// session shows no active trip despite one existing server-side.
func (r *Reconciler) Resume(ctx context.Context, userID string) error {
	if r.Store != nil {
		reqs, err := r.Store.ListActive(ctx, userID)
		if err != nil {
			if r.Log != nil {
				r.Log.Warn("cold-start list failed", "error", err)
			}
		} else {
			r.adopt(reqs)
		}
	}

	var sub Subscription
	if r.Subscriber != nil {
		s, err := r.Subscriber.Subscribe(ctx, userID)
		if err != nil {
			if r.Log != nil {
				r.Log.Warn("subscription unavailable, polling only", "error", err)
			}
		} else {
			sub = s
		}
	}

	r.wg.Add(1)
	go r.loop(ctx, userID, sub)
	return nil
}

// adopt installs the most recent request per kind. ListActive returns most
// recent first, so the first of each kind wins.
func (r *Reconciler) adopt(reqs []models.DispatchRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range reqs {
		switch q.Kind {
		case models.KindAmbulance:
			if r.trip == nil {
				st, ok := normalizeTripStatus(q.Status)
				if !ok {
					st = models.TripRequested
				}
				r.trip = &models.Trip{
					RequestID:  q.ID,
					HospitalID: q.HospitalID,
					Status:     st,
					ETASeconds: copyFloat(q.ETASeconds),
					StartedAt:  q.CreatedAt.UnixMilli(),
				}
			}
		case models.KindBed:
			if r.booking == nil {
				st, ok := normalizeBookingStatus(q.Status)
				if !ok {
					st = models.BookingReserved
				}
				r.booking = &models.BedBooking{
					RequestID:  q.ID,
					HospitalID: q.HospitalID,
					Status:     st,
					ETASeconds: copyFloat(q.ETASeconds),
					StartedAt:  q.CreatedAt.UnixMilli(),
				}
			}
		}
	}
}

// loop drains the subscription and falls back to polling when the channel is
// unavailable or silent past StaleAfter.
func (r *Reconciler) loop(ctx context.Context, userID string, sub Subscription) {
	defer r.wg.Done()
	if sub != nil {
		defer sub.Close()
	}

	interval := r.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	stale := r.StaleAfter
	if stale <= 0 {
		stale = defaultStaleAfter
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var updates <-chan models.Update
	if sub != nil {
		updates = sub.Updates()
	}
	lastEvent := time.Now()

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			lastEvent = time.Now()
			r.ApplyRemote(ctx, u)
		case <-ticker.C:
			if updates != nil && time.Since(lastEvent) < stale {
				continue
			}
			r.poll(ctx, userID)
		}
	}
}

func (r *Reconciler) poll(ctx context.Context, userID string) {
	if r.Store == nil {
		return
	}
	reqs, err := r.Store.ListActive(ctx, userID)
	if err != nil {
		if r.Log != nil {
			r.Log.Warn("poll failed", "error", err)
		}
		return
	}
	for _, q := range reqs {
		q := q
		u := models.Update{
			RequestID:  q.ID,
			Status:     &q.Status,
			ETASeconds: q.ETASeconds,
		}
		if q.HospitalID != "" {
			u.HospitalID = &q.HospitalID
		}
		r.ApplyRemote(ctx, u)
	}
}

// Close releases the subscription handle and stops the polling loop. It
// blocks until the loop goroutine has exited.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// parsePoint parses a serialized "lat,lng" point defensively. Anything
// malformed or non-finite returns nil.
func parsePoint(s string) *models.Coordinate {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return nil
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	c := models.Coordinate{Lat: lat, Lng: lng}
	if !geo.Valid(c) {
		return nil
	}
	return &c
}

// normalizeTripStatus folds the transport's status aliases onto the canonical
// set; "dispatched" and "accepted" are the same state. A string outside the
// set is unknown, not a state: ok is false and the caller keeps what it has.
func normalizeTripStatus(s string) (models.TripStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "requested", "pending":
		return models.TripRequested, true
	case "dispatched", "accepted":
		return models.TripAccepted, true
	case "en_route", "enroute":
		return models.TripEnRoute, true
	case "arrived":
		return models.TripArrived, true
	case "completed":
		return models.TripCompleted, true
	case "cancelled", "canceled":
		return models.TripCancelled, true
	default:
		return "", false
	}
}

// normalizeBookingStatus mirrors normalizeTripStatus for bed bookings.
func normalizeBookingStatus(s string) (models.BookingStatus, bool) {
	switch st := models.BookingStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case models.BookingReserved, models.BookingReady, models.BookingOccupied,
		models.BookingCompleted, models.BookingCancelled:
		return st, true
	default:
		return "", false
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
