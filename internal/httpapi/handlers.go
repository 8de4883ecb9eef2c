package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/progress"
	"github.com/example/emergency-dispatch/internal/ranking"
)

type dispatchRequest struct {
	UserID string            `json:"user_id"`
	Origin models.Coordinate `json:"origin"`
}

type reserveBedRequest struct {
	UserID  string            `json:"user_id"`
	Origin  models.Coordinate `json:"origin"`
	BedType string            `json:"bed_type"`
}

func (s *Server) handleDispatchRequest(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || !geo.Valid(req.Origin) {
		writeError(w, http.StatusBadRequest, "user_id and a finite origin are required")
		return
	}

	hospitals, err := s.Directory.DiscoverNearby(r.Context(), req.Origin.Lat, req.Origin.Lng, s.cfg.DiscoverRadiusM, s.cfg.RankTopN)
	if err != nil {
		s.logger.Error("hospital discovery failed", "error", err)
		writeError(w, http.StatusBadGateway, "hospital directory unavailable")
		return
	}
	best := ranking.SelectBest(hospitals, req.Origin)
	if best == nil {
		// no coverage is a degraded-but-safe state, never retried automatically
		writeError(w, http.StatusServiceUnavailable, "no hospitals in coverage; call emergency services directly")
		return
	}

	requestID := newID()
	now := time.Now()

	// route runs responder-side: hospital toward the requester
	route := s.Fetcher.GetRoute(r.Context(), best.Loc, req.Origin)

	trip := models.Trip{
		RequestID:    requestID,
		HospitalID:   best.ID,
		HospitalName: best.Name,
		Status:       models.TripRequested,
		StartedAt:    now.UnixMilli(),
	}
	if route != nil && route.DurationSec != nil {
		eta := *route.DurationSec
		trip.ETASeconds = &eta
	}
	s.Reconciler.SetTrip(trip)

	if route != nil && trip.ETASeconds != nil && *trip.ETASeconds > 0 {
		s.Tracker.Start(route, time.Duration(*trip.ETASeconds*float64(time.Second)))
	}

	stored := models.DispatchRequest{
		ID:         requestID,
		UserID:     req.UserID,
		Kind:       models.KindAmbulance,
		HospitalID: best.ID,
		Status:     string(models.TripRequested),
		Origin:     req.Origin,
		ETASeconds: trip.ETASeconds,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.SaveRequest(r.Context(), &stored); err != nil {
		s.logger.Error("request save failed", "request_id", requestID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id": requestID,
		"hospital":   best,
		"route":      route,
		"trip":       trip,
	})
}

func (s *Server) handleReserveBed(w http.ResponseWriter, r *http.Request) {
	var req reserveBedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" || !geo.Valid(req.Origin) {
		writeError(w, http.StatusBadRequest, "user_id and a finite origin are required")
		return
	}

	hospitals, err := s.Directory.DiscoverNearby(r.Context(), req.Origin.Lat, req.Origin.Lng, s.cfg.DiscoverRadiusM, s.cfg.RankTopN)
	if err != nil {
		s.logger.Error("hospital discovery failed", "error", err)
		writeError(w, http.StatusBadGateway, "hospital directory unavailable")
		return
	}
	best := ranking.SelectBest(hospitals, req.Origin)
	if best == nil {
		writeError(w, http.StatusServiceUnavailable, "no hospitals in coverage; call emergency services directly")
		return
	}

	requestID := newID()
	now := time.Now()
	booking := models.BedBooking{
		RequestID:    requestID,
		HospitalID:   best.ID,
		HospitalName: best.Name,
		Status:       models.BookingReserved,
		StartedAt:    now.UnixMilli(),
		BedType:      req.BedType,
	}
	s.Reconciler.SetBooking(booking)

	stored := models.DispatchRequest{
		ID:         requestID,
		UserID:     req.UserID,
		Kind:       models.KindBed,
		HospitalID: best.ID,
		Status:     string(models.BookingReserved),
		Origin:     req.Origin,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Store.SaveRequest(r.Context(), &stored); err != nil {
		s.logger.Error("request save failed", "request_id", requestID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id": requestID,
		"hospital":   best,
		"booking":    booking,
	})
}

type resumeRequest struct {
	UserID string `json:"user_id"`
}

// handleResumeSession runs the cold-start reconciliation pass for a returning
// user: adopt their active requests and start the update loop. Idempotent so
// a reconnecting client can call it freely.
func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if s.resumed.CompareAndSwap(false, true) {
		// the loop must outlive this request; Close tears it down
		if err := s.Reconciler.Resume(context.Background(), req.UserID); err != nil {
			s.resumed.Store(false)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	resp := map[string]any{}
	if trip, ok := s.Reconciler.Trip(); ok {
		resp["trip"] = trip
	}
	if booking, ok := s.Reconciler.Booking(); ok {
		resp["booking"] = booking
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentTrip(w http.ResponseWriter, r *http.Request) {
	trip, ok := s.Reconciler.Trip()
	if !ok {
		writeError(w, http.StatusNotFound, "no active trip")
		return
	}

	now := time.Now()
	resp := map[string]any{"trip": trip}
	if frac := progress.Fraction(trip.ETASeconds, trip.StartedAt, now); frac != nil {
		resp["progress"] = *frac
		resp["status_label"] = progress.TripStatusLabel(*frac)
	}
	if rem := progress.Remaining(trip.ETASeconds, trip.StartedAt, now); rem != nil {
		resp["remaining_seconds"] = *rem
		resp["remaining_text"] = progress.FormatRemaining(*rem)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := s.Reconciler.Booking()
	if !ok {
		writeError(w, http.StatusNotFound, "no active booking")
		return
	}

	now := time.Now()
	resp := map[string]any{"booking": booking}
	if frac := progress.Fraction(booking.ETASeconds, booking.StartedAt, now); frac != nil {
		resp["progress"] = *frac
		resp["status_label"] = progress.BookingStatusLabel(*frac)
	}
	if rem := progress.Remaining(booking.ETASeconds, booking.StartedAt, now); rem != nil {
		resp["remaining_seconds"] = *rem
		resp["remaining_text"] = progress.FormatRemaining(*rem)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	fix, ok := s.Tracker.Position()
	if !ok {
		writeError(w, http.StatusNotFound, "no position yet")
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

func (s *Server) handleResponderLocation(w http.ResponseWriter, r *http.Request) {
	var fix models.ResponderFix
	if err := json.NewDecoder(r.Body).Decode(&fix); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !geo.Valid(fix.Loc) {
		// non-finite coordinates are treated as absent, not an error
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if fix.Recorded.IsZero() {
		fix.Recorded = time.Now()
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishFix(fix); err != nil {
			s.logger.Warn("fix publish failed", "responder_id", fix.ResponderID, "error", err)
		}
	}

	// feed the active trip directly so the live marker moves without waiting
	// for the consumer round-trip
	if trip, ok := s.Reconciler.Trip(); ok && fix.RequestID != "" && trip.RequestID == fix.RequestID {
		loc := formatPoint(fix.Loc)
		heading := fix.Heading
		s.Reconciler.ApplyRemote(r.Context(), models.Update{
			RequestID:    fix.RequestID,
			ResponderLoc: &loc,
			Heading:      &heading,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["user_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own HTTP error response
		s.logger.Warn("ws upgrade failed", "user_id", id, "error", err)
		return
	}
	s.Hub.Add(id, conn)
}

func formatPoint(c models.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
