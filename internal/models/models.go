package models

import "time"

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Hospital is one candidate facility for a dispatch or bed reservation.
// The directory replaces the whole record on refresh; nothing mutates it in place.
type Hospital struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Loc             Coordinate `json:"loc"`
	DistanceKm      float64    `json:"distance_km"`
	Rating          float64    `json:"rating"` // 0..5
	Verified        bool       `json:"verified"`
	AvailableBeds   int        `json:"available_beds"`
	Ambulances      int        `json:"ambulances"`
	WaitTimeMinutes int        `json:"wait_time_minutes"`
	Specialties     []string   `json:"specialties,omitempty"`
}

// Route is an immutable driving path. A newer fetch supersedes it wholesale.
type Route struct {
	Coordinates    []Coordinate `json:"coordinates"`
	DurationSec    *float64     `json:"duration_sec,omitempty"`
	DistanceMeters *float64     `json:"distance_meters,omitempty"`
}

// Responder is the assigned ambulance/crew entity for a trip.
type Responder struct {
	ID           string      `json:"id"`
	Name         string      `json:"name,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	VehiclePlate string      `json:"vehicle_plate,omitempty"`
	Rating       float64     `json:"rating,omitempty"`
	Loc          *Coordinate `json:"loc,omitempty"`
	Heading      float64     `json:"heading,omitempty"`
}

type TripStatus string

const (
	TripRequested TripStatus = "requested"
	TripAccepted  TripStatus = "accepted"
	TripEnRoute   TripStatus = "en_route"
	TripArrived   TripStatus = "arrived"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Terminal reports whether the status ends the trip lifecycle.
// A terminal record is deleted, never retained with a flag.
func (s TripStatus) Terminal() bool { return s == TripCompleted || s == TripCancelled }

type BookingStatus string

const (
	BookingReserved  BookingStatus = "reserved"
	BookingReady     BookingStatus = "ready"
	BookingOccupied  BookingStatus = "occupied"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Terminal() bool { return s == BookingCompleted || s == BookingCancelled }

// Trip is one active ambulance-dispatch lifecycle, correlated by RequestID.
type Trip struct {
	RequestID    string     `json:"request_id"`
	HospitalID   string     `json:"hospital_id"`
	HospitalName string     `json:"hospital_name,omitempty"`
	Status       TripStatus `json:"status"`
	ETASeconds   *float64   `json:"eta_seconds,omitempty"`
	StartedAt    int64      `json:"started_at"` // epoch ms
	Responder    *Responder `json:"responder,omitempty"`
}

// BedBooking is one active hospital-bed reservation, correlated by RequestID.
type BedBooking struct {
	RequestID    string        `json:"request_id"`
	HospitalID   string        `json:"hospital_id"`
	HospitalName string        `json:"hospital_name,omitempty"`
	Status       BookingStatus `json:"status"`
	ETASeconds   *float64      `json:"eta_seconds,omitempty"`
	StartedAt    int64         `json:"started_at"`
	BedNumber    string        `json:"bed_number,omitempty"`
	BedType      string        `json:"bed_type,omitempty"`
}

// Update is a partial remote payload for a trip or booking. Only fields present
// in the payload overwrite local state; everything else persists. ResponderLoc
// carries a serialized "lat,lng" point and is parsed defensively.
type Update struct {
	RequestID    string   `json:"request_id"`
	Status       *string  `json:"status,omitempty"`
	ETASeconds   *float64 `json:"eta_seconds,omitempty"`
	HospitalID   *string  `json:"hospital_id,omitempty"`
	HospitalName *string  `json:"hospital_name,omitempty"`
	ResponderID  *string  `json:"responder_id,omitempty"`
	ResponderLoc *string  `json:"responder_loc,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	BedNumber    *string  `json:"bed_number,omitempty"`
	BedType      *string  `json:"bed_type,omitempty"`
}

type RequestKind string

const (
	KindAmbulance RequestKind = "ambulance"
	KindBed       RequestKind = "bed"
)

// DispatchRequest is the persisted form of a trip or bed request, used by the
// polling fallback and the cold-start reconciliation pass.
type DispatchRequest struct {
	ID         string
	UserID     string
	Kind       RequestKind
	HospitalID string
	Status     string
	Origin     Coordinate
	ETASeconds *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ResponderFix is a live position report from an ambulance, published to the
// ingest topic and consumed into the geo index and the active trip tracker.
type ResponderFix struct {
	ResponderID string     `json:"responder_id"`
	RequestID   string     `json:"request_id,omitempty"`
	Loc         Coordinate `json:"loc"`
	Heading     float64    `json:"heading"`
	Recorded    time.Time  `json:"recorded"`
}
