// Package progress derives user-facing trip and booking progress from an
// elapsed-time basis and an ETA. Everything here is a pure function of its
// inputs: it recomputes from StartedAt on every call, so calling it once per
// render tick accumulates no error.
package progress

import (
	"fmt"
	"math"
	"time"
)

// Status thresholds are empirical UI tuning constants, kept as named policy
// values. Nothing derives from them.
const (
	tripDispatchedBelow = 0.2
	tripEnRouteBelow    = 0.85

	bookingReservedBelow = 0.15
)

// Remaining returns the clamped-at-zero whole seconds left until the ETA, or
// nil when the ETA or start time is absent.
func Remaining(etaSeconds *float64, startedAtMs int64, now time.Time) *int {
	if etaSeconds == nil || startedAtMs <= 0 {
		return nil
	}
	elapsed := float64(now.UnixMilli()-startedAtMs) / 1000
	rem := int(math.Round(*etaSeconds - elapsed))
	if rem < 0 {
		rem = 0
	}
	return &rem
}

// Fraction returns elapsed/eta clamped to [0,1], or nil when the ETA is
// absent or non-positive. It never divides by zero.
func Fraction(etaSeconds *float64, startedAtMs int64, now time.Time) *float64 {
	if etaSeconds == nil || *etaSeconds <= 0 || startedAtMs <= 0 {
		return nil
	}
	frac := (float64(now.UnixMilli()-startedAtMs) / 1000) / *etaSeconds
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return &frac
}

// TripStatusLabel maps a progress fraction onto the ambulance-trip label shown
// to the user.
func TripStatusLabel(fraction float64) string {
	switch {
	case fraction < tripDispatchedBelow:
		return "Dispatched"
	case fraction < tripEnRouteBelow:
		return "En Route"
	case fraction < 1:
		return "Arriving"
	default:
		return "Arrived"
	}
}

// BookingStatusLabel maps a progress fraction onto the bed-booking label.
func BookingStatusLabel(fraction float64) string {
	switch {
	case fraction < bookingReservedBelow:
		return "Reserved"
	case fraction < 1:
		return "Waiting"
	default:
		return "Ready"
	}
}

// FormatRemaining renders a remaining-seconds value as "Xm Ys" (seconds
// omitted when zero) or "Ys" under a minute.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	m := seconds / 60
	s := seconds % 60
	if m > 0 {
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
