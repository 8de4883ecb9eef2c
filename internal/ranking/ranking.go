// Package ranking scores candidate hospitals for an emergency request and
// orders them best-first. Scores are ephemeral: they live on the returned
// slice for one pass and are never persisted.
package ranking

import (
	"sort"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
)

// Term weights. Each term is clamped to [0,100] before weighting.
const (
	weightDistance   = 0.4
	weightBeds       = 0.3
	weightWait       = 0.2
	weightAmbulances = 0.1
)

type ScoredHospital struct {
	models.Hospital
	Score float64 `json:"score"`
}

// Rank computes a weighted suitability score per hospital and returns the
// qualifying candidates sorted best-first. Hospitals with invalid coordinates
// or a non-positive score are excluded outright, not zero-ranked. The sort is
// stable, so ties keep input order.
func Rank(hospitals []models.Hospital, from models.Coordinate) []ScoredHospital {
	observability.RankingsTotal.Inc()

	out := make([]ScoredHospital, 0, len(hospitals))
	for _, h := range hospitals {
		if !geo.Valid(h.Loc) {
			continue
		}
		distKm := h.DistanceKm
		if distKm <= 0 && geo.Valid(from) {
			distKm = geo.Haversine(from, h.Loc) / 1000
		}
		score := weightDistance*clamp100(100-10*distKm) +
			weightBeds*clamp100(2*float64(h.AvailableBeds)) +
			weightWait*clamp100(100-2*float64(h.WaitTimeMinutes)) +
			weightAmbulances*clamp100(25*float64(h.Ambulances))
		if score <= 0 {
			continue
		}
		sh := ScoredHospital{Hospital: h, Score: score}
		sh.DistanceKm = distKm
		out = append(out, sh)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if len(out) == 0 {
		observability.NoCoverageTotal.Inc()
	}
	return out
}

// SelectBest returns the top-ranked hospital or nil when no candidate
// qualifies. A nil result means "no coverage": callers surface a manual
// emergency-call affordance instead of retrying.
func SelectBest(hospitals []models.Hospital, from models.Coordinate) *ScoredHospital {
	ranked := Rank(hospitals, from)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
