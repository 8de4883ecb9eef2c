package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RankingsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "rankings_total", Help: "Total hospital ranking passes"})
	NoCoverageTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "no_coverage_total", Help: "Ranking passes where no hospital qualified"})

	RouteFetchesTotal   = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "dispatch", Name: "route_fetches_total", Help: "Route fetches by outcome"}, []string{"outcome"})
	RouteFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "route_fallbacks_total", Help: "Fetches that fell back to the secondary provider"})
	StaleRoutesTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "stale_routes_discarded_total", Help: "Route results discarded because a newer fetch superseded them"})

	MergesTotal          = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "merges_total", Help: "Remote updates merged into local state"})
	MismatchedTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "mismatched_updates_total", Help: "Remote updates discarded for an unknown request id"})
	TerminalDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "terminal_deletes_total", Help: "Records deleted on terminal status"})

	LiveFixesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "live_fixes_total", Help: "Live responder fixes applied to the tracker"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
