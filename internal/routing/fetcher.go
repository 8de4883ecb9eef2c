// Package routing acquires driving routes with provider fallback and
// last-caller-wins staleness control. The underlying fetch primitive is not
// always abortable, so cancellation is a generation counter: a result arriving
// for an older generation is discarded instead of overwriting a route computed
// for a more recent destination.
package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
)

type Fetcher struct {
	Primary   Provider
	Secondary Provider
	Timeout   time.Duration

	mu    sync.Mutex
	gen   uint64
	route *models.Route

	log *slog.Logger
}

func NewFetcher(primary, secondary Provider, log *slog.Logger) *Fetcher {
	return &Fetcher{Primary: primary, Secondary: secondary, Timeout: ProviderTimeout, log: log}
}

// GetRoute fetches a route from the primary provider, falling back to the
// secondary on error, timeout, or a path shorter than two points. Both
// providers run under the same bounded timeout. If both fail it returns nil:
// callers render no route rather than a stale or partial one.
//
// Each call takes a fetch generation; if a newer call starts before this one
// resolves, this one's result is discarded on arrival and nil is returned.
func (f *Fetcher) GetRoute(ctx context.Context, origin, dest models.Coordinate) *models.Route {
	if !geo.Valid(origin) || !geo.Valid(dest) {
		return nil
	}

	f.mu.Lock()
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	route := f.fetch(ctx, origin, dest)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		observability.StaleRoutesTotal.Inc()
		if f.log != nil {
			f.log.Debug("stale route discarded", "generation", gen, "latest", f.gen)
		}
		return nil
	}
	f.route = route
	return route
}

// Latest returns the route stored by the most recent winning fetch, or nil.
func (f *Fetcher) Latest() *models.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.route
}

func (f *Fetcher) fetch(ctx context.Context, origin, dest models.Coordinate) *models.Route {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = ProviderTimeout
	}

	if r := f.tryProvider(ctx, f.Primary, origin, dest, timeout); r != nil {
		observability.RouteFetchesTotal.WithLabelValues("primary").Inc()
		return r
	}
	observability.RouteFallbacksTotal.Inc()
	if r := f.tryProvider(ctx, f.Secondary, origin, dest, timeout); r != nil {
		observability.RouteFetchesTotal.WithLabelValues("secondary").Inc()
		return r
	}
	observability.RouteFetchesTotal.WithLabelValues("none").Inc()
	if f.log != nil {
		f.log.Warn("all route providers failed", "origin", origin, "dest", dest)
	}
	return nil
}

func (f *Fetcher) tryProvider(ctx context.Context, p Provider, origin, dest models.Coordinate, timeout time.Duration) *models.Route {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	route, err := p.FetchRoute(ctx, origin, dest)
	if err != nil {
		if f.log != nil {
			f.log.Debug("route provider error", "error", err)
		}
		return nil
	}
	// fewer than two coordinates is not a drivable path
	if route == nil || len(route.Coordinates) < 2 {
		return nil
	}
	return route
}
