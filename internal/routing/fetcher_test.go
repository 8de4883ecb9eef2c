package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/emergency-dispatch/internal/models"
)

// fakeProvider resolves with a canned route/err, optionally blocking until
// released so tests can control resolution order.
type fakeProvider struct {
	route   *models.Route
	err     error
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (f *fakeProvider) FetchRoute(ctx context.Context, origin, dest models.Coordinate) (*models.Route, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.route, f.err
}

func twoPoint(lat float64) *models.Route {
	return &models.Route{Coordinates: []models.Coordinate{{Lat: lat, Lng: 0}, {Lat: lat, Lng: 1}}}
}

func TestGetRoutePrimaryWins(t *testing.T) {
	primary := &fakeProvider{route: twoPoint(1)}
	secondary := &fakeProvider{route: twoPoint(2)}
	f := NewFetcher(primary, secondary, nil)

	r := f.GetRoute(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 1})
	if r == nil || r.Coordinates[0].Lat != 1 {
		t.Fatalf("expected primary route, got %+v", r)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary should not be called, got %d", secondary.calls)
	}
}

func TestGetRouteFallsBackOnError(t *testing.T) {
	primary := &fakeProvider{err: errors.New("boom")}
	secondary := &fakeProvider{route: twoPoint(2)}
	f := NewFetcher(primary, secondary, nil)

	r := f.GetRoute(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 1})
	if r == nil || r.Coordinates[0].Lat != 2 {
		t.Fatalf("expected secondary route, got %+v", r)
	}
}

func TestGetRouteFallsBackOnShortPath(t *testing.T) {
	primary := &fakeProvider{route: &models.Route{Coordinates: []models.Coordinate{{Lat: 1}}}}
	secondary := &fakeProvider{route: twoPoint(2)}
	f := NewFetcher(primary, secondary, nil)

	r := f.GetRoute(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 1})
	if r == nil || r.Coordinates[0].Lat != 2 {
		t.Fatalf("expected secondary route, got %+v", r)
	}
}

func TestGetRouteBothFail(t *testing.T) {
	f := NewFetcher(&fakeProvider{err: errors.New("a")}, &fakeProvider{err: errors.New("b")}, nil)
	if r := f.GetRoute(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 1}); r != nil {
		t.Fatalf("expected nil route, got %+v", r)
	}
}

func TestGetRouteTimesOutSlowPrimary(t *testing.T) {
	primary := &fakeProvider{route: twoPoint(1), release: make(chan struct{})} // never released
	secondary := &fakeProvider{route: twoPoint(2)}
	f := NewFetcher(primary, secondary, nil)
	f.Timeout = 20 * time.Millisecond

	r := f.GetRoute(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 1})
	if r == nil || r.Coordinates[0].Lat != 2 {
		t.Fatalf("expected secondary route after primary timeout, got %+v", r)
	}
}

// slowThenFast blocks its first call until released and answers the second
// call immediately, so the older fetch resolves after the newer one.
type slowThenFast struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	started chan struct{}
}

func (p *slowThenFast) FetchRoute(ctx context.Context, origin, dest models.Coordinate) (*models.Route, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	if call == 1 {
		close(p.started)
		<-p.release
		return twoPoint(1), nil
	}
	return twoPoint(2), nil
}

func TestStaleFetchDiscarded(t *testing.T) {
	p := &slowThenFast{release: make(chan struct{}), started: make(chan struct{})}
	f := NewFetcher(p, nil, nil)
	f.Timeout = time.Second

	var wg sync.WaitGroup
	var slowResult *models.Route
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowResult = f.GetRoute(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 1})
	}()
	<-p.started

	// a newer fetch starts and resolves first
	fastResult := f.GetRoute(context.Background(), models.Coordinate{}, models.Coordinate{Lat: 2})
	if fastResult == nil || fastResult.Coordinates[0].Lat != 2 {
		t.Fatalf("expected fast route, got %+v", fastResult)
	}

	// now the older fetch resolves: it must be discarded
	close(p.release)
	wg.Wait()
	if slowResult != nil {
		t.Fatalf("stale result should be discarded, got %+v", slowResult)
	}
	if got := f.Latest(); got == nil || got.Coordinates[0].Lat != 2 {
		t.Fatalf("stored route must be the newer fetch, got %+v", got)
	}
}

func TestGetRouteRejectsInvalidCoordinates(t *testing.T) {
	primary := &fakeProvider{route: twoPoint(1)}
	f := NewFetcher(primary, nil, nil)
	bad := models.Coordinate{Lat: nan(), Lng: 0}
	if r := f.GetRoute(context.Background(), bad, models.Coordinate{Lat: 1}); r != nil {
		t.Fatalf("expected nil for invalid origin, got %+v", r)
	}
	if primary.calls != 0 {
		t.Fatal("provider should not be called for invalid input")
	}
}

func nan() float64 {
	var z float64
	return z / z
}
