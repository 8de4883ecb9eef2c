// Package tracker animates a position along a route in real time. Ticking is
// cooperative: each tick arms the next one-shot timer, so the engine yields
// between ticks and Stop can cancel the pending timer deterministically.
package tracker

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/example/emergency-dispatch/internal/geo"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/observability"
)

const defaultTickInterval = 250 * time.Millisecond

// Fix is the continuous output of the engine: where the marker is and which
// way it points.
type Fix struct {
	Coord   models.Coordinate `json:"coord"`
	Heading float64           `json:"heading"`
}

type engineState int

const (
	stateIdle engineState = iota
	stateRunning
	stateCompleted
	stateStopped
)

type Engine struct {
	mu        sync.Mutex
	state     engineState
	route     []models.Coordinate
	total     time.Duration
	startedAt time.Time
	timer     *time.Timer
	run       uint64 // invalidates ticks armed by an older Start

	fix    Fix
	hasFix bool
	live   *Fix

	interval time.Duration
	now      func() time.Time
	log      *slog.Logger
}

func New(interval time.Duration, log *slog.Logger) *Engine {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Engine{interval: interval, now: time.Now, log: log}
}

// Start begins animating along the route over the given total duration.
// Calling Start while already running restarts from time zero. Routes with
// fewer than two points or a non-positive duration are ignored.
func (e *Engine) Start(route *models.Route, totalDuration time.Duration) {
	if route == nil || len(route.Coordinates) < 2 || totalDuration <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelTimerLocked()
	e.run++
	e.state = stateRunning
	e.route = route.Coordinates
	e.total = totalDuration
	e.startedAt = e.now()
	e.live = nil
	e.fix = Fix{Coord: e.route[0], Heading: geo.Bearing(e.route[0], e.route[1])}
	e.hasFix = true
	e.armLocked(e.run)
}

// Stop halts the animation and cancels any pending tick before returning.
// It is idempotent; no further fixes are emitted after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelTimerLocked()
	e.run++
	e.live = nil
	if e.state == stateRunning {
		e.state = stateStopped
	}
}

// SetLive applies an externally reported responder position. Live data
// overrides the interpolated output immediately and does not reset or pause
// the timer; interpolation keeps running underneath as the fallback. The
// override holds until completion or Stop releases it.
func (e *Engine) SetLive(c models.Coordinate, heading float64) {
	if !geo.Valid(c) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.live = &Fix{Coord: c, Heading: heading}
	observability.LiveFixesTotal.Inc()
}

// Position returns the current output fix. Live data takes precedence over
// the interpolated position. ok is false before the first Start.
func (e *Engine) Position() (Fix, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.live != nil {
		return *e.live, true
	}
	return e.fix, e.hasFix
}

// Running reports whether the engine is actively ticking.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateRunning
}

// Completed reports whether the animation reached the final coordinate.
func (e *Engine) Completed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateCompleted
}

func (e *Engine) armLocked(run uint64) {
	e.timer = time.AfterFunc(e.interval, func() { e.tick(run) })
}

func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) tick(run uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if run != e.run || e.state != stateRunning {
		return
	}

	elapsed := e.now().Sub(e.startedAt)
	ratio := float64(elapsed) / float64(e.total)
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	segments := len(e.route) - 1
	segProgress := ratio * float64(segments)
	segIndex := int(math.Floor(segProgress))

	if segIndex >= segments {
		// snap to the final coordinate exactly once and stop ticking
		last := e.route[len(e.route)-1]
		prev := e.route[len(e.route)-2]
		e.fix = Fix{Coord: last, Heading: geo.Bearing(prev, last)}
		e.hasFix = true
		e.live = nil
		e.state = stateCompleted
		e.timer = nil
		if e.log != nil {
			e.log.Debug("animation completed", "elapsed_ms", elapsed.Milliseconds())
		}
		return
	}

	segRatio := segProgress - float64(segIndex)
	a, b := e.route[segIndex], e.route[segIndex+1]
	e.fix = Fix{Coord: geo.Interpolate(a, b, segRatio), Heading: geo.Bearing(a, b)}
	e.hasFix = true
	e.armLocked(run)
}
