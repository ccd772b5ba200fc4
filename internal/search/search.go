// Package search finds markers when the camera's current view has nothing
// useful in it. Every search reports "not found" as an empty slice; errors are
// reserved for camera failures, interrupted turns and cancellation.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/camera"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/timeutil"
)

// Turner rotates the robot in place by angle radians, positive to the right.
// *actuator.Link satisfies it.
type Turner interface {
	Turn(ctx context.Context, angle float64) (actuator.Outcome, error)
}

// ErrInvalidStep is returned when a sweep is asked to step by a non-positive
// angle, which would never terminate.
var ErrInvalidStep = errors.New("search step angle must be positive")

// angleEpsilon absorbs rounding when stepping up to a half turn.
const angleEpsilon = 1e-9

// Config holds the pacing of a search.
type Config struct {
	// SettleDelay is slept before a stationary look so the camera can focus.
	SettleDelay time.Duration
	// StepPause is slept between cone steps that found nothing.
	StepPause time.Duration
	// SeeAttempts is the number of polls SeeMarkers makes inside sweeps.
	SeeAttempts int
	// LookAttempts is the number of polls a stationary look makes.
	LookAttempts int
}

// DefaultConfig returns the pacing used on the 2017 robot.
func DefaultConfig() Config {
	return Config{
		SettleDelay:  500 * time.Millisecond,
		StepPause:    500 * time.Millisecond,
		SeeAttempts:  3,
		LookAttempts: 5,
	}
}

// Searcher combines the camera with in-place turns.
type Searcher struct {
	Camera camera.Camera
	Turner Turner
	Clock  timeutil.Clock
	Config Config
}

// NewSearcher returns a Searcher. A nil clock uses the real one.
func NewSearcher(cam camera.Camera, turner Turner, clock timeutil.Clock, cfg Config) *Searcher {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Searcher{Camera: cam, Turner: turner, Clock: clock, Config: cfg}
}

// SeeMarkers polls the camera up to attempts times and returns the first
// non-empty set of observations matching pred. The robot does not move.
func (s *Searcher) SeeMarkers(ctx context.Context, pred marker.Predicate, attempts int) ([]marker.Observation, error) {
	if attempts <= 0 {
		return nil, fmt.Errorf("see markers: attempts must be positive, got %d", attempts)
	}
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen, err := s.Camera.Poll(ctx)
		if err != nil {
			return nil, fmt.Errorf("poll camera: %w", err)
		}
		if found := marker.Filter(seen, pred); len(found) > 0 {
			monitoring.Diagf("search: found %d markers (attempt %d)", len(found), i)
			return found, nil
		}
	}
	monitoring.Diagf("search: no markers found after %d attempts", attempts)
	return []marker.Observation{}, nil
}

// look settles the camera then polls until anything at all is seen.
func (s *Searcher) look(ctx context.Context, attempts int) ([]marker.Observation, error) {
	s.Clock.Sleep(s.Config.SettleDelay)
	return s.SeeMarkers(ctx, marker.Any, attempts)
}

// turn rounds angle to whole degrees, turns by it and returns the angle
// actually issued.
func (s *Searcher) turn(ctx context.Context, angle float64) (float64, error) {
	angle = actuator.IssuedAngle(angle)
	if angle == 0 {
		return 0, nil
	}
	if _, err := s.Turner.Turn(ctx, angle); err != nil {
		return 0, fmt.Errorf("search turn %.0f deg: %w", geometry.Degrees(angle), err)
	}
	return angle, nil
}

// FindOptions configures FindMarkers. Zero values take the defaults noted.
type FindOptions struct {
	Minimum              int     // default 1
	AttemptsPerDirection int     // default 10
	DeltaAngle           float64 // radians, required
	Predicate            marker.Predicate
}

// DefaultFindOptions steps 20 degrees at a time.
func DefaultFindOptions(pred marker.Predicate) FindOptions {
	return FindOptions{Minimum: 1, AttemptsPerDirection: 10, DeltaAngle: geometry.Radians(20), Predicate: pred}
}

// FindMarkers looks for at least Minimum matching markers. When the current
// heading shows too few it zig-zags around it: right by δ, left by δ, back to
// centre, then the same at 2δ, and so on up to a half turn. It gives up with
// whatever the last look produced, leaving the robot facing its original
// heading.
func (s *Searcher) FindMarkers(ctx context.Context, opts FindOptions) ([]marker.Observation, error) {
	if opts.DeltaAngle <= 0 {
		return nil, ErrInvalidStep
	}
	if opts.Minimum <= 0 {
		opts.Minimum = 1
	}
	if opts.AttemptsPerDirection <= 0 {
		opts.AttemptsPerDirection = 10
	}

	probe := func() ([]marker.Observation, bool, error) {
		seen, err := s.look(ctx, opts.AttemptsPerDirection)
		if err != nil {
			return nil, false, err
		}
		found := marker.Filter(seen, opts.Predicate)
		return found, len(found) >= opts.Minimum, nil
	}

	monitoring.Diagf("search: looking for %d markers straight ahead", opts.Minimum)
	found, ok, err := probe()
	if err != nil || ok {
		return found, err
	}

	for step := 1; float64(step)*opts.DeltaAngle <= math.Pi+angleEpsilon; step++ {
		angle := float64(step) * opts.DeltaAngle
		monitoring.Diagf("search: looking either side at %.0f deg", geometry.Degrees(angle))

		issued, err := s.turn(ctx, angle)
		if err != nil {
			return nil, err
		}
		if found, ok, err = probe(); err != nil || ok {
			return found, err
		}
		if _, err := s.turn(ctx, -2*issued); err != nil {
			return nil, err
		}
		if found, ok, err = probe(); err != nil || ok {
			return found, err
		}
		if _, err := s.turn(ctx, issued); err != nil {
			return nil, err
		}
	}
	monitoring.Opsf("search: markers (minimum %d) not found with %d attempts per direction",
		opts.Minimum, opts.AttemptsPerDirection)
	return found, nil
}

// FindClosestMarker finds markers of type t with FindMarkers and returns the
// nearest. ok is false when none were found.
func (s *Searcher) FindClosestMarker(ctx context.Context, t marker.Type) (obs marker.Observation, ok bool, err error) {
	monitoring.Diagf("search: finding closest %s marker", t)
	found, err := s.FindMarkers(ctx, DefaultFindOptions(marker.OfType(t)))
	if err != nil {
		return marker.Observation{}, false, err
	}
	obs, ok = marker.Closest(found)
	return obs, ok, nil
}

// FindMarkersApproxPosition looks once, without turning, for markers of type t
// about dist metres away, give or take tol.
func (s *Searcher) FindMarkersApproxPosition(ctx context.Context, t marker.Type, dist, tol float64) ([]marker.Observation, error) {
	seen, err := s.look(ctx, s.Config.LookAttempts)
	if err != nil {
		return nil, err
	}
	want := marker.All(marker.OfType(t), marker.Near(dist, tol))
	found := make([]marker.Observation, 0, len(seen))
	for _, o := range seen {
		if want(o) {
			monitoring.Diagf("search: matching %s", o)
			found = append(found, o)
		} else {
			monitoring.Diagf("search: non-matching %s", o)
		}
	}
	monitoring.Diagf("search: %d markers of type %s within %.2f of %.2f m", len(found), t, tol, dist)
	return found, nil
}

// SweepForType turns a full circle in delta steps, starting just left of the
// current heading, until a marker of type t is seen.
func (s *Searcher) SweepForType(ctx context.Context, t marker.Type, delta float64) ([]marker.Observation, error) {
	if delta <= 0 {
		return nil, ErrInvalidStep
	}
	pred := marker.OfType(t)
	seen, err := s.look(ctx, s.Config.LookAttempts)
	if err != nil {
		return nil, err
	}
	found := marker.Filter(seen, pred)
	if len(found) > 0 {
		return found, nil
	}

	if _, err := s.turn(ctx, -delta); err != nil {
		return nil, err
	}
	for turned := 0.0; turned <= 2*math.Pi+angleEpsilon; turned += delta {
		if seen, err = s.look(ctx, s.Config.LookAttempts); err != nil {
			return nil, err
		}
		if found = marker.Filter(seen, pred); len(found) > 0 {
			return found, nil
		}
		if _, err := s.turn(ctx, delta); err != nil {
			return nil, err
		}
	}
	monitoring.Opsf("search: no %s marker in a full circle", t)
	return found, nil
}
