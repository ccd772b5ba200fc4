package search

import (
	"context"
	"math"

	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/monitoring"
)

// Criteria selects markers for a cone search. Zero fields match anything.
type Criteria struct {
	Type      marker.Type
	ID        *int
	Distance  *float64
	Tolerance float64
}

// Predicate returns the marker predicate equivalent to c.
func (c Criteria) Predicate() marker.Predicate {
	var preds []marker.Predicate
	if c.Type != 0 {
		preds = append(preds, marker.OfType(c.Type))
	}
	if c.ID != nil {
		preds = append(preds, marker.WithID(*c.ID))
	}
	if c.Distance != nil {
		preds = append(preds, marker.Near(*c.Distance, c.Tolerance))
	}
	return marker.All(preds...)
}

// ConeOptions bounds a cone search. Angles are radians relative to the
// heading the search starts from.
type ConeOptions struct {
	Criteria Criteria
	Start    float64
	Stop     float64
	Delta    float64
}

// DefaultConeOptions sweeps from 45 degrees left to 45 degrees right in
// 15 degree steps.
func DefaultConeOptions(c Criteria) ConeOptions {
	if c.Distance != nil && c.Tolerance == 0 {
		c.Tolerance = 0.5
	}
	return ConeOptions{
		Criteria: c,
		Start:    geometry.Radians(-45),
		Stop:     geometry.Radians(45),
		Delta:    geometry.Radians(15),
	}
}

// ConeSearch looks straight ahead, then at Start, then steps right by Delta
// until Stop, returning as soon as anything matches. If nothing does the robot
// is turned back to the heading it started from.
func (s *Searcher) ConeSearch(ctx context.Context, opts ConeOptions) ([]marker.Observation, error) {
	if opts.Delta <= 0 {
		return nil, ErrInvalidStep
	}
	angles := []float64{0, opts.Start}
	if span := opts.Stop - opts.Start; span > 0 {
		steps := int(math.Ceil(span/opts.Delta - angleEpsilon))
		for i := 0; i < steps; i++ {
			angles = append(angles, opts.Delta)
		}
	}
	pred := opts.Criteria.Predicate()
	monitoring.Diagf("search: cone search %.0f..%.0f deg by %.0f deg",
		geometry.Degrees(opts.Start), geometry.Degrees(opts.Stop), geometry.Degrees(opts.Delta))
	return s.sweep(ctx, angles, func() ([]marker.Observation, error) {
		return s.SeeMarkers(ctx, pred, s.Config.SeeAttempts)
	})
}

// coneAngles sweeps from maxLeft to the left to at least maxRight to the
// right of the starting heading.
func coneAngles(maxLeft, maxRight, delta float64) []float64 {
	angles := []float64{0, -maxLeft}
	steps := int(math.Floor((maxLeft+maxRight)/delta+angleEpsilon)) + 1
	for i := 0; i < steps; i++ {
		angles = append(angles, delta)
	}
	return angles
}

// ConeSearchApproxPosition sweeps from maxLeft to maxRight looking for markers
// of type t about dist metres away, give or take tol.
func (s *Searcher) ConeSearchApproxPosition(ctx context.Context, t marker.Type, dist, tol, maxLeft, maxRight, delta float64) ([]marker.Observation, error) {
	if delta <= 0 {
		return nil, ErrInvalidStep
	}
	monitoring.Diagf("search: cone search (%.0f, %.0f) deg for %s markers %.2f m +/- %.2f away",
		geometry.Degrees(maxLeft), geometry.Degrees(maxRight), t, dist, tol)
	return s.sweep(ctx, coneAngles(maxLeft, maxRight, delta), func() ([]marker.Observation, error) {
		return s.FindMarkersApproxPosition(ctx, t, dist, tol)
	})
}

// ConeSearchSpecificMarker sweeps from maxLeft to maxRight looking for the
// marker with the given code.
func (s *Searcher) ConeSearchSpecificMarker(ctx context.Context, id int, maxLeft, maxRight, delta float64) ([]marker.Observation, error) {
	if delta <= 0 {
		return nil, ErrInvalidStep
	}
	monitoring.Diagf("search: cone search (%.0f, %.0f) deg for marker %d",
		geometry.Degrees(maxLeft), geometry.Degrees(maxRight), id)
	pred := marker.WithID(id)
	return s.sweep(ctx, coneAngles(maxLeft, maxRight, delta), func() ([]marker.Observation, error) {
		return s.SeeMarkers(ctx, pred, s.Config.SeeAttempts)
	})
}

// sweep turns by each relative angle in turn and probes after every turn. On
// failure it undoes the angles actually issued, so the net rotation is zero.
func (s *Searcher) sweep(ctx context.Context, angles []float64, probe func() ([]marker.Observation, error)) ([]marker.Observation, error) {
	turned := 0.0
	for _, angle := range angles {
		issued, err := s.turn(ctx, angle)
		if err != nil {
			return nil, err
		}
		turned += issued
		found, err := probe()
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			monitoring.Diagf("search: cone found %d markers at %.0f deg", len(found), geometry.Degrees(turned))
			return found, nil
		}
		s.Clock.Sleep(s.Config.StepPause)
	}
	monitoring.Diagf("search: cone found nothing, turning back %.0f deg", geometry.Degrees(turned))
	if _, err := s.turn(ctx, -turned); err != nil {
		return nil, err
	}
	return []marker.Observation{}, nil
}
