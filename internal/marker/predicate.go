package marker

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Predicate selects observations.
type Predicate func(Observation) bool

// Any matches every observation.
func Any(Observation) bool { return true }

// OfType matches observations of type t.
func OfType(t Type) Predicate {
	return func(o Observation) bool { return o.Type == t }
}

// WithID matches the marker with the given code.
func WithID(id int) Predicate {
	return func(o Observation) bool { return o.ID == id }
}

// Near matches observations whose distance is within tol of dist, inclusive.
func Near(dist, tol float64) Predicate {
	return func(o Observation) bool {
		return scalar.EqualWithinAbs(o.Distance, dist, tol)
	}
}

// Closer matches observations strictly nearer than dist.
func Closer(dist float64) Predicate {
	return func(o Observation) bool { return o.Distance < dist }
}

// NotOnWall matches anything that is not an arena marker on the given wall.
func NotOnWall(wall int) Predicate {
	return func(o Observation) bool {
		return o.Type != TypeArena || Wall(o.ID) != wall
	}
}

// All matches when every predicate matches. A nil predicate is skipped.
func All(preds ...Predicate) Predicate {
	return func(o Observation) bool {
		for _, p := range preds {
			if p != nil && !p(o) {
				return false
			}
		}
		return true
	}
}

// Filter returns the observations matching pred in their original order. A
// nil pred keeps everything. The result is never nil.
func Filter(obs []Observation, pred Predicate) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if pred == nil || pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// SortByDistance returns a copy of obs ordered nearest first.
func SortByDistance(obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Closest returns the nearest observation, or false if obs is empty.
func Closest(obs []Observation) (Observation, bool) {
	if len(obs) == 0 {
		return Observation{}, false
	}
	dists := make([]float64, len(obs))
	for i, o := range obs {
		dists[i] = o.Distance
	}
	return obs[floats.MinIdx(dists)], true
}

// First returns the first observation matching pred, or false if none does.
func First(obs []Observation, pred Predicate) (Observation, bool) {
	for _, o := range obs {
		if pred == nil || pred(o) {
			return o, true
		}
	}
	return Observation{}, false
}
