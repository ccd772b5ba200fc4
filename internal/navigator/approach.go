package navigator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/search"
)

// ApproachState is where an approach attempt has got to.
type ApproachState int

const (
	StateIdle ApproachState = iota
	StateSearching
	StateFacing
	StateApproaching
	StateCheckpointRealign
	StateArrived
	StateCrashed
	StateLost
)

func (s ApproachState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateFacing:
		return "facing"
	case StateApproaching:
		return "approaching"
	case StateCheckpointRealign:
		return "checkpoint_realign"
	case StateArrived:
		return "arrived"
	case StateCrashed:
		return "crashed"
	case StateLost:
		return "lost"
	default:
		return fmt.Sprintf("ApproachState(%d)", int(s))
	}
}

// Terminal reports whether the attempt is over.
func (s ApproachState) Terminal() bool {
	return s == StateArrived || s == StateCrashed || s == StateLost
}

// ApproachResult is how MoveToCube ended.
type ApproachResult int

const (
	ResultOK ApproachResult = iota
	// ResultCrash means a move or turn was interrupted by an obstruction.
	ResultCrash
	// ResultLost means the cube's marker vanished part way.
	ResultLost
)

func (r ApproachResult) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultCrash:
		return "crash"
	case ResultLost:
		return "lost"
	default:
		return fmt.Sprintf("ApproachResult(%d)", int(r))
	}
}

func (r ApproachResult) state() ApproachState {
	switch r {
	case ResultCrash:
		return StateCrashed
	case ResultLost:
		return StateLost
	default:
		return StateArrived
	}
}

// ApproachOptions tunes MoveToCube. Distances are metres, angles radians.
type ApproachOptions struct {
	// CheckAt is how far short of the cube to stop and realign.
	CheckAt float64
	// MaxSafeDistance is the longest approach made without a checkpoint.
	MaxSafeDistance float64
	// AngleTolerance is the residual bearing accepted at the checkpoint.
	AngleTolerance float64
	// DistanceAfter is driven beyond the cube centre.
	DistanceAfter float64
	// CrashContinue retries interrupted moves instead of reporting a crash.
	CrashContinue bool
}

// DefaultApproachOptions checks 1 m out on anything further than 3 m.
func DefaultApproachOptions() ApproachOptions {
	return ApproachOptions{
		CheckAt:         1.0,
		MaxSafeDistance: 3,
		AngleTolerance:  geometry.Radians(1),
	}
}

// State returns the state of the current or last approach.
func (n *Navigator) State() ApproachState {
	return n.state
}

func (n *Navigator) setState(target marker.Observation, s ApproachState, distance float64) {
	if n.state != s {
		monitoring.Diagf("navigator: %s -> %s (marker %d)", n.state, s, target.ID)
	}
	n.state = s
	if !s.Terminal() {
		n.record(target, s, ResultOK, distance)
	}
}

func (n *Navigator) finish(target marker.Observation, r ApproachResult, distance float64) ApproachResult {
	s := r.state()
	monitoring.Diagf("navigator: %s -> %s (marker %d)", n.state, s, target.ID)
	n.state = s
	n.record(target, s, r, distance)
	return r
}

func (n *Navigator) record(target marker.Observation, s ApproachState, r ApproachResult, distance float64) {
	if n.Recorder == nil {
		return
	}
	n.Recorder.RecordState(Transition{
		Target:   target,
		State:    s,
		Result:   r,
		Distance: distance,
		LastTurn: n.Drive.LastTurn(),
	})
}

// FaceCube turns to face the centre of the cube carrying obs and returns the
// distance to drive to end up on top of it.
func (n *Navigator) FaceCube(ctx context.Context, obs marker.Observation) (float64, error) {
	vec := geometry.CorrectAllCube(obs.Vector(), obs.Rotation, n.Calibration)
	monitoring.Diagf("navigator: facing %s, corrected to %s", obs, vec)
	if err := n.turn(ctx, vec.Angle); err != nil {
		return 0, err
	}
	return vec.Distance + n.Calibration.CubeHalfWidth, nil
}

// MoveToCube faces and drives onto the cube carrying obs. Approaches longer
// than MaxSafeDistance stop CheckAt short, re-observe the marker and turn
// until its corrected bearing is within AngleTolerance, then finish the
// drive. The realignment has no iteration limit. It stops once the bearing is
// within AngleTolerance or too small for a whole-degree turn, and otherwise
// only ends on a lost marker or ctx.
//
// Interruptions come back as ResultCrash with a nil error. The error is only
// set for camera failures and cancellation, which end the approach as lost.
func (n *Navigator) MoveToCube(ctx context.Context, obs marker.Observation, opts ApproachOptions) (ApproachResult, error) {
	n.setState(obs, StateFacing, obs.Distance)
	distance, err := n.FaceCube(ctx, obs)
	if err != nil {
		return n.crashOr(obs, err)
	}

	move := n.Drive.Move
	if opts.CrashContinue {
		move = n.MoveContinue
	}

	if distance <= opts.MaxSafeDistance {
		monitoring.Diagf("navigator: moving straight to cube, %.3f m is within %.3f m", distance, opts.MaxSafeDistance)
		n.setState(obs, StateApproaching, distance)
		if _, err := move(ctx, distance+opts.DistanceAfter); err != nil {
			return n.crashOr(obs, err)
		}
		return n.finish(obs, ResultOK, distance), nil
	}

	first := distance - n.Calibration.CubeHalfWidth - opts.CheckAt
	monitoring.Diagf("navigator: cube is %.3f m away, moving %.3f m then checking", distance, first)
	n.setState(obs, StateApproaching, distance)
	if _, err := move(ctx, first); err != nil {
		return n.crashOr(obs, err)
	}

	var vec geometry.NavVector
	for {
		if err := ctx.Err(); err != nil {
			return n.finish(obs, ResultLost, 0), err
		}
		n.setState(obs, StateCheckpointRealign, obs.Distance)
		found, err := n.Search.FindMarkers(ctx, search.DefaultFindOptions(marker.WithID(obs.ID)))
		if err != nil {
			return n.crashOr(obs, err)
		}
		if len(found) == 0 {
			monitoring.Opsf("navigator: lost sight of marker %d at the checkpoint", obs.ID)
			return n.finish(obs, ResultLost, 0), nil
		}
		obs = found[0]
		vec = geometry.CorrectAllCube(obs.Vector(), obs.Rotation, n.Calibration)
		if math.Abs(vec.Angle) <= opts.AngleTolerance {
			break
		}
		if actuator.IssuedAngle(vec.Angle) == 0 {
			monitoring.Diagf("navigator: %.2f deg off at the checkpoint, below turn resolution", geometry.Degrees(vec.Angle))
			break
		}
		monitoring.Diagf("navigator: %.2f deg off at the checkpoint, correcting", geometry.Degrees(vec.Angle))
		if err := n.turn(ctx, vec.Angle); err != nil {
			return n.crashOr(obs, err)
		}
	}

	rest := vec.Distance + n.Calibration.CubeHalfWidth
	monitoring.Diagf("navigator: moving the remaining %.3f m to the cube", rest)
	n.setState(obs, StateApproaching, rest)
	if _, err := move(ctx, rest+opts.DistanceAfter); err != nil {
		return n.crashOr(obs, err)
	}
	return n.finish(obs, ResultOK, rest), nil
}

// crashOr maps an interruption to ResultCrash. Any other error ends the
// approach as lost and is passed on.
func (n *Navigator) crashOr(obs marker.Observation, err error) (ApproachResult, error) {
	if errors.Is(err, actuator.ErrMovementInterrupted) {
		monitoring.Opsf("navigator: approach to marker %d crashed: %v", obs.ID, err)
		return n.finish(obs, ResultCrash, 0), nil
	}
	monitoring.Opsf("navigator: approach to marker %d abandoned: %v", obs.ID, err)
	return n.finish(obs, ResultLost, 0), err
}

// CollectCube searches for the nearest cube matching pred and drives onto it.
func (n *Navigator) CollectCube(ctx context.Context, pred marker.Predicate, opts ApproachOptions) (ApproachResult, marker.Observation, error) {
	n.state = StateIdle
	n.setState(marker.Observation{}, StateSearching, 0)
	found, err := n.Search.FindMarkers(ctx, search.DefaultFindOptions(marker.All(isCube, pred)))
	if err != nil {
		return n.finish(marker.Observation{}, ResultLost, 0), marker.Observation{}, err
	}
	if n.Recorder != nil {
		n.Recorder.RecordSightings(found)
	}
	target, ok := marker.Closest(found)
	if !ok {
		monitoring.Opsf("navigator: no matching cube in sight")
		return n.finish(marker.Observation{}, ResultLost, 0), marker.Observation{}, nil
	}
	monitoring.Diagf("navigator: collecting %s", target)
	result, err := n.MoveToCube(ctx, target, opts)
	return result, target, err
}

func isCube(o marker.Observation) bool { return o.Type.IsCube() }
