// Package navigator turns marker sightings into drives onto cubes and back
// home. It owns the approach state machine; the actuator link and the
// searcher underneath it stay stateless about what the robot is trying to do.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/search"
	"github.com/banshee-data/cubenav/internal/timeutil"
)

// Driver is the subset of *actuator.Link the navigator uses.
type Driver interface {
	Turn(ctx context.Context, angle float64) (actuator.Outcome, error)
	Move(ctx context.Context, metres float64) (actuator.Outcome, error)
	Retry(ctx context.Context) (actuator.Outcome, error)
	SwitchState(ctx context.Context) (int, error)
	LastTurn() actuator.TurnDirection
}

// Transition is one step of an approach as told to a Recorder. Result is
// only meaningful once State is terminal.
type Transition struct {
	Target   marker.Observation
	State    ApproachState
	Result   ApproachResult
	Distance float64
	LastTurn actuator.TurnDirection
}

// Recorder is told about approach progress.
type Recorder interface {
	RecordState(t Transition)
	RecordSightings(obs []marker.Observation)
}

var (
	// ErrMarkerLost means a marker the robot had just turned or driven
	// towards can no longer be seen.
	ErrMarkerLost = errors.New("marker lost")
	// ErrWallLoop means homing came back to a wall it had already followed.
	ErrWallLoop = errors.New("homing revisited a wall")
	// ErrTooManyHops means homing followed MaxWallHops walls without
	// reaching its own corner.
	ErrTooManyHops = errors.New("homing exceeded wall hop limit")
)

// Config holds the navigator's tuning. Angles are radians.
type Config struct {
	// Zone is the starting corner, 0..3.
	Zone int
	// RetryBackoff is slept between continue attempts after a crash.
	RetryBackoff time.Duration
	// Approach holds the defaults for cube approaches.
	Approach ApproachOptions
	// SeeAttempts is the number of polls for each stationary look.
	SeeAttempts int

	// HomeDistance is the blind drive from an A cube to the home corner.
	HomeDistance float64
	// HomeMarkerTurn is how far past a home marker to aim for the corner.
	HomeMarkerTurn float64
	// WallStandoff is the distance kept from a wall while following it.
	WallStandoff float64
	// WallStep is the distance driven between looks while following a wall.
	WallStep float64
	// WallStepLimit bounds the steps along a single wall.
	WallStepLimit int
	// WallSightRange is how close a marker on the next wall must be.
	WallSightRange float64
	// MaxWallHops bounds how many walls homing follows.
	MaxWallHops int
	// AlignmentTolerance is the slack either side of an expected cube bearing.
	AlignmentTolerance float64
}

// DefaultConfig returns the values used in the 2017 competition.
func DefaultConfig() Config {
	return Config{
		RetryBackoff:       time.Second,
		Approach:           DefaultApproachOptions(),
		SeeAttempts:        3,
		HomeDistance:       3.5,
		HomeMarkerTurn:     geometry.Radians(16),
		WallStandoff:       1.5,
		WallStep:           1,
		WallStepLimit:      8,
		WallSightRange:     3,
		MaxWallHops:        3,
		AlignmentTolerance: geometry.Radians(5),
	}
}

// Navigator sequences turns, moves and looks to reach cubes.
type Navigator struct {
	Drive       Driver
	Search      *search.Searcher
	Calibration geometry.Calibration
	Clock       timeutil.Clock
	Config      Config
	Recorder    Recorder

	state ApproachState
}

// New returns a Navigator. A nil clock uses the real one.
func New(drive Driver, s *search.Searcher, cal geometry.Calibration, clock timeutil.Clock, cfg Config) *Navigator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Navigator{Drive: drive, Search: s, Calibration: cal, Clock: clock, Config: cfg}
}

// ReadZone sets Config.Zone from the DIP switch.
func (n *Navigator) ReadZone(ctx context.Context) (int, error) {
	zone, err := n.Drive.SwitchState(ctx)
	if err != nil {
		return 0, err
	}
	if zone < 0 || zone >= marker.WallCount {
		return 0, fmt.Errorf("switch reports zone %d, want 0..%d", zone, marker.WallCount-1)
	}
	monitoring.Opsf("navigator: DIP switch selects zone %d", zone)
	n.Config.Zone = zone
	return zone, nil
}

// see is a stationary look using the configured attempt count.
func (n *Navigator) see(ctx context.Context, pred marker.Predicate) ([]marker.Observation, error) {
	attempts := n.Config.SeeAttempts
	if attempts <= 0 {
		attempts = 3
	}
	found, err := n.Search.SeeMarkers(ctx, pred, attempts)
	if err == nil && n.Recorder != nil {
		n.Recorder.RecordSightings(found)
	}
	return found, err
}

// turn issues a turn and reports whether it was interrupted.
func (n *Navigator) turn(ctx context.Context, angle float64) error {
	_, err := n.Drive.Turn(ctx, angle)
	return err
}

// MoveContinue drives metres and keeps asking the controller to continue,
// RetryBackoff apart, for as long as the motion is interrupted. A transport
// failure ends it with OutcomeFailed and no error.
func (n *Navigator) MoveContinue(ctx context.Context, metres float64) (actuator.Outcome, error) {
	outcome, err := n.Drive.Move(ctx, metres)
	for attempt := 1; errors.Is(err, actuator.ErrMovementInterrupted); attempt++ {
		monitoring.Diagf("navigator: failed to move %.3f m, continuing (attempt %d)", metres, attempt)
		n.Clock.Sleep(n.Config.RetryBackoff)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return actuator.OutcomeInterrupted, ctxErr
		}
		outcome, err = n.Drive.Retry(ctx)
	}
	return outcome, err
}

// DriveToCorner drives to the arena corner left of the closest arena marker.
func (n *Navigator) DriveToCorner(ctx context.Context) error {
	obs, ok, err := n.Search.FindClosestMarker(ctx, marker.TypeArena)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no arena marker in sight: %w", ErrMarkerLost)
	}
	monitoring.Diagf("navigator: driving to corner from %s", obs)
	vec := geometry.VectorToCorner(obs.Vector(), obs.Rotation, obs.Offset)
	monitoring.Diagf("navigator: corner at %s", vec)
	if err := n.turn(ctx, vec.Angle); err != nil {
		return err
	}
	_, err = n.Drive.Move(ctx, vec.Distance)
	return err
}
