package navigator

import (
	"context"
	"fmt"
	"math"

	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/monitoring"
)

// HomeFromA gets home from our A cube while facing roughly home. With either
// home marker in sight it aims past it into the corner; with only other
// teams' corner markers in sight it falls back to following the walls;
// otherwise it drives blind.
func (n *Navigator) HomeFromA(ctx context.Context) error {
	zone := n.Config.Zone
	home := marker.CornerMarkers(zone)
	seen, err := n.see(ctx, marker.OfType(marker.TypeArena))
	if err != nil {
		return err
	}
	seen = marker.SortByDistance(seen)
	monitoring.Diagf("navigator: %d arena markers in sight from A", len(seen))

	if m, ok := marker.First(seen, marker.WithID(home.Left)); ok {
		monitoring.Diagf("navigator: home left marker %d in sight", m.ID)
		if err := n.turn(ctx, m.Bearing+n.Config.HomeMarkerTurn); err != nil {
			return err
		}
		_, err := n.Drive.Move(ctx, n.Config.HomeDistance)
		return err
	}
	if m, ok := marker.First(seen, marker.WithID(home.Right)); ok {
		monitoring.Diagf("navigator: home right marker %d in sight", m.ID)
		if err := n.turn(ctx, m.Bearing-n.Config.HomeMarkerTurn); err != nil {
			return err
		}
		_, err := n.Drive.Move(ctx, n.Config.HomeDistance)
		return err
	}

	var foreign []int
	for _, o := range seen {
		if marker.IsForeignCorner(zone, o.ID) {
			foreign = append(foreign, o.ID)
		}
	}
	if len(foreign) > 0 {
		monitoring.Opsf("navigator: other teams' markers %v in sight, probably facing the wrong corner", foreign)
		return n.HomeFromOtherA(ctx)
	}
	monitoring.Opsf("navigator: no useful arena markers in sight, driving blind")
	_, err = n.Drive.Move(ctx, n.Config.HomeDistance)
	return err
}

// onWalls reports whether wall is one of walls, modulo the wall count.
func onWalls(wall int, walls ...int) bool {
	for _, w := range walls {
		if wall == ((w%marker.WallCount)+marker.WallCount)%marker.WallCount {
			return true
		}
	}
	return false
}

// HomeFromOtherA follows the arena walls home from somewhere that is not our
// corner. Each hop fixes on an arena marker, stands off its wall, turns along
// the wall towards home and drives until a marker on the next wall is close.
// It stops once the wall it followed leads into our corner, after
// MaxWallHops walls, or if it would follow a wall twice.
func (n *Navigator) HomeFromOtherA(ctx context.Context) error {
	zone := n.Config.Zone
	visited := make(map[int]bool)

	var target *marker.Observation
	for hop := 0; hop < n.Config.MaxWallHops; hop++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if target == nil {
			seen, err := n.see(ctx, marker.OfType(marker.TypeArena))
			if err != nil {
				return err
			}
			closest, ok := marker.Closest(seen)
			if !ok {
				return fmt.Errorf("no arena markers in sight: %w", ErrMarkerLost)
			}
			monitoring.Diagf("navigator: fixating on marker %d, %.2f m away", closest.ID, closest.Distance)
			target = &closest
		}

		wall := marker.Wall(target.ID)
		if visited[wall] {
			return fmt.Errorf("wall %d: %w", wall, ErrWallLoop)
		}
		visited[wall] = true
		if err := n.standOffWall(ctx, *target); err != nil {
			return err
		}

		next, err := n.followWall(ctx, wall)
		if err != nil {
			return err
		}
		if onWalls(wall, zone, zone-1) {
			return n.checkHome(ctx)
		}
		monitoring.Opsf("navigator: wall %d does not lead home, following the next one", wall)
		closest, _ := marker.Closest(next)
		target = &closest
	}
	return fmt.Errorf("after %d walls: %w", n.Config.MaxWallHops, ErrTooManyHops)
}

// standOffWall faces target, closes to WallStandoff from it, then moves to
// WallStandoff from its wall and turns along the wall towards home.
func (n *Navigator) standOffWall(ctx context.Context, target marker.Observation) error {
	standoff := n.Config.WallStandoff
	if err := n.turn(ctx, target.Bearing); err != nil {
		return err
	}
	m, err := n.reacquire(ctx, target.ID, "turned to face it")
	if err != nil {
		return err
	}
	wall := marker.Wall(m.ID)

	if m.Distance > standoff {
		if _, err := n.MoveContinue(ctx, m.Distance-standoff); err != nil {
			return err
		}
	} else {
		monitoring.Diagf("navigator: already closer than %.2f m to marker %d (%.2f m)", standoff, m.ID, m.Distance)
	}
	if m, err = n.reacquire(ctx, m.ID, "closed on it"); err != nil {
		return err
	}

	// Sidestep along the chord of a circle of radius standoff round the
	// marker, ending square on to the wall.
	beta := m.Rotation
	dist := math.Sqrt(2 * standoff * standoff * (1 - math.Cos(beta)))
	var angle float64
	if beta < 0 {
		angle = (math.Pi - beta) / 2
	} else {
		angle = (-math.Pi - beta) / 2
	}
	monitoring.Diagf("navigator: squaring up to wall %d, turn %.1f deg, move %.3f m",
		wall, geometry.Degrees(angle), dist)
	if err := n.turn(ctx, angle); err != nil {
		return err
	}
	if _, err := n.MoveContinue(ctx, dist); err != nil {
		return err
	}
	if err := n.turn(ctx, -angle); err != nil {
		return err
	}
	if m, err = n.reacquire(ctx, m.ID, "squared up to it"); err != nil {
		return err
	}

	if z := n.Config.Zone; onWalls(wall, z, z+1) {
		return n.turn(ctx, math.Pi/2+m.Rotation)
	}
	return n.turn(ctx, math.Pi/2-m.Rotation)
}

// followWall drives along wall until a close arena marker on another wall is
// in sight, and returns those markers.
func (n *Navigator) followWall(ctx context.Context, wall int) ([]marker.Observation, error) {
	ahead := marker.All(
		marker.OfType(marker.TypeArena),
		marker.Closer(n.Config.WallSightRange),
		marker.NotOnWall(wall),
	)
	for step := 0; ; step++ {
		seen, err := n.see(ctx, ahead)
		if err != nil {
			return nil, err
		}
		if len(seen) > 0 {
			monitoring.Diagf("navigator: %d markers on the next wall in sight", len(seen))
			return seen, nil
		}
		if step >= n.Config.WallStepLimit {
			return nil, fmt.Errorf("no marker ahead after %d steps along wall %d: %w", step, wall, ErrMarkerLost)
		}
		monitoring.Diagf("navigator: nothing close on the next wall, moving on")
		if _, err := n.MoveContinue(ctx, n.Config.WallStep); err != nil {
			return nil, err
		}
		n.Clock.Sleep(n.Config.RetryBackoff)
	}
}

func (n *Navigator) reacquire(ctx context.Context, id int, after string) (marker.Observation, error) {
	seen, err := n.see(ctx, marker.WithID(id))
	if err != nil {
		return marker.Observation{}, err
	}
	if len(seen) == 0 {
		monitoring.Opsf("navigator: %s and now marker %d is out of sight", after, id)
		return marker.Observation{}, fmt.Errorf("marker %d: %w", id, ErrMarkerLost)
	}
	return seen[0], nil
}

// checkHome logs whether our corner's markers are in sight.
func (n *Navigator) checkHome(ctx context.Context) error {
	seen, err := n.see(ctx, marker.OfType(marker.TypeArena))
	if err != nil {
		return err
	}
	ours := marker.CornerCodes(n.Config.Zone)
	var home []int
	for _, o := range seen {
		if ours[o.ID] {
			home = append(home, o.ID)
		}
	}
	if len(home) > 0 {
		monitoring.Diagf("navigator: facing our corner, markers %v in sight", home)
	} else {
		monitoring.Opsf("navigator: should be facing our corner but none of its markers are in sight (%d others)", len(seen))
	}
	return nil
}

// Alignment reports which start-position cubes sit where expected.
type Alignment struct {
	RightA bool
	LeftA  bool
	B      bool
	C      bool
}

// Expected bearings of the cubes seen from the start position.
var (
	expectedRightA = geometry.Radians(-70)
	expectedLeftA  = geometry.Radians(15)
	expectedB      = geometry.Radians(18)
	expectedC      = 0.0
)

// CheckCubeAlignment looks ahead and checks each visible cube's bearing
// against where it should be from the start position.
func (n *Navigator) CheckCubeAlignment(ctx context.Context) (Alignment, error) {
	var a Alignment
	seen, err := n.see(ctx, marker.Any)
	if err != nil {
		return a, err
	}
	within := func(o marker.Observation, want float64) bool {
		ok := math.Abs(o.Bearing-want) < n.Config.AlignmentTolerance
		if !ok {
			monitoring.Diagf("navigator: %s marker %d out of position at %.1f deg",
				o.Type, o.ID, geometry.Degrees(o.Bearing))
		}
		return ok
	}
	for _, o := range seen {
		switch o.Type {
		case marker.TypeCubeA:
			if o.Bearing <= 0 {
				a.RightA = within(o, expectedRightA)
			} else {
				a.LeftA = within(o, expectedLeftA)
			}
		case marker.TypeCubeB:
			a.B = within(o, expectedB)
		case marker.TypeCubeC:
			a.C = within(o, expectedC)
		}
	}
	monitoring.Diagf("navigator: cube alignment %+v", a)
	return a, nil
}
