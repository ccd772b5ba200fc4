package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/navigator"
	"github.com/banshee-data/cubenav/internal/search"
)

// RegisterDefaults registers the built-in routes.
func RegisterDefaults(reg *Registry) error {
	routes := []struct {
		name  string
		route Route
	}{
		{"b c a", RouteBCA},
		{"a c b", RouteACB},
		{"collect nearest", collectNearest},
		{"align cubes", alignCubes},
		{"print all cubes in sight", printMarkers},
		{"print vectors", printVectors},
		{"test move forward", func(ctx context.Context, r *Robot) error { return r.move(ctx, 0.5) }},
		{"test move 4 metres", moveFourMetres},
		{"test turn once", turnOnce},
		{"test turn 10 times", turnTenTimes},
		{"test_marker_drive_home", func(ctx context.Context, r *Robot) error { return r.Nav.DriveToCorner(ctx) }},
	}
	for _, rt := range routes {
		if err := reg.Register(rt.name, rt.route); err != nil {
			return err
		}
	}
	return nil
}

func deg(d float64) float64 { return geometry.Radians(d) }

// RouteBCA drives past B, collects B then C then A where it can, and goes
// home. Missing or moved cubes send it down the fallback branches.
func RouteBCA(ctx context.Context, r *Robot) error {
	nav := r.Nav
	monitoring.Diagf("strategy: moving 3.25 m to beside B")
	if err := r.moveContinue(ctx, 3.25); err != nil {
		return err
	}
	if err := r.turn(ctx, -90); err != nil {
		return err
	}
	r.Clock.Sleep(200 * time.Millisecond)

	bs, err := nav.Search.FindMarkersApproxPosition(ctx, marker.TypeCubeB, 1.5, 0.5)
	if err != nil {
		return err
	}
	if len(bs) == 0 {
		return r.bcaWithoutB(ctx)
	}

	b := bs[0]
	monitoring.Diagf("strategy: found %d B cubes, going for %d", len(bs), b.ID)
	result, err := nav.MoveToCube(ctx, b, r.approach())
	if err != nil {
		return err
	}
	if result != navigator.ResultCrash {
		return r.bcaWithB(ctx, b)
	}

	monitoring.Diagf("strategy: crashed going for B, backing off 1 m for a better view")
	r.Clock.Sleep(time.Second)
	if err := r.moveContinue(ctx, -1); err != nil {
		return err
	}
	if bs, err = nav.Search.FindMarkersApproxPosition(ctx, marker.TypeCubeB, 1.5, 0.5); err != nil {
		return err
	}
	if len(bs) == 0 {
		monitoring.Opsf("strategy: can't see the B cube any more")
		align, err := nav.CheckCubeAlignment(ctx)
		if err != nil {
			return err
		}
		if !align.C {
			monitoring.Opsf("strategy: neither B nor C where expected")
		}
		return r.bcaWithoutB(ctx)
	}
	b = bs[0]
	if result, err = nav.MoveToCube(ctx, b, r.approach()); err != nil {
		return err
	}
	if result == navigator.ResultCrash {
		monitoring.Diagf("strategy: crashed again, unhooking")
		if err := r.moveIgnoringCrash(ctx, -0.2); err != nil {
			return err
		}
		return r.bcaWithoutB(ctx)
	}
	return r.bcaWithB(ctx, b)
}

// bcaWithoutB goes for C and then A, or straight for A if C is missing too.
func (r *Robot) bcaWithoutB(ctx context.Context) error {
	nav := r.Nav
	monitoring.Diagf("strategy: no B cube, looking for C")
	cs, err := nav.Search.FindMarkersApproxPosition(ctx, marker.TypeCubeC, 2.88, 0.5)
	if err != nil {
		return err
	}
	if len(cs) == 0 {
		return r.bcaOnlyA(ctx)
	}

	if _, err := nav.MoveToCube(ctx, cs[0], r.approach()); err != nil {
		return err
	}
	if err := r.turn(ctx, -90); err != nil {
		return err
	}
	bs, err := nav.Search.FindMarkersApproxPosition(ctx, marker.TypeCubeB, 1.5, 0.5)
	if err != nil {
		return err
	}
	var as []marker.Observation
	if len(bs) == 0 {
		monitoring.Diagf("strategy: no B from C, turning towards A")
		if err := r.turn(ctx, -45); err != nil {
			return err
		}
		as, err = nav.Search.ConeSearchApproxPosition(ctx, marker.TypeCubeA, 2.12, 0.5, deg(30), deg(30), deg(15))
	} else {
		if _, err := nav.MoveToCube(ctx, bs[0], r.approach()); err != nil {
			return err
		}
		if err := r.turn(ctx, -90); err != nil {
			return err
		}
		as, err = nav.Search.ConeSearchApproxPosition(ctx, marker.TypeCubeA, 1.5, 0.5, deg(30), deg(30), deg(15))
	}
	if err != nil {
		return err
	}

	switch {
	case len(as) > 0:
		if _, err := nav.MoveToCube(ctx, as[0], r.approachContinuing()); err != nil {
			return err
		}
		if len(bs) > 0 {
			if err := r.turn(ctx, 45); err != nil {
				return err
			}
		}
	case len(bs) == 0:
		monitoring.Diagf("strategy: can't see A, driving to where it should be")
		if err := r.move(ctx, 2.12); err != nil {
			return err
		}
	default:
		monitoring.Diagf("strategy: can't see A, driving to where it should be")
		if err := r.move(ctx, 1.5); err != nil {
			return err
		}
		if err := r.turn(ctx, 45); err != nil {
			return err
		}
	}
	return nav.HomeFromA(ctx)
}

// bcaOnlyA is the last resort: find A, then a B near it, then go home.
func (r *Robot) bcaOnlyA(ctx context.Context) error {
	nav := r.Nav
	monitoring.Opsf("strategy: can't see C either, turning towards A")
	if err := r.turn(ctx, -45); err != nil {
		return err
	}
	as, err := nav.Search.ConeSearchApproxPosition(ctx, marker.TypeCubeA, 1.8, 0.7, deg(45), deg(45), deg(15))
	if err != nil {
		return err
	}
	if len(as) == 0 {
		monitoring.Opsf("strategy: can't find any cubes where they should be")
		return nil
	}

	a := as[0]
	if _, err := nav.FaceCube(ctx, a); err != nil {
		return err
	}
	if err := r.turn(ctx, -45); err != nil {
		return err
	}
	// legs of the right-angled isosceles triangle with a as its hypotenuse
	if err := r.moveContinue(ctx, math.Sqrt(a.Distance*a.Distance/2)); err != nil {
		return err
	}
	if err := r.turn(ctx, 90); err != nil {
		return err
	}
	if as, err = nav.Search.ConeSearchSpecificMarker(ctx, a.ID, deg(30), deg(30), deg(15)); err != nil {
		return err
	}
	if len(as) == 0 {
		monitoring.Opsf("strategy: A cube %d has moved while we weren't looking", a.ID)
		return nil
	}
	if _, err := nav.MoveToCube(ctx, as[0], r.approachContinuing()); err != nil {
		return err
	}

	bs, err := nav.Search.ConeSearchApproxPosition(ctx, marker.TypeCubeB, 1.0, 0.5, deg(30), deg(30), deg(15))
	if err != nil {
		return err
	}
	if len(bs) == 0 {
		monitoring.Diagf("strategy: no B near A, going home")
		if err := r.turn(ctx, -135); err != nil {
			return err
		}
		return r.moveContinue(ctx, 2)
	}
	if _, err := nav.MoveToCube(ctx, bs[0], r.approachContinuing()); err != nil {
		return err
	}
	if err := r.turn(ctx, 180); err != nil {
		return err
	}
	if err := r.moveContinue(ctx, 1.5); err != nil {
		return err
	}
	if err := r.turn(ctx, 45); err != nil {
		return err
	}
	return r.moveContinue(ctx, 3)
}

// bcaWithB continues from the B cube to C and A.
func (r *Robot) bcaWithB(ctx context.Context, b marker.Observation) error {
	nav := r.Nav
	monitoring.Diagf("strategy: correcting for the turn made to face B (%.1f deg, last turned %s)",
		geometry.Degrees(b.Bearing), nav.Drive.LastTurn())
	if _, err := nav.Drive.Turn(ctx, -b.Bearing); err != nil {
		return err
	}

	cs, err := nav.Search.FindMarkersApproxPosition(ctx, marker.TypeCubeC, 1.0, 0.5)
	if err != nil {
		return err
	}
	if len(cs) == 0 {
		monitoring.Opsf("strategy: can't see C, turning towards A")
		if err := r.turn(ctx, -90); err != nil {
			return err
		}
		as, err := nav.Search.FindMarkersApproxPosition(ctx, marker.TypeCubeA, 1.0, 0.5)
		if err != nil {
			return err
		}
		if len(as) > 0 {
			if _, err := nav.MoveToCube(ctx, as[0], r.approachContinuing()); err != nil {
				return err
			}
		} else {
			monitoring.Opsf("strategy: can't see A either, going home with just B")
			if err := r.moveContinue(ctx, 1.5); err != nil {
				return err
			}
		}
		if err := r.turn(ctx, -45); err != nil {
			return err
		}
		return r.moveContinue(ctx, 3)
	}

	result, err := nav.MoveToCube(ctx, cs[0], r.approach())
	if err != nil {
		return err
	}
	if result != navigator.ResultCrash {
		monitoring.Diagf("strategy: have B and C, turning towards A")
		if err := r.turn(ctx, -135); err != nil {
			return err
		}
		opts := search.DefaultConeOptions(search.Criteria{Type: marker.TypeCubeA, Distance: ptr(2.12)})
		opts.Start, opts.Stop = deg(-30), deg(30)
		as, err := nav.Search.ConeSearch(ctx, opts)
		if err != nil {
			return err
		}
		if err := r.collectAOrDriveOn(ctx, as); err != nil {
			return err
		}
		r.Clock.Sleep(time.Second)
		return nav.HomeFromA(ctx)
	}

	monitoring.Diagf("strategy: crashed going for C, backing off 0.5 m")
	if err := r.moveIgnoringCrash(ctx, -0.5); err != nil {
		return err
	}
	if cs, err = nav.Search.FindMarkersApproxPosition(ctx, marker.TypeCubeC, 1.5, 0.5); err != nil {
		return err
	}
	turnToA := -117.0
	if len(cs) == 0 {
		monitoring.Opsf("strategy: lost C, going for A")
	} else {
		if result, err = nav.MoveToCube(ctx, cs[0], r.approach()); err != nil {
			return err
		}
		if result == navigator.ResultCrash {
			if err := r.moveIgnoringCrash(ctx, -0.2); err != nil {
				return err
			}
			monitoring.Opsf("strategy: crashed at C again, going for A")
		} else {
			turnToA = -135
		}
	}
	if err := r.turn(ctx, turnToA); err != nil {
		return err
	}
	as, err := nav.Search.ConeSearchApproxPosition(ctx, marker.TypeCubeA, 1.3, 0.5, deg(45), deg(45), deg(15))
	if err != nil {
		return err
	}
	if err := r.collectAOrDriveOn(ctx, as); err != nil {
		return err
	}
	return nav.HomeFromA(ctx)
}

func (r *Robot) collectAOrDriveOn(ctx context.Context, as []marker.Observation) error {
	if len(as) == 0 {
		monitoring.Diagf("strategy: can't see A, driving to where it should be")
		return r.moveContinue(ctx, 2.12)
	}
	_, err := r.Nav.MoveToCube(ctx, as[0], r.approachContinuing())
	return err
}

func ptr[T any](v T) *T { return &v }

// RouteACB faces the nearest A, drives over it to C, then turns back for B.
func RouteACB(ctx context.Context, r *Robot) error {
	nav := r.Nav
	a, ok, err := nav.Search.FindClosestMarker(ctx, marker.TypeCubeA)
	if err != nil {
		return err
	}
	if !ok {
		monitoring.Opsf("strategy: no A cube in sight")
		return nil
	}
	distance, err := nav.FaceCube(ctx, a)
	if err != nil {
		return err
	}
	if err := r.move(ctx, distance); err != nil {
		return err
	}

	c, ok, err := nav.Search.FindClosestMarker(ctx, marker.TypeCubeC)
	if err != nil {
		return err
	}
	if ok {
		opts := r.approach()
		opts.MaxSafeDistance = 3
		if _, err := nav.MoveToCube(ctx, c, opts); err != nil {
			return err
		}
	} else {
		monitoring.Opsf("strategy: no C cube in sight from A")
	}
	if err := r.turn(ctx, -135); err != nil {
		return err
	}

	const sweeps = 3
	for i := 0; i < sweeps; i++ {
		bs, err := nav.Search.SweepForType(ctx, marker.TypeCubeB, deg(90))
		if err != nil {
			return err
		}
		if len(bs) > 0 {
			_, err := nav.MoveToCube(ctx, bs[0], r.approach())
			return err
		}
		monitoring.Opsf("strategy: could not find any B cubes (sweep %d of %d)", i+1, sweeps)
	}
	return nil
}

func collectNearest(ctx context.Context, r *Robot) error {
	result, target, err := r.Nav.CollectCube(ctx, nil, r.approachContinuing())
	if err != nil {
		return err
	}
	monitoring.Opsf("strategy: collecting %s ended %s", target, result)
	if result != navigator.ResultOK {
		return nil
	}
	return r.Nav.HomeFromA(ctx)
}

func alignCubes(ctx context.Context, r *Robot) error {
	a, err := r.Nav.CheckCubeAlignment(ctx)
	if err != nil {
		return err
	}
	monitoring.Opsf("strategy: right A aligned %t, left A aligned %t, B aligned %t, C aligned %t",
		a.RightA, a.LeftA, a.B, a.C)
	return nil
}

func printMarkers(ctx context.Context, r *Robot) error {
	seen, err := r.Nav.Search.SeeMarkers(ctx, marker.Any, r.Nav.Search.Config.SeeAttempts)
	if err != nil {
		return err
	}
	monitoring.Opsf("strategy: %d markers in sight", len(seen))
	for _, o := range seen {
		monitoring.Opsf("strategy:   %s", o)
	}
	return nil
}

func printVectors(ctx context.Context, r *Robot) error {
	seen, err := r.Nav.Search.SeeMarkers(ctx, marker.Any, r.Nav.Search.Config.SeeAttempts)
	if err != nil {
		return err
	}
	for _, o := range seen {
		corrected := geometry.CorrectAllCube(o.Vector(), o.Rotation, r.Nav.Calibration)
		monitoring.Opsf("strategy: marker %d raw %s corrected %s", o.ID, o.Vector(), corrected)
	}
	return nil
}

func moveFourMetres(ctx context.Context, r *Robot) error {
	if err := r.move(ctx, 2); err != nil {
		return err
	}
	return r.move(ctx, 2)
}

func turnOnce(ctx context.Context, r *Robot) error {
	return turnTimes(ctx, r, 2)
}

func turnTenTimes(ctx context.Context, r *Robot) error {
	return turnTimes(ctx, r, 20)
}

func turnTimes(ctx context.Context, r *Robot, n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.Nav.Drive.Turn(ctx, math.Pi); err != nil {
			return fmt.Errorf("half turn %d: %w", i+1, err)
		}
	}
	return nil
}
