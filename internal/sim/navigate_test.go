package sim

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/config"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
	"github.com/banshee-data/cubenav/internal/navigator"
	"github.com/banshee-data/cubenav/internal/search"
	"github.com/banshee-data/cubenav/internal/timeutil"
)

type rig struct {
	world *World
	port  *Port
	nav   *navigator.Navigator
	clock *timeutil.MockClock
}

func newRig(t *testing.T, profile string) *rig {
	t.Helper()
	cal, err := config.Profile(profile)
	require.NoError(t, err)

	w := NewWorld(cal)
	link, port := newSimLink(t, w)
	clock := timeutil.NewMockClock(time.Date(2017, time.April, 22, 10, 0, 0, 0, time.UTC))
	s := search.NewSearcher(NewCamera(w, DefaultCameraOptions()), link, clock, search.DefaultConfig())
	return &rig{
		world: w,
		port:  port,
		nav:   navigator.New(link, s, cal, clock, navigator.DefaultConfig()),
		clock: clock,
	}
}

// overCube reports how far the robot's centre of rotation ended up from the
// point half a cube beyond the centre of c, where a finished approach stops.
func overCube(p Pose, c Cube, halfWidth float64) float64 {
	sin, cos := math.Sincos(p.Heading)
	return math.Hypot(p.X-(c.X+sin*halfWidth), p.Y-(c.Y+cos*halfWidth))
}

func TestCollectCube_Short(t *testing.T) {
	r := newRig(t, "stepper-2017")
	r.world.SetPose(Pose{X: 0.5, Y: 0.5, Heading: math.Pi / 4})
	cube := Cube{ID: 31, Type: marker.TypeCubeA, X: 2.5, Y: 2.5, Yaw: 0.3}
	r.world.AddCube(cube)

	result, target, err := r.nav.CollectCube(context.Background(), marker.OfType(marker.TypeCubeA), navigator.DefaultApproachOptions())
	require.NoError(t, err)
	assert.Equal(t, navigator.ResultOK, result)
	assert.Equal(t, 31, target.ID)
	assert.Equal(t, navigator.StateArrived, r.nav.State())
	assert.Less(t, overCube(r.world.Pose(), cube, 0.1225), 0.03, "ended at %s", r.world.Pose())
}

func TestCollectCube_Checkpoint(t *testing.T) {
	r := newRig(t, "stepper-2017")
	start := Pose{X: 0.5, Y: 0.5}
	cube := Cube{ID: 44, Type: marker.TypeCubeB, X: 3.5, Y: 4, Yaw: -0.4}
	start.Heading = heading(start.X, start.Y, cube.X, cube.Y) - geometry.Radians(8)
	r.world.SetPose(start)
	r.world.AddCube(cube)

	result, _, err := r.nav.CollectCube(context.Background(), marker.Any, navigator.DefaultApproachOptions())
	require.NoError(t, err)
	assert.Equal(t, navigator.ResultOK, result)
	assert.Less(t, overCube(r.world.Pose(), cube, 0.1225), 0.05, "ended at %s", r.world.Pose())
}

func TestCollectCube_CrashContinue(t *testing.T) {
	r := newRig(t, "stepper-2017")
	r.world.SetPose(Pose{X: 0.5, Y: 0.5, Heading: math.Pi / 4})
	cube := Cube{ID: 31, Type: marker.TypeCubeA, X: 2.5, Y: 2.5}
	r.world.AddCube(cube)
	r.port.Obstruct(0.4)

	opts := navigator.DefaultApproachOptions()
	opts.CrashContinue = true
	result, _, err := r.nav.CollectCube(context.Background(), marker.Any, opts)
	require.NoError(t, err)
	assert.Equal(t, navigator.ResultOK, result)
	assert.Less(t, overCube(r.world.Pose(), cube, 0.1225), 0.03, "ended at %s", r.world.Pose())
	assert.Contains(t, r.clock.Sleeps(), time.Second)
}

func TestCollectCube_CrashReported(t *testing.T) {
	r := newRig(t, "stepper-2017")
	r.world.SetPose(Pose{X: 0.5, Y: 0.5, Heading: math.Pi / 4})
	r.world.AddCube(Cube{ID: 31, Type: marker.TypeCubeA, X: 2.5, Y: 2.5})
	r.port.Obstruct(0.4)

	result, _, err := r.nav.CollectCube(context.Background(), marker.Any, navigator.DefaultApproachOptions())
	require.NoError(t, err)
	assert.Equal(t, navigator.ResultCrash, result)
	assert.Equal(t, navigator.StateCrashed, r.nav.State())
}

func TestCollectCube_SearchTurnsToFindIt(t *testing.T) {
	r := newRig(t, "bench")
	r.world.SetPose(Pose{X: 4, Y: 4})
	// 100 degrees right: out of view until the 80 degree step of the zig-zag.
	sin, cos := math.Sincos(geometry.Radians(100))
	cube := Cube{ID: 50, Type: marker.TypeCubeC, X: 4 + 2*sin, Y: 4 + 2*cos}
	r.world.AddCube(cube)

	result, _, err := r.nav.CollectCube(context.Background(), marker.OfType(marker.TypeCubeC), navigator.DefaultApproachOptions())
	require.NoError(t, err)
	assert.Equal(t, navigator.ResultOK, result)
	assert.Less(t, overCube(r.world.Pose(), cube, 0.1225), 0.03, "ended at %s", r.world.Pose())
}

func TestReadZoneFromSwitch(t *testing.T) {
	r := newRig(t, "bench")
	r.world.PlaceInZone(2)

	zone, err := r.nav.ReadZone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, zone)
	assert.Equal(t, 2, r.nav.Config.Zone)
}

func TestDriveToCorner(t *testing.T) {
	r := newRig(t, "bench")

	err := r.nav.DriveToCorner(context.Background())
	// The corner is inside the wall clearance, so the drive ends against it.
	require.ErrorIs(t, err, actuator.ErrMovementInterrupted)
	p := r.world.Pose()
	c := Corner(1)
	assert.Less(t, math.Hypot(p.X-c.X, p.Y-c.Y), 0.3, "ended at %s", p)
}
