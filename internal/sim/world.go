// Package sim is a software stand-in for the robot: an arena with wall and
// cube markers, a drive controller speaking the actuator protocol and a
// camera that reports what the robot would see. It backs dev mode and the
// end-to-end tests.
//
// World coordinates are metres with the origin at corner 0, x east and y
// north. Headings are radians clockwise from north, matching the robot's
// positive-right bearings.
package sim

import (
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
)

// ArenaSize is the side of the square arena.
const ArenaSize = 8.0

// wallClearance keeps the robot's centre this far from any wall.
const wallClearance = 0.2

// Point is a position in the arena.
type Point struct {
	X, Y float64
}

// Pose is the robot's position and heading.
type Pose struct {
	X, Y    float64
	Heading float64
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose(x=%.3f, y=%.3f, heading=%.1f°)", p.X, p.Y, geometry.Degrees(p.Heading))
}

// Cube is a cube on the arena floor. Each of its four upright faces carries
// the same marker ID.
type Cube struct {
	ID   int
	Type marker.Type
	X, Y float64
	// Yaw is the heading of the normal of face 0.
	Yaw float64
}

// WallMarker is one of the fixed arena markers.
type WallMarker struct {
	Code   int
	Pos    Point
	Normal float64 // heading of the outward face, into the arena
}

// corners in zone order. Wall w runs from corner w to corner w+1, so a
// marker's start corner is on the left as seen from inside the arena.
var corners = [marker.WallCount]Point{{0, 0}, {0, ArenaSize}, {ArenaSize, ArenaSize}, {ArenaSize, 0}}

// Corner returns the position of the corner for zone.
func Corner(zone int) Point {
	return corners[((zone%marker.WallCount)+marker.WallCount)%marker.WallCount]
}

// ArenaMarkers lays out the 28 wall markers one metre apart.
func ArenaMarkers() []WallMarker {
	out := make([]WallMarker, 0, marker.ArenaMarkerCount)
	for code := 0; code < marker.ArenaMarkerCount; code++ {
		w := marker.Wall(code)
		from, to := corners[w], corners[(w+1)%marker.WallCount]
		dx, dy := (to.X-from.X)/ArenaSize, (to.Y-from.Y)/ArenaSize
		along := float64(code%marker.MarkersPerWall + 1)
		out = append(out, WallMarker{
			Code: code,
			Pos:  Point{from.X + dx*along, from.Y + dy*along},
			// the wall direction turned a quarter clockwise points inwards
			Normal: geometry.NormalizeAngle(math.Atan2(dx, dy) + math.Pi/2),
		})
	}
	return out
}

// World is the simulated arena. All methods are safe for concurrent use:
// the port and the camera run on the control loop while tests inspect the
// pose.
type World struct {
	mu sync.Mutex

	calibration geometry.Calibration
	robot       Pose
	cubes       []Cube
	walls       []WallMarker
	dip         byte
}

// NewWorld returns an empty arena with the robot at the centre facing north.
func NewWorld(cal geometry.Calibration) *World {
	return &World{
		calibration: cal,
		robot:       Pose{X: ArenaSize / 2, Y: ArenaSize / 2},
		walls:       ArenaMarkers(),
	}
}

// Calibration returns the calibration the camera is mounted with.
func (w *World) Calibration() geometry.Calibration {
	return w.calibration
}

// PlaceInZone puts the robot half a metre diagonally out of zone's corner,
// facing the centre of the arena, and sets the DIP switch to zone.
func (w *World) PlaceInZone(zone int) {
	c := Corner(zone)
	cx, cy := ArenaSize/2, ArenaSize/2
	x := c.X + math.Copysign(0.5, cx-c.X)
	y := c.Y + math.Copysign(0.5, cy-c.Y)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.robot = Pose{X: x, Y: y, Heading: heading(x, y, cx, cy)}
	w.dip = byte(zone)
}

// SetPose moves the robot.
func (w *World) SetPose(p Pose) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p.Heading = geometry.NormalizeAngle(p.Heading)
	w.robot = p
}

// Pose returns the robot's pose.
func (w *World) Pose() Pose {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.robot
}

// AddCube places a cube.
func (w *World) AddCube(c Cube) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cubes = append(w.cubes, c)
}

// Cubes returns a copy of the cubes in the arena.
func (w *World) Cubes() []Cube {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Cube(nil), w.cubes...)
}

// SetSwitch sets the DIP switch value the controller reports.
func (w *World) SetSwitch(v byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dip = v
}

func (w *World) switchState() byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dip
}

// turn rotates the robot by angle radians, positive clockwise.
func (w *World) turn(angle float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.robot.Heading = geometry.NormalizeAngle(w.robot.Heading + angle)
}

// drive moves the robot metres along its heading, negative for reverse. It
// stops short of a wall and reports how far it got.
func (w *World) drive(metres float64) (moved float64, blocked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sin, cos := math.Sincos(w.robot.Heading)
	if metres < 0 {
		sin, cos = -sin, -cos
	}
	want := math.Abs(metres)
	limit := math.Min(reach(w.robot.X, sin), reach(w.robot.Y, cos))
	moved = want
	if limit < want {
		moved, blocked = math.Max(limit, 0), true
	}
	w.robot.X += sin * moved
	w.robot.Y += cos * moved
	return math.Copysign(moved, metres), blocked
}

// reach is how far the robot can travel from pos along one axis component
// before it reaches the wall clearance.
func reach(pos, component float64) float64 {
	switch {
	case component > 1e-12:
		return (ArenaSize - wallClearance - pos) / component
	case component < -1e-12:
		return (wallClearance - pos) / component
	default:
		return math.Inf(1)
	}
}

// heading returns the heading from (x0, y0) towards (x1, y1).
func heading(x0, y0, x1, y1 float64) float64 {
	return math.Atan2(x1-x0, y1-y0)
}

// StandardLayout returns a cube layout for dev runs: per zone a B cube 1.5 m
// out along the diagonal from the start position and two A cubes 2.12 m out,
// 30 degrees either side of it, plus one C cube in the centre.
func StandardLayout() []Cube {
	var cubes []Cube
	for zone := 0; zone < marker.WallCount; zone++ {
		c := Corner(zone)
		x := c.X + math.Copysign(0.5, ArenaSize/2-c.X)
		y := c.Y + math.Copysign(0.5, ArenaSize/2-c.Y)
		diag := heading(x, y, ArenaSize/2, ArenaSize/2)
		at := func(dist, off float64) (float64, float64) {
			s, co := math.Sincos(diag + off)
			return x + s*dist, y + co*dist
		}
		bx, by := at(1.5, 0)
		cubes = append(cubes, Cube{ID: 40 + zone, Type: marker.TypeCubeB, X: bx, Y: by, Yaw: diag})
		for i, off := range []float64{-math.Pi / 6, math.Pi / 6} {
			ax, ay := at(2.12, off)
			cubes = append(cubes, Cube{ID: 32 + 2*zone + i, Type: marker.TypeCubeA, X: ax, Y: ay, Yaw: diag + off})
		}
	}
	cubes = append(cubes, Cube{ID: 44, Type: marker.TypeCubeC, X: ArenaSize / 2, Y: ArenaSize / 2})
	return cubes
}
