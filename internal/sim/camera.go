package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
)

// CameraOptions describe what the simulated webcam can make out.
type CameraOptions struct {
	// FieldOfView is the full horizontal angle, radians.
	FieldOfView float64
	// Range is the furthest a marker can be read from, metres.
	Range float64
	// MaxRotation is the steepest angle a marker face can be read at.
	MaxRotation float64
	// Dropout is the chance of missing any one marker in a frame.
	Dropout float64
	// Seed fixes the dropout sequence.
	Seed uint64
}

// DefaultCameraOptions approximates the Logitech C270 the robot carries.
func DefaultCameraOptions() CameraOptions {
	return CameraOptions{
		FieldOfView: geometry.Radians(60),
		Range:       5,
		MaxRotation: geometry.Radians(70),
	}
}

// Camera reports the markers the robot would see from its current pose.
type Camera struct {
	world *World
	opts  CameraOptions

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCamera returns a camera mounted on world's robot.
func NewCamera(world *World, opts CameraOptions) *Camera {
	return &Camera{
		world: world,
		opts:  opts,
		rng:   rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// Poll implements camera.Camera.
func (c *Camera) Poll(ctx context.Context) ([]marker.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := c.world
	w.mu.Lock()
	robot := w.robot
	cubes := append([]Cube(nil), w.cubes...)
	walls := w.walls
	cal := w.calibration
	w.mu.Unlock()

	sin, cos := math.Sincos(robot.Heading)
	cam := Point{robot.X + sin*cal.CameraHorizontalOffset, robot.Y + cos*cal.CameraHorizontalOffset}
	// The camera reports bearings off its own twisted axis.
	axis := robot.Heading + cal.CameraAngularOffset

	out := []marker.Observation{}
	for _, m := range walls {
		v := polar(cam, m.Pos, axis)
		beta := rotation(m.Normal, m.Pos, cam)
		obs := marker.Observation{
			ID:       m.Code,
			Type:     marker.TypeArena,
			Distance: v.Distance,
			Bearing:  v.Angle,
			Rotation: beta,
			Offset:   m.Code % marker.MarkersPerWall,
		}
		if c.visible(obs) {
			out = append(out, obs)
		}
	}

	for _, cube := range cubes {
		centre := polar(cam, Point{cube.X, cube.Y}, axis)
		beta := c.facingRotation(cube, cam, cal.CubeHalfWidth)
		v := geometry.MarkerFromCubeCentre(centre, beta, cal.CubeHalfWidth)
		obs := marker.Observation{
			ID:       cube.ID,
			Type:     cube.Type,
			Distance: v.Distance,
			Bearing:  v.Angle,
			Rotation: beta,
		}
		if c.visible(obs) {
			out = append(out, obs)
		}
	}
	return out, nil
}

// facingRotation picks the cube face turned most squarely towards the camera
// and returns its rotation.
func (c *Camera) facingRotation(cube Cube, cam Point, halfWidth float64) float64 {
	best := math.Inf(1)
	for k := 0; k < 4; k++ {
		normal := cube.Yaw + float64(k)*math.Pi/2
		s, co := math.Sincos(normal)
		face := Point{cube.X + s*halfWidth, cube.Y + co*halfWidth}
		beta := rotation(normal, face, cam)
		if math.Abs(beta) < math.Abs(best) {
			best = beta
		}
	}
	return best
}

func (c *Camera) visible(o marker.Observation) bool {
	if o.Distance <= 0 || o.Distance > c.opts.Range {
		return false
	}
	if math.Abs(o.Bearing) > c.opts.FieldOfView/2 {
		return false
	}
	if math.Abs(o.Rotation) > c.opts.MaxRotation {
		return false
	}
	if c.opts.Dropout > 0 {
		c.mu.Lock()
		drop := c.rng.Float64() < c.opts.Dropout
		c.mu.Unlock()
		if drop {
			return false
		}
	}
	return true
}

// polar returns the vector from the camera at from, looking along axis, to p.
func polar(from, p Point, axis float64) geometry.NavVector {
	return geometry.NavVector{
		Distance: math.Hypot(p.X-from.X, p.Y-from.Y),
		Angle:    geometry.NormalizeAngle(heading(from.X, from.Y, p.X, p.Y) - axis),
	}
}

// rotation is the angle from a marker's normal to the line back to the
// camera, positive when the camera stands to the right of the normal as seen
// from the camera.
func rotation(normal float64, pos, cam Point) float64 {
	return geometry.NormalizeAngle(normal - heading(pos.X, pos.Y, cam.X, cam.Y))
}
