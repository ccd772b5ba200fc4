package geometry

import (
	"fmt"
	"math"
)

// Calibration holds the physical measurements of one robot build. Values are
// read-only once the robot starts; swap the whole profile to change hardware.
type Calibration struct {
	// CubeHalfWidth is the distance from a cube marker to the cube centre.
	CubeHalfWidth float64 `json:"cube_half_width" toml:"cube_half_width"`
	// CameraHorizontalOffset is the distance from the centre of rotation to
	// the camera along the robot's forward axis.
	CameraHorizontalOffset float64 `json:"camera_horizontal_offset" toml:"camera_horizontal_offset"`
	// CameraAngularOffset is added to every camera bearing to undo the
	// camera's mounting twist. Its sign is whatever the bench measurement says.
	CameraAngularOffset float64 `json:"camera_angular_offset" toml:"camera_angular_offset"`
}

// Validate rejects calibrations that cannot describe a real robot.
func (c Calibration) Validate() error {
	if c.CubeHalfWidth < 0 {
		return fmt.Errorf("cube_half_width must be non-negative, got %f", c.CubeHalfWidth)
	}
	if c.CameraHorizontalOffset < 0 {
		return fmt.Errorf("camera_horizontal_offset must be non-negative, got %f", c.CameraHorizontalOffset)
	}
	if math.Abs(c.CameraAngularOffset) > math.Pi/4 {
		return fmt.Errorf("camera_angular_offset %f rad is implausibly large", c.CameraAngularOffset)
	}
	return nil
}

// CorrectRotationalPlacement compensates for the crookedness of the camera.
func CorrectRotationalPlacement(v NavVector, cal Calibration) NavVector {
	return NavVector{Distance: v.Distance, Angle: v.Angle + cal.CameraAngularOffset}
}

// CorrectCubeMarkerPlacement moves the target from the marker on a cube face
// to the centre of the cube.
//
// beta is the marker's own rotation relative to the line of sight. It cannot
// be inferred from the vector, so the caller passes the observation's value.
// The marker, the camera and the cube centre form a triangle whose angle at
// the marker is π - beta.
func CorrectCubeMarkerPlacement(v NavVector, beta, halfWidth float64) NavVector {
	d := v.Distance
	r := halfWidth
	m := math.Sqrt(d*d + r*r - 2*d*r*math.Cos(math.Pi-beta))
	if m == 0 {
		return v
	}
	gamma := math.Asin(clampUnit(r * math.Sin(math.Pi-beta) / m))
	return NavVector{Distance: m, Angle: gamma + v.Angle}
}

// CorrectHorizontalPlacement re-expresses a vector seen from the camera as a
// vector from the robot's centre of rotation, camOffset metres behind it.
func CorrectHorizontalPlacement(v NavVector, camOffset float64) NavVector {
	d := v.Distance
	alpha := v.Angle
	r := camOffset
	m := math.Sqrt(d*d + r*r - 2*d*r*math.Cos(math.Pi-alpha))
	if m == 0 {
		return v
	}
	gamma := math.Asin(clampUnit(d * math.Sin(math.Pi-alpha) / m))
	return NavVector{Distance: m, Angle: gamma}
}

// CorrectAllCube applies rotational, marker and horizontal placement
// corrections in that order. The stages do not commute.
func CorrectAllCube(v NavVector, beta float64, cal Calibration) NavVector {
	v = CorrectRotationalPlacement(v, cal)
	v = CorrectCubeMarkerPlacement(v, beta, cal.CubeHalfWidth)
	v = CorrectHorizontalPlacement(v, cal.CameraHorizontalOffset)
	return v
}

// MarkerFromCubeCentre is the inverse of CorrectCubeMarkerPlacement: given the
// camera-relative vector to a cube centre and the marker rotation beta, it
// returns where the marker itself appears. Valid while the marker face is
// turned towards the camera (|beta| < π/2).
func MarkerFromCubeCentre(centre NavVector, beta, halfWidth float64) NavVector {
	m := centre.Distance
	r := halfWidth
	if m == 0 {
		return centre
	}
	gamma := math.Asin(clampUnit(r * math.Sin(beta) / m))
	d := m*math.Cos(gamma) - r*math.Cos(beta)
	return NavVector{Distance: d, Angle: centre.Angle - gamma}
}

// VectorToCorner returns the vector to the arena corner on the left of an
// arena marker. Markers sit one metre apart, so wallOffset (the marker's index
// along its wall, 0..6) gives the distance from the marker to that corner.
// beta follows the same sign as for cube markers, so a camera standing off
// to the right of the marker's normal sees the corner across a wider angle.
func VectorToCorner(marker NavVector, beta float64, wallOffset int) NavVector {
	d := marker.Distance
	l := float64(wallOffset%7 + 1)
	betaPrime := math.Pi/2 + beta
	n := math.Sqrt(l*l + d*d - 2*l*d*math.Cos(betaPrime))
	if n == 0 {
		return NavVector{}
	}
	delta := math.Asin(clampUnit(l * math.Sin(betaPrime) / n))
	return NavVector{Distance: n, Angle: marker.Angle - delta}
}
