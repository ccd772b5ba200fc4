// Package geometry turns camera-relative marker readings into vectors from
// the robot's centre of rotation.
//
// All angles in this package are radians, signed, 0 straight ahead and
// positive to the right (clockwise seen from above). Degrees only appear at
// the actuator boundary.
package geometry

import (
	"fmt"
	"math"
)

// NavVector is a polar vector in the horizontal plane.
type NavVector struct {
	Distance float64 // metres, >= 0
	Angle    float64 // radians, positive = rightward
}

func (v NavVector) String() string {
	return fmt.Sprintf("NavVector(distance=%.4f, angle=%.4f)", v.Distance, v.Angle)
}

// Normalized returns v with its angle reduced to the minimal signed rotation
// in (-π, π].
func (v NavVector) Normalized() NavVector {
	return NavVector{Distance: v.Distance, Angle: NormalizeAngle(v.Angle)}
}

// NormalizeAngle reduces a to (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

// clampUnit keeps an asin/acos argument inside [-1, 1] so rounding noise
// never produces NaN.
func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
