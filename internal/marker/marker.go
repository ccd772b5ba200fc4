// Package marker models the fiducial observations the camera reports and the
// predicates used to pick among them.
package marker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/banshee-data/cubenav/internal/geometry"
)

// Type identifies what a marker is printed on.
type Type int

const (
	TypeArena Type = iota + 1
	TypeCubeA
	TypeCubeB
	TypeCubeC
)

func (t Type) String() string {
	switch t {
	case TypeArena:
		return "ARENA"
	case TypeCubeA:
		return "CUBE_A"
	case TypeCubeB:
		return "CUBE_B"
	case TypeCubeC:
		return "CUBE_C"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// IsCube reports whether t is one of the cube marker types.
func (t Type) IsCube() bool {
	return t == TypeCubeA || t == TypeCubeB || t == TypeCubeC
}

// ParseType accepts the canonical names as well as the short forms used in
// route configs ("a", "b", "c", "arena").
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ARENA", "ARENA_WALL", "WALL":
		return TypeArena, nil
	case "CUBE_A", "A":
		return TypeCubeA, nil
	case "CUBE_B", "B":
		return TypeCubeB, nil
	case "CUBE_C", "C":
		return TypeCubeC, nil
	}
	return 0, fmt.Errorf("unknown marker type %q", s)
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("marker type must be a string: %w", err)
	}
	v, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Observation is one marker as seen in one camera frame. Observations are
// never mutated; the same physical marker in a later frame is a new value
// with the same ID.
//
// Rotation is the angle between the marker's outward normal and the line back
// to the camera, positive when the camera stands to the right of the normal
// as seen from the camera.
type Observation struct {
	ID       int     `json:"id"`
	Type     Type    `json:"type"`
	Distance float64 `json:"distance"` // metres from the camera
	Bearing  float64 `json:"bearing"`  // radians, camera-relative, positive = right
	Rotation float64 `json:"rotation"` // radians
	Offset   int     `json:"offset"`   // index along its wall, arena markers only
}

// Vector returns the raw camera-relative vector to the marker.
func (o Observation) Vector() geometry.NavVector {
	return geometry.NavVector{Distance: o.Distance, Angle: o.Bearing}
}

func (o Observation) String() string {
	return fmt.Sprintf("Marker(type=%s, id=%d, distance=%.3f, bearing=%.4f, rotation=%.4f)",
		o.Type, o.ID, o.Distance, o.Bearing, o.Rotation)
}
