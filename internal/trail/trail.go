// Package trail reconstructs where the robot went from the commands it
// journalled, and plots the result.
//
// The reconstruction is dead reckoning: only acknowledged commands move the
// robot. An interrupted command counts for nothing until a continue finishes
// it, at which point the link journals it again as ok. A command that failed
// never took effect.
package trail

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/cubenav/internal/db"
	"github.com/banshee-data/cubenav/internal/geometry"
)

// Pose is a position relative to the start of the run: metres, with y along
// the starting heading and headings in radians clockwise from it.
type Pose struct {
	X, Y    float64
	Heading float64
}

// Step is the pose after one journalled command.
type Step struct {
	Pose
	Time    time.Time
	Op      string
	Outcome string
}

// Moved reports whether the command changed the pose.
func (s Step) Moved() bool {
	return s.Outcome == "ok" && s.Op != "retry" && s.Op != "switch"
}

// Reckon replays cmds from start and returns one step per command.
func Reckon(start Pose, cmds []db.CommandRecord) []Step {
	steps := make([]Step, 0, len(cmds))
	p := start
	for _, c := range cmds {
		s := Step{Time: c.Time, Op: c.Op, Outcome: c.Outcome}
		s.Pose = p
		if s.Moved() {
			s.Pose = apply(p, c)
		}
		p = s.Pose
		steps = append(steps, s)
	}
	return steps
}

func apply(p Pose, c db.CommandRecord) Pose {
	switch c.Op {
	case "forward", "backward":
		d := c.Magnitude
		if c.Op == "backward" {
			d = -math.Abs(d)
		}
		sin, cos := math.Sincos(p.Heading)
		p.X += sin * d
		p.Y += cos * d
	case "turn_left", "turn_right":
		// Turns are journalled signed, negative to the left.
		p.Heading = geometry.NormalizeAngle(p.Heading + geometry.Radians(c.Magnitude))
	}
	return p
}

// Summary describes a reconstructed trail.
type Summary struct {
	Commands    int
	Interrupted int
	Failed      int
	Distance    float64 // metres driven, either direction
	Turned      float64 // radians turned, either direction
	End         Pose
}

func (s Summary) String() string {
	return fmt.Sprintf("%d commands (%d interrupted, %d failed), %.2f m driven, %.0f deg turned, ending at (%.2f, %.2f) facing %.0f deg",
		s.Commands, s.Interrupted, s.Failed, s.Distance, geometry.Degrees(s.Turned),
		s.End.X, s.End.Y, geometry.Degrees(s.End.Heading))
}

// Summarize totals a trail that began at start.
func Summarize(start Pose, steps []Step) Summary {
	sum := Summary{Commands: len(steps), End: start}
	dists := make([]float64, 0, len(steps))
	turns := make([]float64, 0, len(steps))
	prev := start
	for _, s := range steps {
		switch s.Outcome {
		case "interrupted":
			sum.Interrupted++
		case "failed":
			sum.Failed++
		}
		dists = append(dists, math.Hypot(s.X-prev.X, s.Y-prev.Y))
		turns = append(turns, math.Abs(geometry.NormalizeAngle(s.Heading-prev.Heading)))
		prev = s.Pose
	}
	if len(steps) > 0 {
		sum.Distance = floats.Sum(dists)
		sum.Turned = floats.Sum(turns)
		sum.End = steps[len(steps)-1].Pose
	}
	return sum
}
