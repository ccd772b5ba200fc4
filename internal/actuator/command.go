package actuator

import (
	"errors"
	"fmt"
)

// Op is the kind of a movement command.
type Op int

const (
	OpForward Op = iota + 1
	OpBackward
	OpTurnLeft
	OpTurnRight
	OpRetry
	OpSwitch
)

func (o Op) String() string {
	switch o {
	case OpForward:
		return "forward"
	case OpBackward:
		return "backward"
	case OpTurnLeft:
		return "turn_left"
	case OpTurnRight:
		return "turn_right"
	case OpRetry:
		return "retry"
	case OpSwitch:
		return "switch"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Command is one movement request as the caller made it: metres for moves,
// degrees for turns, before any splitting into wire frames.
type Command struct {
	Op    Op
	Value float64
}

func (c Command) String() string {
	switch c.Op {
	case OpForward, OpBackward:
		return fmt.Sprintf("%s(%.3f m)", c.Op, c.Value)
	case OpTurnLeft, OpTurnRight:
		return fmt.Sprintf("%s(%.1f deg)", c.Op, c.Value)
	default:
		return c.Op.String()
	}
}

// Outcome is how a command ended.
type Outcome int

const (
	// OutcomeOK means the controller acknowledged the whole command.
	OutcomeOK Outcome = iota
	// OutcomeFailed means the command never took effect (no reply); it is
	// logged and abandoned.
	OutcomeFailed
	// OutcomeInterrupted means the controller reported an obstruction part
	// way through the motion.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// TurnDirection records which way the robot last rotated.
type TurnDirection int

const (
	TurnNone TurnDirection = iota
	TurnLeft
	TurnRight
)

func (d TurnDirection) String() string {
	switch d {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "none"
	}
}

// ErrMovementInterrupted matches every *MovementInterruptedError.
var ErrMovementInterrupted = errors.New("movement interrupted")

// MovementInterruptedError is returned when the controller reports that a
// motion was stopped by an obstruction.
type MovementInterruptedError struct {
	Command Command
}

func (e *MovementInterruptedError) Error() string {
	return fmt.Sprintf("movement interrupted during %s", e.Command)
}

func (e *MovementInterruptedError) Is(target error) bool {
	return target == ErrMovementInterrupted
}
