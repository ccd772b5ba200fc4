package actuator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/serialmux"
)

// Exchanger sends one frame and waits for the reply byte. *serialmux.SerialMux
// and *serialmux.DisabledSerialMux satisfy it.
type Exchanger interface {
	Exchange(ctx context.Context, frame serialmux.Frame, wantReply bool, timeout time.Duration) (byte, error)
}

// Recorder is told about every command the link finishes.
type Recorder interface {
	RecordCommand(cmd Command, outcome Outcome)
}

// Link is the robot's drive. It is not safe for concurrent use: the control
// loop owns it, and the serial mux underneath keeps the wire one frame at a
// time for anything else sharing the port.
//
// Every movement method returns an Outcome. OutcomeFailed comes with a nil
// error: the command is logged and abandoned. OutcomeInterrupted comes with a
// *MovementInterruptedError. Context errors are returned as they are.
type Link struct {
	ex       Exchanger
	proto    Protocol
	recorder Recorder

	lastTurn TurnDirection

	// State of the last interrupted command, consumed by Retry.
	interrupted *Command
	stalled     serialmux.Frame
	pending     []serialmux.Frame
}

// NewLink returns a Link speaking proto over ex.
func NewLink(ex Exchanger, proto Protocol) *Link {
	return &Link{ex: ex, proto: proto}
}

// SetRecorder installs r; nil disables recording.
func (l *Link) SetRecorder(r Recorder) {
	l.recorder = r
}

// Protocol returns the protocol the link speaks.
func (l *Link) Protocol() Protocol {
	return l.proto
}

// LastTurn returns the direction of the most recent issued turn.
func (l *Link) LastTurn() TurnDirection {
	return l.lastTurn
}

// Move goes forwards for positive metres and backwards for negative.
func (l *Link) Move(ctx context.Context, metres float64) (Outcome, error) {
	if metres < 0 {
		return l.Backward(ctx, -metres)
	}
	return l.Forward(ctx, metres)
}

// Forward drives metres straight ahead. Distances beyond a single short
// command go out as one long command in LongUnitCentimetres steps plus a
// short remainder; remainders under MinResolutionCentimetres are dropped.
func (l *Link) Forward(ctx context.Context, metres float64) (Outcome, error) {
	cmd := Command{Op: OpForward, Value: metres}
	if !finite(metres) {
		return l.reject(cmd)
	}
	if metres < 0 {
		monitoring.Opsf("actuator: forward passed a negative distance (%.3f m), inverting", metres)
		metres = -metres
		cmd.Value = metres
	}
	return l.run(ctx, cmd, l.forwardFrames(metres))
}

func (l *Link) forwardFrames(metres float64) []serialmux.Frame {
	p := l.proto
	cm := int(math.Round(metres * 100))
	if cm <= 0 {
		return nil
	}
	if cm <= p.MaxShortCentimetres {
		return []serialmux.Frame{serialmux.NewFrame(p.ForwardOp, byte(cm))}
	}

	steps, rem := cm/p.LongUnitCentimetres, cm%p.LongUnitCentimetres
	if steps > maxValue {
		monitoring.Opsf("actuator: forward %d cm exceeds the long command range, clamping to %d cm",
			cm, maxValue*p.LongUnitCentimetres)
		steps, rem = maxValue, 0
	}
	frames := []serialmux.Frame{serialmux.NewFrame(p.LongForwardOp, byte(steps))}
	switch {
	case rem >= p.MinResolutionCentimetres:
		frames = append(frames, serialmux.NewFrame(p.ForwardOp, byte(rem)))
	case rem > 0:
		monitoring.Opsf("actuator: dropping %d cm remainder of %d cm forward, below %d cm resolution",
			rem, cm, p.MinResolutionCentimetres)
	}
	monitoring.Diagf("actuator: forward %d cm as %v", cm, frames)
	return frames
}

// Backward reverses metres, in chunks of at most one data byte of centimetres.
func (l *Link) Backward(ctx context.Context, metres float64) (Outcome, error) {
	cmd := Command{Op: OpBackward, Value: metres}
	if !finite(metres) {
		return l.reject(cmd)
	}
	metres = math.Abs(metres)
	cm := int(math.Round(metres * 100))
	cmd.Value = metres
	return l.run(ctx, cmd, chunked(l.proto.BackwardOp, cm))
}

// Turn rotates by angle radians, positive to the right, taking whichever way
// round is shorter.
func (l *Link) Turn(ctx context.Context, angle float64) (Outcome, error) {
	if !finite(angle) {
		return l.reject(Command{Op: OpTurnRight, Value: geometry.Degrees(angle)})
	}
	normalized := math.Mod(geometry.Degrees(angle), 360)
	if normalized < 0 {
		normalized += 360
	}
	if normalized > 180 {
		return l.TurnLeft(ctx, 360-normalized)
	}
	return l.TurnRight(ctx, normalized)
}

// TurnLeft rotates anticlockwise by degrees, however large.
func (l *Link) TurnLeft(ctx context.Context, degrees float64) (Outcome, error) {
	return l.turn(ctx, Command{Op: OpTurnLeft, Value: degrees}, l.proto.LeftOp, TurnLeft)
}

// TurnRight rotates clockwise by degrees, however large.
func (l *Link) TurnRight(ctx context.Context, degrees float64) (Outcome, error) {
	return l.turn(ctx, Command{Op: OpTurnRight, Value: degrees}, l.proto.RightOp, TurnRight)
}

func (l *Link) turn(ctx context.Context, cmd Command, op byte, dir TurnDirection) (Outcome, error) {
	if !finite(cmd.Value) {
		return l.reject(cmd)
	}
	deg := int(math.Round(math.Abs(cmd.Value)))
	if deg == 0 {
		return OutcomeOK, nil
	}
	monitoring.Diagf("actuator: turning %s %d degrees", dir, deg)
	l.lastTurn = dir
	return l.run(ctx, cmd, chunked(op, deg))
}

// IssuedAngle returns angle rounded to the whole degrees Turn sends. Angles
// already within a nanodegree of a whole degree come back unchanged, so
// sums of issued angles can be undone exactly.
func IssuedAngle(angle float64) float64 {
	deg := geometry.Degrees(angle)
	whole := math.Round(deg)
	switch {
	case whole == 0:
		return 0
	case math.Abs(deg-whole) < 1e-9:
		return angle
	}
	return geometry.Radians(whole)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// reject abandons a command whose magnitude cannot be encoded.
func (l *Link) reject(cmd Command) (Outcome, error) {
	monitoring.Opsf("actuator: %s has no finite magnitude, not sending it", cmd)
	l.record(cmd, OutcomeFailed)
	return OutcomeFailed, nil
}

// chunked splits n into frames of op carrying at most maxValue each.
func chunked(op byte, n int) []serialmux.Frame {
	var frames []serialmux.Frame
	for n > 0 {
		v := n
		if v > maxValue {
			v = maxValue
		}
		frames = append(frames, serialmux.NewFrame(op, byte(v)))
		n -= v
	}
	return frames
}

// Retry asks the controller to carry on with the interrupted motion and then
// sends whatever part of a split command had not gone out yet. With nothing
// interrupted it still sends the continue opcode.
func (l *Link) Retry(ctx context.Context) (Outcome, error) {
	cmd := Command{Op: OpRetry}
	timeout := l.proto.AckTimeout
	if l.interrupted != nil {
		cmd = *l.interrupted
		timeout = l.timeoutFor(l.stalled)
	}

	outcome, err := l.send(ctx, serialmux.Frame{Op: l.proto.ContinueOp}, timeout)
	switch {
	case err != nil:
		return outcome, err
	case outcome == OutcomeInterrupted:
		l.record(cmd, outcome)
		return outcome, &MovementInterruptedError{Command: cmd}
	case outcome == OutcomeFailed:
		monitoring.Opsf("actuator: continue of %s got no reply, abandoning it", cmd)
		l.clearInterrupted()
		l.record(cmd, outcome)
		return outcome, nil
	}

	pending := l.pending
	l.clearInterrupted()
	if len(pending) == 0 {
		l.record(cmd, OutcomeOK)
		return OutcomeOK, nil
	}
	monitoring.Diagf("actuator: resumed %s, sending remaining %v", cmd, pending)
	return l.run(ctx, cmd, pending)
}

// SwitchState reads the DIP switch.
func (l *Link) SwitchState(ctx context.Context) (int, error) {
	reply, err := l.ex.Exchange(ctx, serialmux.Frame{Op: l.proto.SwitchOp}, true, l.proto.AckTimeout)
	if err != nil {
		return 0, fmt.Errorf("read switch state: %w", err)
	}
	return int(reply), nil
}

// run sends frames in order. A new command always discards leftovers from an
// earlier interrupted one.
func (l *Link) run(ctx context.Context, cmd Command, frames []serialmux.Frame) (Outcome, error) {
	l.clearInterrupted()
	for i, f := range frames {
		outcome, err := l.send(ctx, f, l.timeoutFor(f))
		if err != nil {
			return outcome, err
		}
		switch outcome {
		case OutcomeInterrupted:
			c := cmd
			l.interrupted = &c
			l.stalled = f
			l.pending = append([]serialmux.Frame(nil), frames[i+1:]...)
			monitoring.Opsf("actuator: %s interrupted at %s", cmd, f)
			l.record(cmd, outcome)
			return outcome, &MovementInterruptedError{Command: cmd}
		case OutcomeFailed:
			if rest := len(frames) - i - 1; rest > 0 {
				monitoring.Opsf("actuator: abandoning %d remaining frame(s) of %s", rest, cmd)
			}
			l.record(cmd, outcome)
			return outcome, nil
		}
	}
	l.record(cmd, OutcomeOK)
	return OutcomeOK, nil
}

// send performs one exchange and classifies the reply.
func (l *Link) send(ctx context.Context, f serialmux.Frame, timeout time.Duration) (Outcome, error) {
	reply, err := l.ex.Exchange(ctx, f, true, timeout)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return OutcomeFailed, err
		}
		monitoring.Opsf("actuator: %s not delivered: %v", f, err)
		return OutcomeFailed, nil
	}
	if reply == l.proto.FailureSentinel {
		return OutcomeInterrupted, nil
	}
	return OutcomeOK, nil
}

// timeoutFor allows for the time the motion itself takes before the
// controller replies.
func (l *Link) timeoutFor(f serialmux.Frame) time.Duration {
	p := l.proto
	t := p.AckTimeout
	v := float64(f.Value)
	switch f.Op {
	case p.ForwardOp, p.BackwardOp:
		t += time.Duration(v / 100 * float64(p.TimeoutPerMetre))
	case p.LongForwardOp:
		t += time.Duration(v * float64(p.LongUnitCentimetres) / 100 * float64(p.TimeoutPerMetre))
	case p.LeftOp, p.RightOp:
		t += time.Duration(v * float64(p.TimeoutPerDegree))
	}
	return t
}

func (l *Link) clearInterrupted() {
	l.interrupted = nil
	l.stalled = serialmux.Frame{}
	l.pending = nil
}

func (l *Link) record(cmd Command, outcome Outcome) {
	if l.recorder != nil {
		l.recorder.RecordCommand(cmd, outcome)
	}
}
