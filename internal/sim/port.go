package sim

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/serialmux"
)

var errPortClosed = errors.New("sim: port closed")

// Port is a drive controller attached to a World. It implements
// serialmux.TimeoutSerialPorter: every write is one frame, and the reply byte
// is queued for the next read. A read with nothing queued returns no data,
// which the mux reports as a timeout.
type Port struct {
	world *World
	proto actuator.Protocol

	mu          sync.Mutex
	replies     bytes.Buffer
	closed      bool
	obstruction []float64
	mute        int
	remaining   motion
	written     []serialmux.Frame
}

// motion is the unfinished part of an interrupted command.
type motion struct {
	turn  float64 // radians
	drive float64 // metres
}

// NewPort returns a controller for world speaking proto.
func NewPort(world *World, proto actuator.Protocol) *Port {
	return &Port{world: world, proto: proto}
}

// Obstruct makes the next motion stop after fraction of it (0..1) and report
// an interruption. Calls queue up, one per motion.
func (p *Port) Obstruct(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.obstruction = append(p.obstruction, fraction)
}

// Mute makes the controller ignore the next n frames entirely.
func (p *Port) Mute(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mute += n
}

// Frames returns every frame written so far.
func (p *Port) Frames() []serialmux.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]serialmux.Frame(nil), p.written...)
}

// Write executes one frame.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	if len(b) == 0 {
		return 0, nil
	}
	f := serialmux.Frame{Op: b[0]}
	if len(b) > 1 {
		f.Value, f.HasValue = b[1], true
	}
	p.written = append(p.written, f)

	if p.mute > 0 {
		p.mute--
		monitoring.Tracef("sim: dropping %s", f)
		return len(b), nil
	}
	p.replies.WriteByte(p.execute(f))
	return len(b), nil
}

// execute runs f against the world and returns the reply byte.
func (p *Port) execute(f serialmux.Frame) byte {
	pr := p.proto
	v := float64(f.Value)
	switch f.Op {
	case pr.ForwardOp:
		return p.perform(motion{drive: v / 100})
	case pr.LongForwardOp:
		return p.perform(motion{drive: v * float64(pr.LongUnitCentimetres) / 100})
	case pr.BackwardOp:
		return p.perform(motion{drive: -v / 100})
	case pr.RightOp:
		return p.perform(motion{turn: geometry.Radians(v)})
	case pr.LeftOp:
		return p.perform(motion{turn: -geometry.Radians(v)})
	case pr.ContinueOp:
		m := p.remaining
		p.remaining = motion{}
		return p.perform(m)
	case pr.SwitchOp:
		return p.world.switchState()
	default:
		monitoring.Opsf("sim: unknown opcode %q", f.Op)
		return '?'
	}
}

// perform carries out m, honouring any queued obstruction and the arena
// walls. An obstruction leaves the rest of m for a continue; a wall does not.
func (p *Port) perform(m motion) byte {
	if m == (motion{}) {
		return 'k'
	}
	fraction := 1.0
	if len(p.obstruction) > 0 {
		fraction = p.obstruction[0]
		p.obstruction = p.obstruction[1:]
	}

	done := motion{turn: m.turn * fraction, drive: m.drive * fraction}
	if done.turn != 0 {
		p.world.turn(done.turn)
	}
	if done.drive != 0 {
		if _, blocked := p.world.drive(done.drive); blocked {
			monitoring.Diagf("sim: robot ran into a wall at %s", p.world.Pose())
			p.remaining = motion{}
			return p.proto.FailureSentinel
		}
	}
	if fraction < 1 {
		p.remaining = motion{turn: m.turn - done.turn, drive: m.drive - done.drive}
		monitoring.Diagf("sim: obstructed after %.0f%% at %s", fraction*100, p.world.Pose())
		return p.proto.FailureSentinel
	}
	return 'k'
}

// Read returns the queued reply, if any.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errPortClosed
	}
	if p.replies.Len() == 0 {
		return 0, nil
	}
	return p.replies.Read(b)
}

// SetReadTimeout is a no-op: replies are available immediately.
func (p *Port) SetReadTimeout(time.Duration) error { return nil }

// ResetInputBuffer discards replies nobody read.
func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies.Reset()
	return nil
}

// Close closes the port.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// PortFactory hands out a single Port whatever path is asked for, so dev mode
// can open the simulator the same way it opens hardware.
type PortFactory struct {
	Port *Port
}

// Open returns the simulator's port.
func (f PortFactory) Open(path string, _ serialmux.PortOptions) (serialmux.SerialPorter, error) {
	monitoring.Opsf("sim: opening simulated controller in place of %s", path)
	return f.Port, nil
}
