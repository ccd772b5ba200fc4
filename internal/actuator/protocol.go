// Package actuator drives the wheels through the mbed command protocol.
//
// Every command is a one-character opcode and an optional magnitude byte; the
// controller answers each with one byte. A configurable sentinel byte means
// the motion was interrupted (the robot hit something); any other byte is
// success. No answer within the timeout means the command never took effect.
package actuator

import (
	"fmt"
	"time"
)

// Protocol describes one firmware revision's command set.
type Protocol struct {
	ForwardOp     byte // short forward, centimetres
	LongForwardOp byte // long forward, LongUnitCentimetres per step
	BackwardOp    byte // backward, centimetres
	LeftOp        byte // turn left, degrees
	RightOp       byte // turn right, degrees
	ContinueOp    byte // resume an interrupted motion
	SwitchOp      byte // read the DIP switch

	FailureSentinel byte

	MaxShortCentimetres      int
	LongUnitCentimetres      int
	MinResolutionCentimetres int

	AckTimeout       time.Duration
	TimeoutPerMetre  time.Duration
	TimeoutPerDegree time.Duration
}

// maxValue is the largest magnitude one data byte carries.
const maxValue = 255

// DefaultProtocol is the 2017 stepper firmware.
func DefaultProtocol() Protocol {
	return Protocol{
		ForwardOp:                'f',
		LongForwardOp:            'F',
		BackwardOp:               'b',
		LeftOp:                   'l',
		RightOp:                  'r',
		ContinueOp:               'c',
		SwitchOp:                 's',
		FailureSentinel:          'e',
		MaxShortCentimetres:      maxValue,
		LongUnitCentimetres:      10,
		MinResolutionCentimetres: 2,
		AckTimeout:               500 * time.Millisecond,
		TimeoutPerMetre:          4 * time.Second,
		TimeoutPerDegree:         25 * time.Millisecond,
	}
}

// Opcodes lists every opcode the protocol uses.
func (p Protocol) Opcodes() []byte {
	return []byte{p.ForwardOp, p.LongForwardOp, p.BackwardOp, p.LeftOp, p.RightOp, p.ContinueOp, p.SwitchOp}
}

// Validate checks the protocol is internally consistent.
func (p Protocol) Validate() error {
	seen := make(map[byte]bool)
	for _, op := range p.Opcodes() {
		if op == 0 {
			return fmt.Errorf("protocol has an unset opcode")
		}
		if seen[op] {
			return fmt.Errorf("opcode %q is used twice", op)
		}
		seen[op] = true
	}
	if p.MaxShortCentimetres <= 0 || p.MaxShortCentimetres > maxValue {
		return fmt.Errorf("max_short_cm must be in 1..%d, got %d", maxValue, p.MaxShortCentimetres)
	}
	if p.LongUnitCentimetres <= 1 {
		return fmt.Errorf("long_unit_cm must be greater than 1, got %d", p.LongUnitCentimetres)
	}
	if p.MinResolutionCentimetres < 1 || p.MinResolutionCentimetres >= p.LongUnitCentimetres {
		return fmt.Errorf("min_resolution_cm must be in 1..%d, got %d", p.LongUnitCentimetres-1, p.MinResolutionCentimetres)
	}
	if p.AckTimeout <= 0 {
		return fmt.Errorf("ack_timeout must be positive")
	}
	if p.TimeoutPerMetre < 0 || p.TimeoutPerDegree < 0 {
		return fmt.Errorf("per-unit timeouts must not be negative")
	}
	return nil
}
