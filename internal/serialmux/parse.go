package serialmux

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame is one command on the wire: a one-character opcode optionally
// followed by a single data byte.
type Frame struct {
	Op       byte
	Value    byte
	HasValue bool
}

// NewFrame builds a frame carrying a data byte.
func NewFrame(op, value byte) Frame {
	return Frame{Op: op, Value: value, HasValue: true}
}

// Bytes returns the wire encoding.
func (f Frame) Bytes() []byte {
	if f.HasValue {
		return []byte{f.Op, f.Value}
	}
	return []byte{f.Op}
}

// String renders the frame the way ParseFrame reads it, e.g. "f 120".
func (f Frame) String() string {
	if f.HasValue {
		return fmt.Sprintf("%c %d", f.Op, f.Value)
	}
	return string(f.Op)
}

// ParseFrame reads the operator form of a frame: an opcode character,
// optionally followed by whitespace and a value in 0..255.
func ParseFrame(text string) (Frame, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields) > 2 {
		return Frame{}, fmt.Errorf("frame %q: want \"<op>\" or \"<op> <value>\"", text)
	}
	if len(fields[0]) != 1 {
		return Frame{}, fmt.Errorf("frame %q: opcode must be a single character", text)
	}
	f := Frame{Op: fields[0][0]}
	if len(fields) == 2 {
		v, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return Frame{}, fmt.Errorf("frame %q: value must be 0..255: %w", text, err)
		}
		f.Value = byte(v)
		f.HasValue = true
	}
	return f, nil
}
