package actuator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/cubenav/internal/serialmux"
)

func TestDefaultProtocolIsValid(t *testing.T) {
	p := DefaultProtocol()
	assert.NoError(t, p.Validate())
	assert.Equal(t, []byte("fFblrcs"), p.Opcodes())
}

func TestProtocolValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Protocol)
	}{
		{"duplicate opcode", func(p *Protocol) { p.LeftOp = 'r' }},
		{"unset opcode", func(p *Protocol) { p.SwitchOp = 0 }},
		{"short range", func(p *Protocol) { p.MaxShortCentimetres = 300 }},
		{"long unit", func(p *Protocol) { p.LongUnitCentimetres = 1 }},
		{"resolution", func(p *Protocol) { p.MinResolutionCentimetres = 10 }},
		{"ack timeout", func(p *Protocol) { p.AckTimeout = 0 }},
		{"negative per metre", func(p *Protocol) { p.TimeoutPerMetre = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProtocol()
			tt.modify(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestTimeoutFor(t *testing.T) {
	p := DefaultProtocol()
	l := NewLink(nil, p)
	assert.Equal(t, p.AckTimeout+p.TimeoutPerMetre, l.timeoutFor(serialmux.NewFrame('f', 100)))
	assert.Equal(t, p.AckTimeout+2*p.TimeoutPerMetre, l.timeoutFor(serialmux.NewFrame('F', 20)))
	assert.Equal(t, p.AckTimeout+90*p.TimeoutPerDegree, l.timeoutFor(serialmux.NewFrame('r', 90)))
	assert.Equal(t, p.AckTimeout, l.timeoutFor(serialmux.Frame{Op: 'c'}))
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "turn_left(12.0 deg)", Command{Op: OpTurnLeft, Value: 12}.String())
	assert.Equal(t, "retry", Command{Op: OpRetry}.String())
	assert.Equal(t, "interrupted", OutcomeInterrupted.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
	assert.Equal(t, "none", TurnNone.String())
}
