package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/serialmux"
)

func newSimLink(t *testing.T, w *World) (*actuator.Link, *Port) {
	t.Helper()
	proto := actuator.DefaultProtocol()
	port := NewPort(w, proto)
	mux := serialmux.NewSerialMux[*Port](port)
	t.Cleanup(func() { mux.Close() })
	return actuator.NewLink(mux, proto), port
}

func TestPort_ForwardAndTurn(t *testing.T) {
	w := NewWorld(bench)
	w.SetPose(Pose{X: 4, Y: 2})
	link, port := newSimLink(t, w)
	ctx := context.Background()

	outcome, err := link.Forward(ctx, 2.8775)
	require.NoError(t, err)
	assert.Equal(t, actuator.OutcomeOK, outcome)
	assert.InDelta(t, 4.88, w.Pose().Y, 1e-9)
	assert.Equal(t, []serialmux.Frame{serialmux.NewFrame('F', 28), serialmux.NewFrame('f', 8)}, port.Frames())

	outcome, err = link.Turn(ctx, math.Pi/2)
	require.NoError(t, err)
	assert.Equal(t, actuator.OutcomeOK, outcome)
	assert.InDelta(t, math.Pi/2, w.Pose().Heading, 1e-9)

	_, err = link.Turn(ctx, -math.Pi)
	require.NoError(t, err)
	assert.InDelta(t, -math.Pi/2, w.Pose().Heading, 1e-9)

	_, err = link.Move(ctx, -1.5)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, w.Pose().X, 1e-9)
}

func TestPort_ObstructionAndContinue(t *testing.T) {
	w := NewWorld(bench)
	w.SetPose(Pose{X: 4, Y: 2})
	link, port := newSimLink(t, w)
	ctx := context.Background()

	port.Obstruct(0.25)
	outcome, err := link.Forward(ctx, 2)
	assert.Equal(t, actuator.OutcomeInterrupted, outcome)
	assert.True(t, errors.Is(err, actuator.ErrMovementInterrupted))
	assert.InDelta(t, 2.5, w.Pose().Y, 1e-9)

	outcome, err = link.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, actuator.OutcomeOK, outcome)
	assert.InDelta(t, 4, w.Pose().Y, 1e-9)
}

func TestPort_InterruptedTurnResumes(t *testing.T) {
	w := NewWorld(bench)
	link, port := newSimLink(t, w)
	ctx := context.Background()

	port.Obstruct(0.5)
	_, err := link.TurnLeft(ctx, 90)
	require.ErrorIs(t, err, actuator.ErrMovementInterrupted)
	assert.InDelta(t, -math.Pi/4, w.Pose().Heading, 1e-9)

	_, err = link.Retry(ctx)
	require.NoError(t, err)
	assert.InDelta(t, -math.Pi/2, w.Pose().Heading, 1e-9)
}

func TestPort_WallStopsTheRobot(t *testing.T) {
	w := NewWorld(bench)
	link, _ := newSimLink(t, w)
	ctx := context.Background()

	_, err := link.Forward(ctx, 5)
	require.ErrorIs(t, err, actuator.ErrMovementInterrupted)
	assert.InDelta(t, ArenaSize-wallClearance, w.Pose().Y, 1e-9)

	// Nothing is left to finish against a wall.
	outcome, err := link.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, actuator.OutcomeOK, outcome)
	assert.InDelta(t, ArenaSize-wallClearance, w.Pose().Y, 1e-9)
}

func TestPort_MutedFrameFails(t *testing.T) {
	w := NewWorld(bench)
	link, port := newSimLink(t, w)

	port.Mute(1)
	outcome, err := link.Forward(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, actuator.OutcomeFailed, outcome)
	assert.InDelta(t, ArenaSize/2, w.Pose().Y, 1e-9)
}

func TestPort_SwitchState(t *testing.T) {
	w := NewWorld(bench)
	w.PlaceInZone(3)
	link, _ := newSimLink(t, w)

	zone, err := link.SwitchState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, zone)
}

func TestPort_CustomSentinel(t *testing.T) {
	w := NewWorld(bench)
	proto := actuator.DefaultProtocol()
	proto.FailureSentinel = 'd'
	port := NewPort(w, proto)
	link := actuator.NewLink(serialmux.NewSerialMux[*Port](port), proto)

	port.Obstruct(0)
	_, err := link.Forward(context.Background(), 1)
	assert.ErrorIs(t, err, actuator.ErrMovementInterrupted)
}

func TestPort_Closed(t *testing.T) {
	port := NewPort(NewWorld(bench), actuator.DefaultProtocol())
	require.NoError(t, port.Close())
	_, err := port.Write([]byte{'f', 1})
	assert.Error(t, err)
	_, err = port.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestPortFactory(t *testing.T) {
	port := NewPort(NewWorld(bench), actuator.DefaultProtocol())
	mux, err := serialmux.NewSerialMuxFromFactory(PortFactory{Port: port}, "/dev/ttyACM0", serialmux.PortOptions{})
	require.NoError(t, err)
	defer mux.Close()

	reply, err := mux.Exchange(context.Background(), serialmux.Frame{Op: 's'}, true, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0), reply)
}
