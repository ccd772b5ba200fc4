package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/marker"
)

func TestRouteBCA_NothingInSight(t *testing.T) {
	r, drive := newTestRobot(nil)

	require.NoError(t, RouteBCA(context.Background(), r))
	assert.Equal(t, []float64{3.25}, drive.moves)

	// -90 beside B, -45 towards A, then a cone search that unwinds itself
	require.GreaterOrEqual(t, len(drive.turns), 2)
	assert.InDelta(t, geometry.Radians(-90), drive.turns[0], 1e-12)
	assert.InDelta(t, geometry.Radians(-45), drive.turns[1], 1e-12)
	total := 0.0
	for _, a := range drive.turns[2:] {
		total += a
	}
	assert.InDelta(t, 0, total, 1e-9)
}

func TestRouteBCA_BThenNothing(t *testing.T) {
	polls := 0
	r, drive := newTestRobot(func(context.Context) ([]marker.Observation, error) {
		polls++
		if polls == 1 {
			return []marker.Observation{{ID: 12, Type: marker.TypeCubeB, Distance: 1.3, Bearing: 0.05}}, nil
		}
		return nil, nil
	})

	require.NoError(t, RouteBCA(context.Background(), r))
	require.GreaterOrEqual(t, len(drive.moves), 2)
	assert.Equal(t, 3.25, drive.moves[0])
	// onto B, then no C or A: 1.5 m on, turn, 3 m home
	assert.Equal(t, []float64{1.5, 3}, drive.moves[len(drive.moves)-2:])
}

func TestAlignAndPrintRoutes(t *testing.T) {
	r, drive := newTestRobot(func(context.Context) ([]marker.Observation, error) {
		return []marker.Observation{
			{ID: 4, Type: marker.TypeCubeC, Distance: 2},
			{ID: 20, Type: marker.TypeArena, Distance: 4},
		}, nil
	})
	ctx := context.Background()
	assert.NoError(t, alignCubes(ctx, r))
	assert.NoError(t, printMarkers(ctx, r))
	assert.NoError(t, printVectors(ctx, r))
	assert.Empty(t, drive.moves)
	assert.Empty(t, drive.turns)
}

func TestCollectNearest_GoesHomeAfterwards(t *testing.T) {
	polls := 0
	r, drive := newTestRobot(func(context.Context) ([]marker.Observation, error) {
		polls++
		if polls == 1 {
			return []marker.Observation{{ID: 4, Type: marker.TypeCubeA, Distance: 1}}, nil
		}
		return nil, nil
	})

	require.NoError(t, collectNearest(context.Background(), r))
	require.Len(t, drive.moves, 2)
	assert.Equal(t, 3.5, drive.moves[1], "blind drive home")
}
