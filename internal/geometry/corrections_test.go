package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bench = Calibration{
	CubeHalfWidth:          0.1225,
	CameraHorizontalOffset: 0.19,
	CameraAngularOffset:    0,
}

func TestCorrectAllCube_KnownValue(t *testing.T) {
	got := CorrectAllCube(NavVector{Distance: 1.5, Angle: 0.1}, 0.3, bench)

	assert.InDelta(t, 1.8061617239973193, got.Distance, 1e-9)
	assert.InDelta(t, 0.10954130374760168, got.Angle, 1e-9)
}

func TestCorrectAllCube_AppliesCameraTwistFirst(t *testing.T) {
	cal := bench
	cal.CameraAngularOffset = -0.053
	got := CorrectAllCube(NavVector{Distance: 1.5, Angle: 0.1}, 0.3, cal)

	assert.InDelta(t, 1.8070247505921513, got.Distance, 1e-9)
	assert.InDelta(t, 0.06209417531624846, got.Angle, 1e-9)
}

func TestCorrectAllCube_OrderMatters(t *testing.T) {
	in := NavVector{Distance: 1.5, Angle: 0.1}
	forward := CorrectAllCube(in, 0.3, bench)

	reversed := CorrectHorizontalPlacement(in, bench.CameraHorizontalOffset)
	reversed = CorrectCubeMarkerPlacement(reversed, 0.3, bench.CubeHalfWidth)
	reversed = CorrectRotationalPlacement(reversed, bench)

	assert.InDelta(t, 1.8065487695155298, reversed.Distance, 1e-9)
	assert.InDelta(t, 0.10881051688833691, reversed.Angle, 1e-9)
	assert.Greater(t, math.Abs(forward.Angle-reversed.Angle), 1e-4)
}

func TestCorrectRotationalPlacement(t *testing.T) {
	cal := Calibration{CameraAngularOffset: -0.053}
	got := CorrectRotationalPlacement(NavVector{Distance: 2, Angle: 0.2}, cal)
	assert.Equal(t, 2.0, got.Distance)
	assert.InDelta(t, 0.147, got.Angle, 1e-12)
}

func TestCorrectCubeMarkerPlacement_SquareOn(t *testing.T) {
	// A marker facing the camera squarely puts the centre straight behind it.
	got := CorrectCubeMarkerPlacement(NavVector{Distance: 1.0, Angle: 0.25}, 0, 0.1225)
	assert.InDelta(t, 1.1225, got.Distance, 1e-12)
	assert.InDelta(t, 0.25, got.Angle, 1e-12)
}

func TestCorrections_ZeroLengthIsIdentity(t *testing.T) {
	zero := NavVector{Distance: 0, Angle: 0.4}
	assert.Equal(t, zero, CorrectCubeMarkerPlacement(zero, 0.3, 0))
	assert.Equal(t, zero, CorrectHorizontalPlacement(zero, 0))
	assert.Equal(t, zero, MarkerFromCubeCentre(zero, 0.3, 0.1225))
}

func TestCorrections_NeverNaN(t *testing.T) {
	for d := 0.0; d <= 6; d += 0.25 {
		for a := -math.Pi; a <= math.Pi; a += math.Pi / 16 {
			for beta := -math.Pi / 2; beta <= math.Pi/2; beta += math.Pi / 8 {
				got := CorrectAllCube(NavVector{Distance: d, Angle: a}, beta, bench)
				if math.IsNaN(got.Distance) || math.IsNaN(got.Angle) {
					t.Fatalf("CorrectAllCube(%v, %v, %v) = %v", d, a, beta, got)
				}
				if got.Distance < 0 {
					t.Fatalf("negative distance for d=%v a=%v beta=%v", d, a, beta)
				}
			}
		}
	}
}

func TestMarkerFromCubeCentre_RoundTrip(t *testing.T) {
	for _, centre := range []NavVector{
		{Distance: 0.8, Angle: 0},
		{Distance: 1.8, Angle: 0.4},
		{Distance: 3.2, Angle: -1.1},
		{Distance: 5.5, Angle: 2.0},
	} {
		for _, beta := range []float64{-1.2, -0.5, 0, 0.3, 1.0} {
			marker := MarkerFromCubeCentre(centre, beta, bench.CubeHalfWidth)
			require.Greater(t, marker.Distance, 0.0)

			back := CorrectCubeMarkerPlacement(marker, beta, bench.CubeHalfWidth)
			assert.InDelta(t, centre.Distance, back.Distance, 1e-9, "centre=%v beta=%v", centre, beta)
			assert.InDelta(t, centre.Angle, back.Angle, 1e-9, "centre=%v beta=%v", centre, beta)
		}
	}
}

func TestVectorToCorner(t *testing.T) {
	got := VectorToCorner(NavVector{Distance: 2, Angle: 0}, 0, 0)
	assert.InDelta(t, math.Sqrt(5), got.Distance, 1e-12)
	assert.InDelta(t, -math.Asin(1/math.Sqrt(5)), got.Angle, 1e-12)

	// Offsets wrap per wall.
	assert.Equal(t, VectorToCorner(NavVector{Distance: 2}, 0.2, 3), VectorToCorner(NavVector{Distance: 2}, 0.2, 10))
}

func TestCalibrationValidate(t *testing.T) {
	require.NoError(t, bench.Validate())
	assert.Error(t, Calibration{CubeHalfWidth: -1}.Validate())
	assert.Error(t, Calibration{CameraHorizontalOffset: -0.1}.Validate())
	assert.Error(t, Calibration{CameraAngularOffset: 1}.Validate())
}
