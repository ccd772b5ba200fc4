package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var frame = []Observation{
	{ID: 40, Type: TypeCubeB, Distance: 2.1},
	{ID: 3, Type: TypeArena, Distance: 4.0},
	{ID: 33, Type: TypeCubeA, Distance: 1.4},
	{ID: 41, Type: TypeCubeB, Distance: 1.2},
	{ID: 9, Type: TypeArena, Distance: 2.5},
}

func ids(obs []Observation) []int {
	out := make([]int, len(obs))
	for i, o := range obs {
		out[i] = o.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	assert.Equal(t, []int{40, 41}, ids(Filter(frame, OfType(TypeCubeB))))
	assert.Equal(t, []int{33}, ids(Filter(frame, WithID(33))))
	assert.Len(t, Filter(frame, nil), len(frame))

	none := Filter(frame, WithID(99))
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFirst(t *testing.T) {
	o, ok := First(frame, OfType(TypeCubeB))
	assert.True(t, ok)
	assert.Equal(t, 40, o.ID)

	_, ok = First(frame, WithID(99))
	assert.False(t, ok)
}

func TestNearIsInclusive(t *testing.T) {
	p := Near(1.5, 0.5)
	assert.True(t, p(Observation{Distance: 1.0}))
	assert.True(t, p(Observation{Distance: 2.0}))
	assert.False(t, p(Observation{Distance: 2.01}))
}

func TestAllAndNotOnWall(t *testing.T) {
	p := All(OfType(TypeArena), Closer(3), NotOnWall(0))
	assert.Equal(t, []int{9}, ids(Filter(frame, p)))

	p = All(OfType(TypeArena), NotOnWall(1))
	assert.Equal(t, []int{3}, ids(Filter(frame, p)))

	assert.True(t, All()(Observation{}))
	assert.True(t, All(nil, Any)(Observation{}))
}

func TestSortByDistanceAndClosest(t *testing.T) {
	sorted := SortByDistance(frame)
	assert.Equal(t, []int{41, 33, 40, 9, 3}, ids(sorted))
	assert.Equal(t, 40, frame[0].ID, "input must not be reordered")

	c, ok := Closest(frame)
	assert.True(t, ok)
	assert.Equal(t, 41, c.ID)

	_, ok = Closest(nil)
	assert.False(t, ok)
}
