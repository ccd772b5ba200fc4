package camera

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cubenav/internal/marker"
)

const fixture = `[{"id":33,"type":"CUBE_A","distance":1.5,"bearing":0.1,"rotation":0.3}]
[]

[{"id":3,"type":"ARENA","distance":4,"bearing":-0.2,"rotation":0,"offset":3},{"id":40,"type":"B","distance":2,"bearing":0,"rotation":0}]
`

func TestLoadReplay_CyclesFrames(t *testing.T) {
	r, err := LoadReplay(strings.NewReader(fixture))
	require.NoError(t, err)
	ctx := context.Background()

	f1, err := r.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, f1, 1)
	assert.Equal(t, marker.TypeCubeA, f1[0].Type)

	f2, _ := r.Poll(ctx)
	assert.Empty(t, f2)

	f3, _ := r.Poll(ctx)
	require.Len(t, f3, 2)
	assert.Equal(t, 3, f3[0].Offset)
	assert.Equal(t, marker.TypeCubeB, f3[1].Type)

	again, _ := r.Poll(ctx)
	assert.Equal(t, f1, again)
}

func TestLoadReplay_Errors(t *testing.T) {
	_, err := LoadReplay(strings.NewReader(""))
	assert.Error(t, err)

	_, err = LoadReplay(strings.NewReader("[]\n{not json}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	r, err := LoadReplayFile(path)
	require.NoError(t, err)
	assert.Len(t, r.frames, 3)

	_, err = LoadReplayFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestReplay_CancelledContext(t *testing.T) {
	r, err := NewReplay([][]marker.Observation{{}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Poll(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFunc(t *testing.T) {
	var c Camera = Func(func(context.Context) ([]marker.Observation, error) {
		return []marker.Observation{{ID: 7}}, nil
	})
	got, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got[0].ID)
}
