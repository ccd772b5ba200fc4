// Package camera defines the marker detector the navigator polls, plus a
// fixture-driven replay implementation for bench runs.
package camera

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/banshee-data/cubenav/internal/marker"
)

// Camera returns the markers visible right now. Repeated polls while the robot
// is stationary may differ; an empty slice is a normal answer.
type Camera interface {
	Poll(ctx context.Context) ([]marker.Observation, error)
}

// Func adapts a plain function to Camera.
type Func func(ctx context.Context) ([]marker.Observation, error)

// Poll calls f.
func (f Func) Poll(ctx context.Context) ([]marker.Observation, error) {
	return f(ctx)
}

// Replay plays back recorded frames in order, wrapping round at the end.
type Replay struct {
	mu     sync.Mutex
	frames [][]marker.Observation
	next   int
}

// NewReplay returns a Replay over frames. At least one frame is required.
func NewReplay(frames [][]marker.Observation) (*Replay, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("replay camera needs at least one frame")
	}
	return &Replay{frames: frames}, nil
}

// LoadReplay reads JSON-lines frames: each non-empty line is a JSON array of
// observations.
func LoadReplay(r io.Reader) (*Replay, error) {
	var frames [][]marker.Observation
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var f []marker.Observation
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("frame on line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	return NewReplay(frames)
}

// LoadReplayFile is LoadReplay on a file path.
func LoadReplayFile(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay fixture: %w", err)
	}
	defer f.Close()
	return LoadReplay(f)
}

// Poll returns the next frame.
func (r *Replay) Poll(ctx context.Context) ([]marker.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.frames[r.next]
	r.next = (r.next + 1) % len(r.frames)
	out := make([]marker.Observation, len(f))
	copy(out, f)
	return out, nil
}
