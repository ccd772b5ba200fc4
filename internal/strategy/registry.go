// Package strategy holds the named routes a match can run. A route sequences
// the navigator's primitives; the registry maps the name chosen in config or
// on the command line to the route.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/cubenav/internal/actuator"
	"github.com/banshee-data/cubenav/internal/geometry"
	"github.com/banshee-data/cubenav/internal/monitoring"
	"github.com/banshee-data/cubenav/internal/navigator"
	"github.com/banshee-data/cubenav/internal/timeutil"
)

// ErrUnknownRoute is returned by Lookup for names nobody registered.
var ErrUnknownRoute = errors.New("unknown route")

// Robot is what a route drives.
type Robot struct {
	Nav   *navigator.Navigator
	Clock timeutil.Clock
	// Opposite mirrors every turn, for starting corners laid out the other
	// way round.
	Opposite bool
}

// Route is one match plan.
type Route func(ctx context.Context, r *Robot) error

// Registry maps route names to routes.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]Route
}

func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]Route)}
}

// Register adds route under name. Names are unique.
func (reg *Registry) Register(name string, route Route) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("route name must not be empty")
	}
	if route == nil {
		return fmt.Errorf("route %q is nil", name)
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.routes[name]; ok {
		return fmt.Errorf("route %q already registered", name)
	}
	reg.routes[name] = route
	return nil
}

// Lookup returns the route registered under name.
func (reg *Registry) Lookup(name string) (Route, error) {
	reg.mu.RLock()
	route, ok := reg.routes[name]
	reg.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownRoute, name, strings.Join(reg.Names(), ", "))
	}
	return route, nil
}

// Names returns the registered names in order.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.routes))
	for name := range reg.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run looks up name and runs it against r.
func (reg *Registry) Run(ctx context.Context, name string, r *Robot) error {
	route, err := reg.Lookup(name)
	if err != nil {
		return err
	}
	monitoring.Opsf("strategy: starting route %q", name)
	start := r.Clock.Now()
	err = route(ctx, r)
	monitoring.Opsf("strategy: route %q exited after %s (err=%v)", name, r.Clock.Since(start).Round(time.Millisecond), err)
	return err
}

func (r *Robot) factor() float64 {
	if r.Opposite {
		return -1
	}
	return 1
}

// turn turns by degrees, mirrored when Opposite is set.
func (r *Robot) turn(ctx context.Context, degrees float64) error {
	_, err := r.Nav.Drive.Turn(ctx, geometry.Radians(degrees*r.factor()))
	return err
}

func (r *Robot) move(ctx context.Context, metres float64) error {
	_, err := r.Nav.Drive.Move(ctx, metres)
	return err
}

func (r *Robot) moveContinue(ctx context.Context, metres float64) error {
	_, err := r.Nav.MoveContinue(ctx, metres)
	return err
}

// moveIgnoringCrash is used to back away from whatever the robot just hit.
func (r *Robot) moveIgnoringCrash(ctx context.Context, metres float64) error {
	_, err := r.Nav.Drive.Move(ctx, metres)
	if errors.Is(err, actuator.ErrMovementInterrupted) {
		monitoring.Diagf("strategy: ignoring crash while backing off %.2f m", metres)
		return nil
	}
	return err
}

func (r *Robot) approach() navigator.ApproachOptions {
	return r.Nav.Config.Approach
}

func (r *Robot) approachContinuing() navigator.ApproachOptions {
	opts := r.Nav.Config.Approach
	opts.CrashContinue = true
	return opts
}
