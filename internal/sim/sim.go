// Package sim runs a set of driver agents on one road at a fixed tick.
//
// A single goroutine owns the agents. Runtime tunables are queued with
// Submit and applied between ticks; readers get copies of the last
// published Frame.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/driver"
	"github.com/banshee-data/roadagent/internal/geom"
	"github.com/banshee-data/roadagent/internal/monitoring"
	"github.com/banshee-data/roadagent/internal/path"
	"github.com/banshee-data/roadagent/internal/scenario"
	"github.com/banshee-data/roadagent/internal/timeutil"
	"github.com/banshee-data/roadagent/internal/vehicle"
	"github.com/banshee-data/roadagent/internal/vehicle/canbus"
	"github.com/banshee-data/roadagent/internal/world"
)

var (
	// ErrUnknownAgent is returned for a name or ID no agent carries.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrQueueFull is returned when too many commands are pending.
	ErrQueueFull = errors.New("command queue full")
)

const commandQueueSize = 64

var logf = monitoring.Prefixed("sim")

// Frame is everything published after one tick.
type Frame struct {
	Tick   uint64            `json:"tick"`
	Time   float64           `json:"time"`
	Agents []driver.Snapshot `json:"agents"`
}

// Observer receives every frame from the simulation goroutine. A returned
// error stops the run.
type Observer interface {
	ObserveFrame(ctx context.Context, f Frame) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, f Frame) error

func (fn ObserverFunc) ObserveFrame(ctx context.Context, f Frame) error { return fn(ctx, f) }

// Options tune how a scenario is instantiated.
type Options struct {
	Params      driver.Params
	Personality driver.Personality
	Body        vehicle.BodyConfig
	// CAN, when set, mirrors the first car's commands onto the bus.
	CAN canbus.FrameWriter
	// Pace is the wall-clock interval between realtime ticks. Zero means
	// the scenario dt.
	Pace time.Duration
}

// DefaultOptions returns the stock driver and body tuning.
func DefaultOptions() Options {
	return Options{
		Params:      driver.DefaultParams(),
		Personality: driver.DefaultPersonality(),
		Body:        vehicle.DefaultBodyConfig(),
	}
}

type car struct {
	agent  *driver.Agent
	body   *vehicle.Body
	mirror *canbus.Mirror
}

// mirroredBody routes actuator calls through a CAN mirror while the pose
// still comes from the body.
type mirroredBody struct {
	*canbus.Mirror
	body *vehicle.Body
}

func (m mirroredBody) Pose() geom.Pose        { return m.body.Pose() }
func (m mirroredBody) MaxSteerAngle() float64 { return m.body.MaxSteerAngle() }

type command struct {
	car   *car
	apply func(*driver.Agent)
}

// Sim is one running scenario.
type Sim struct {
	name  string
	dt    float64
	pace  time.Duration
	ticks int
	road  *path.Polyline
	reg   *world.Registry
	cars  []*car
	byKey map[string]*car

	cmds      chan command
	observers []Observer
	stats     *stats

	tick  uint64
	prev  []driver.State
	mu    sync.RWMutex
	frame Frame
}

// New instantiates sc. Stop signs are placed beside the road facing
// oncoming traffic; cars start on their lane centre heading along the road.
func New(sc scenario.Scenario, opts Options) (*Sim, error) {
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid driver params: %w", err)
	}
	if opts.Pace < 0 {
		return nil, fmt.Errorf("pace must not be negative, got %s", opts.Pace)
	}
	road, err := sc.BuildRoad()
	if err != nil {
		return nil, err
	}

	s := &Sim{
		name:  sc.Name,
		dt:    sc.DT,
		pace:  opts.Pace,
		ticks: sc.Ticks,
		road:  road,
		reg:   world.NewRegistry(),
		byKey: make(map[string]*car, 2*len(sc.Cars)),
		cmds:  make(chan command, commandQueueSize),
	}

	for _, ss := range sc.StopSigns {
		at := ss.At
		pos := r3.Add(road.PointAt(at), r3.Scale(ss.SignOffset(), road.NormalAt(at)))
		s.reg.Add(world.NewStopSign(geom.PoseFacing(pos, r3.Scale(-1, road.TangentAt(at)))))
	}

	for i, c := range sc.Cars {
		pers := opts.Personality
		if c.Patience != nil {
			pers.Patience = *c.Patience
		}
		if c.Recklessness != nil {
			pers.Recklessness = *c.Recklessness
		}
		side := 1.0
		if c.LeftLane {
			side = -1
		}
		lane := r3.Scale(side*opts.Params.LaneOffset, road.NormalAt(c.Start))
		body := vehicle.NewBody(opts.Body, geom.PoseFacing(r3.Add(road.PointAt(c.Start), lane), road.TangentAt(c.Start)))
		body.SetVelocity(c.Speed / vehicle.SpeedScale)

		cr := &car{body: body}
		var veh driver.Vehicle = body
		if i == 0 && opts.CAN != nil {
			cr.mirror = canbus.NewMirror(body, opts.CAN)
			veh = mirroredBody{Mirror: cr.mirror, body: body}
		}
		cr.agent = driver.NewAgent(driver.Config{
			Name:        c.Name,
			Params:      opts.Params,
			Personality: pers,
			LeftLane:    c.LeftLane,
		}, veh, road, s.reg)
		if c.Cruise != nil {
			cr.agent.SetDesiredCruiseSpeed(*c.Cruise)
		}
		s.reg.Add(cr.agent)
		s.cars = append(s.cars, cr)
		s.byKey[c.Name] = cr
		s.byKey[cr.agent.ID().String()] = cr
	}
	s.prev = make([]driver.State, len(s.cars))
	s.stats = newStats(len(s.cars))
	s.frame = s.buildFrame()
	return s, nil
}

// AddObserver registers o. Call before Run.
func (s *Sim) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Name returns the scenario name.
func (s *Sim) Name() string { return s.name }

// DT returns the tick length in seconds.
func (s *Sim) DT() float64 { return s.dt }

// Road returns the road the agents drive on.
func (s *Sim) Road() *path.Polyline { return s.road }

// Registry exposes the world the agents sense.
func (s *Sim) Registry() *world.Registry { return s.reg }

// AgentNames lists the agents in tick order.
func (s *Sim) AgentNames() []string {
	names := make([]string, len(s.cars))
	for i, c := range s.cars {
		names[i] = c.agent.Name()
	}
	return names
}

// Submit queues fn to run against the named agent before the next tick.
// key is an agent name or ID.
func (s *Sim) Submit(key string, fn func(*driver.Agent)) error {
	c, ok := s.byKey[key]
	if !ok {
		if id, err := uuid.Parse(key); err == nil {
			c, ok = s.byKey[id.String()]
		}
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, key)
	}
	select {
	case s.cmds <- command{car: c, apply: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Frame returns a copy of the last published frame.
func (s *Sim) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.frame
	f.Agents = append([]driver.Snapshot(nil), s.frame.Agents...)
	return f
}

// Snapshot returns the last snapshot of one agent.
func (s *Sim) Snapshot(key string) (driver.Snapshot, error) {
	f := s.Frame()
	for _, a := range f.Agents {
		if a.Name == key || a.ID.String() == key {
			return a, nil
		}
	}
	return driver.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownAgent, key)
}

// Summary reports statistics over every tick run so far.
func (s *Sim) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.summary(s.AgentNames(), s.dt)
}

// Step applies queued commands, ticks every agent, then advances every
// body. All agents sense the same world state within a tick.
func (s *Sim) Step(ctx context.Context) error {
	s.drain()
	for _, c := range s.cars {
		c.agent.Tick(s.dt)
	}
	for _, c := range s.cars {
		c.body.Step(s.dt)
		if c.mirror != nil {
			if err := c.mirror.Flush(ctx); err != nil {
				return fmt.Errorf("tick %d: %w", s.tick+1, err)
			}
		}
	}

	s.tick++
	f := s.buildFrame()
	for i, a := range f.Agents {
		if a.NextState != s.prev[i] {
			monitoring.Debugf("[sim] %s: %s -> %s at arc %.1f", a.Name, s.prev[i], a.NextState, a.Arc)
			s.prev[i] = a.NextState
		}
	}
	s.mu.Lock()
	s.frame = f
	s.stats.add(f)
	s.mu.Unlock()

	for _, o := range s.observers {
		if err := o.ObserveFrame(ctx, f); err != nil {
			return fmt.Errorf("observer at tick %d: %w", f.Tick, err)
		}
	}
	return nil
}

func (s *Sim) drain() {
	for {
		select {
		case cmd := <-s.cmds:
			cmd.apply(cmd.car.agent)
		default:
			return
		}
	}
}

func (s *Sim) buildFrame() Frame {
	f := Frame{
		Tick:   s.tick,
		Time:   float64(s.tick) * s.dt,
		Agents: make([]driver.Snapshot, len(s.cars)),
	}
	for i, c := range s.cars {
		f.Agents[i] = c.agent.Snapshot()
	}
	return f
}

// Run steps until the scenario's tick budget is spent or ctx is done.
// With realtime set, ticks are paced by clock at Options.Pace (default the
// scenario dt); otherwise they run back to back. Cancellation is not an error.
func (s *Sim) Run(ctx context.Context, clock timeutil.Clock, realtime bool) error {
	logf("running %q: %d cars, dt %.3fs, realtime %v", s.name, len(s.cars), s.dt, realtime)
	start := clock.Now()
	defer func() {
		logf("stopped %q after %d ticks (%s wall)", s.name, s.tick, clock.Since(start).Round(time.Millisecond))
	}()

	done := func() bool { return s.ticks > 0 && s.tick >= uint64(s.ticks) }

	if !realtime {
		for !done() {
			if ctx.Err() != nil {
				return nil
			}
			if err := s.Step(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	pace := s.pace
	if pace == 0 {
		pace = time.Duration(s.dt * float64(time.Second))
	}
	ticker := clock.NewTicker(pace)
	defer ticker.Stop()
	for !done() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			if err := s.Step(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
