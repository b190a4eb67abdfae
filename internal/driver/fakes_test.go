package driver

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/geom"
	"github.com/banshee-data/roadagent/internal/path"
	"github.com/banshee-data/roadagent/internal/vehicle"
	"github.com/banshee-data/roadagent/internal/world"
)

// stubVehicle holds a fixed pose and speed and records commands.
type stubVehicle struct {
	pose  geom.Pose
	speed float64
	cmd   vehicle.Command
}

func (v *stubVehicle) SetThrottle(x float64)  { v.cmd.Throttle = x }
func (v *stubVehicle) SetBrake(x float64)     { v.cmd.Brake = x }
func (v *stubVehicle) SetSteering(x float64)  { v.cmd.Steering = x }
func (v *stubVehicle) Speed() float64         { return v.speed }
func (v *stubVehicle) Pose() geom.Pose        { return v.pose }
func (v *stubVehicle) MaxSteerAngle() float64 { return 30 }

// stubCar is another car as seen through the registry.
type stubCar struct {
	id       uuid.UUID
	pos      r3.Vec
	right    bool
	changing bool
	speed    float64
	throttle float64
	brake    float64
}

func newStubCar(z float64) *stubCar {
	return &stubCar{id: uuid.New(), pos: r3.Vec{Z: z}, right: true}
}

func (c *stubCar) ID() uuid.UUID         { return c.id }
func (c *stubCar) Tag() world.Tag        { return world.TagCar }
func (c *stubCar) Pose() geom.Pose       { return geom.PoseFromHeading(c.pos, 0) }
func (c *stubCar) UseRightLane() bool    { return c.right }
func (c *stubCar) IsChangingLanes() bool { return c.changing }
func (c *stubCar) Speed() float64        { return c.speed }
func (c *stubCar) Throttle() float64     { return c.throttle }
func (c *stubCar) Brake() float64        { return c.brake }

// straightRoad runs along +Z from z=-10, so arc = z + 10.
func straightRoad(t *testing.T) *path.Polyline {
	t.Helper()
	p, err := path.NewPolyline([]r3.Vec{{Z: -10}, {Z: 2000}}, false)
	require.NoError(t, err)
	return p
}

type harness struct {
	agent *Agent
	veh   *stubVehicle
	reg   *world.Registry
	road  *path.Polyline
}

func newHarness(t *testing.T, speed float64, mutate ...func(*Config)) *harness {
	t.Helper()
	cfg := Config{Name: "ego", Params: DefaultParams(), Personality: DefaultPersonality()}
	for _, m := range mutate {
		m(&cfg)
	}
	reg := world.NewRegistry()
	road := straightRoad(t)
	veh := &stubVehicle{pose: geom.PoseFromHeading(r3.Vec{}, 0), speed: speed}
	a := NewAgent(cfg, veh, road, reg)
	reg.Add(a)
	return &harness{agent: a, veh: veh, reg: reg, road: road}
}

func (h *harness) addSign(z float64) *world.StopSign {
	s := world.NewStopSign(geom.PoseFromHeading(r3.Vec{X: 3, Z: z}, 0))
	h.reg.Add(s)
	return s
}

// approachSign tracks a sign placed well beyond the stop-sign buffer, then
// moves the vehicle forward so the sign sits gap ahead.
func (h *harness) approachSign(t *testing.T, gap float64) *world.StopSign {
	t.Helper()
	s := h.addSign(h.veh.pose.Position.Z + 20)
	h.agent.Tick(dt)
	_, tracked := h.agent.signs.Tracked()
	require.True(t, tracked)
	h.veh.pose = geom.PoseFromHeading(r3.Vec{Z: s.Pose().Position.Z - gap}, 0)
	return s
}
