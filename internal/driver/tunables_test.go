package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersonalitySettersClamp(t *testing.T) {
	t.Parallel()

	a := newHarness(t, 0).agent
	a.SetPatience(3)
	a.SetRecklessness(-1)
	assert.Equal(t, Personality{Patience: 1, Recklessness: 0}, a.Personality())

	a.SetRecklessness(0.25)
	assert.Equal(t, 0.25, a.Personality().Recklessness)
}

func TestSetLaneChangeSpeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in                   float64
		wantSpeed, wantDelay float64
	}{
		{0, 0.5, 10},
		{1, 5, 0.5},
		{0.5, 2.75, 5.25},
		{7, 5, 0.5},
		{-2, 0.5, 10},
	}
	for _, tt := range tests {
		a := newHarness(t, 0).agent
		a.SetLaneChangeSpeed(tt.in)
		assert.InDelta(t, tt.wantSpeed, a.Params().ChangeLaneSpeed, 1e-9, "input %v", tt.in)
		assert.InDelta(t, tt.wantDelay, a.Params().MaxLaneChangeDelay, 1e-9, "input %v", tt.in)
		assert.LessOrEqual(t, a.laneChangeDelay, a.Params().MaxLaneChangeDelay)
	}
}

func TestSetDesiredCruiseSpeed(t *testing.T) {
	t.Parallel()

	a := newHarness(t, 0).agent
	a.SetDesiredCruiseSpeed(0.5)
	assert.InDelta(t, 32.5, a.Params().CruiseSpeed, 1e-9)
	a.SetDesiredCruiseSpeed(4)
	assert.InDelta(t, 65.0, a.Params().CruiseSpeed, 1e-9)

	a.Tick(dt)
	assert.InDelta(t, 65.0, a.TargetSpeed(), 1e-9)
}

func TestForceLaneChange(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 20)
	h.agent.ForceLaneChange()
	assert.False(t, h.agent.UseRightLane())
	h.agent.Tick(dt)
	assert.True(t, h.agent.IsChangingLanes())
	assert.Less(t, h.agent.LaneModifier(), 1.0)
	assert.Equal(t, StateAccelerate, h.agent.Snapshot().State)
}

func TestManualOverride(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 20)
	h.agent.SetManualOverride(true)
	h.agent.SetManualThrottle(0.3)
	h.agent.SetManualBrake(0.6)
	h.agent.Tick(dt)
	assert.Equal(t, 0.3, h.veh.cmd.Throttle)
	assert.Equal(t, 0.6, h.veh.cmd.Brake)
	assert.True(t, h.agent.Snapshot().Manual)
	assert.Equal(t, ManualInput{Enabled: true, Throttle: 0.3, Brake: 0.6}, h.agent.Manual())

	h.agent.SetManualThrottle(5)
	h.agent.SetManualBrake(-1)
	h.agent.Tick(dt)
	assert.Equal(t, 1.0, h.veh.cmd.Throttle)
	assert.Equal(t, 0.0, h.veh.cmd.Brake)

	h.agent.SetManualOverride(false)
	h.agent.Tick(dt)
	assert.False(t, h.agent.Snapshot().Manual)
}

func TestSetParams(t *testing.T) {
	t.Parallel()

	a := newHarness(t, 0).agent
	p := DefaultParams()
	p.CruiseSpeed = 40
	require.NoError(t, a.SetParams(p))
	assert.Equal(t, 40.0, a.Params().CruiseSpeed)

	p.DangerExitModifier = 0
	require.Error(t, a.SetParams(p))
	assert.Equal(t, 2.0, a.Params().DangerExitModifier)
}
