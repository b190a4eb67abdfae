package driver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamsValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, DefaultParams().Validate())
}

func TestParamsValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Params)
		errSub string
	}{
		{"negative cruise", func(p *Params) { p.CruiseSpeed = -1 }, "cruise_speed"},
		{"zero exit modifier", func(p *Params) { p.DangerExitModifier = 0 }, "danger_exit_modifier"},
		{"lane offset too wide", func(p *Params) { p.LaneOffset = 2.5 }, "lane_offset"},
		{"back angle out of range", func(p *Params) { p.LateralBackAngle = 200 }, "lateral_back_angle"},
		{"negative stop duration", func(p *Params) { p.StopDuration = -0.5 }, "stop_duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestPersonalityClamp(t *testing.T) {
	t.Parallel()

	got := Personality{Patience: 3, Recklessness: -2}.Clamp()
	assert.Equal(t, Personality{Patience: 1, Recklessness: 0}, got)

	got = Personality{Patience: math.NaN(), Recklessness: 0.3}.Clamp()
	assert.Equal(t, Personality{Patience: 0, Recklessness: 0.3}, got)
}

func TestRecklessnessNeverWidensReactionDistances(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	prevSoft, prevHard := math.Inf(1), math.Inf(1)
	for i := 0; i <= 20; i++ {
		r := float64(i) / 20
		soft, hard := p.SoftDangerDistance(r), p.EmergencyDistance(r)
		assert.LessOrEqual(t, soft, prevSoft, "soft distance at r=%v", r)
		assert.LessOrEqual(t, hard, prevHard, "emergency distance at r=%v", r)
		prevSoft, prevHard = soft, hard
	}
	assert.InDelta(t, 5.0, p.SoftDangerDistance(0), 1e-12)
	assert.InDelta(t, 5.0/6, p.SoftDangerDistance(1), 1e-12)
	assert.InDelta(t, 3.0, p.EmergencyDistance(1), 1e-12)
}
