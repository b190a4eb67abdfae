package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/roadagent/internal/driver"
	"github.com/banshee-data/roadagent/internal/vehicle"
)

// Summary aggregates a run.
type Summary struct {
	Ticks          uint64         `json:"ticks"`
	Duration       float64        `json:"duration"`
	FleetMeanSpeed float64        `json:"fleet_mean_speed"`
	FleetMaxSpeed  float64        `json:"fleet_max_speed"`
	Agents         []AgentSummary `json:"agents"`
}

// AgentSummary aggregates one agent. Speeds are driver-scale; MinThreatGap
// is zero when no car was ever ahead.
type AgentSummary struct {
	Name         string                   `json:"name"`
	MeanSpeed    float64                  `json:"mean_speed"`
	MaxSpeed     float64                  `json:"max_speed"`
	MeanBrake    float64                  `json:"mean_brake"`
	MinThreatGap float64                  `json:"min_threat_gap,omitempty"`
	Distance     float64                  `json:"distance"`
	StateTime    map[driver.State]float64 `json:"state_time"`
}

type stats struct {
	ticks    uint64
	speedSum []float64
	speedMax []float64
	brakeSum []float64
	minGap   []float64
	states   []map[driver.State]uint64

	speeds []float64
	brakes []float64
}

func newStats(n int) *stats {
	s := &stats{
		speedSum: make([]float64, n),
		speedMax: make([]float64, n),
		brakeSum: make([]float64, n),
		minGap:   make([]float64, n),
		states:   make([]map[driver.State]uint64, n),
		speeds:   make([]float64, n),
		brakes:   make([]float64, n),
	}
	for i := range s.states {
		s.states[i] = make(map[driver.State]uint64)
	}
	floats.AddConst(math.Inf(1), s.minGap)
	return s
}

func (s *stats) add(f Frame) {
	s.ticks++
	for i, a := range f.Agents {
		s.speeds[i] = a.Speed
		s.brakes[i] = a.Brake
		s.speedMax[i] = math.Max(s.speedMax[i], a.Speed)
		if a.ThreatID != nil {
			s.minGap[i] = math.Min(s.minGap[i], a.ThreatDistance)
		}
		s.states[i][a.State]++
	}
	floats.Add(s.speedSum, s.speeds)
	floats.Add(s.brakeSum, s.brakes)
}

func (s *stats) summary(names []string, dt float64) Summary {
	out := Summary{
		Ticks:    s.ticks,
		Duration: float64(s.ticks) * dt,
		Agents:   make([]AgentSummary, len(names)),
	}
	if s.ticks == 0 || len(names) == 0 {
		for i, n := range names {
			out.Agents[i] = AgentSummary{Name: n, StateTime: map[driver.State]float64{}}
		}
		return out
	}
	n := float64(s.ticks)
	means := make([]float64, len(s.speedSum))
	floats.ScaleTo(means, 1/n, s.speedSum)
	out.FleetMeanSpeed = floats.Sum(means) / float64(len(means))
	out.FleetMaxSpeed = floats.Max(s.speedMax)

	for i, name := range names {
		as := AgentSummary{
			Name:      name,
			MeanSpeed: means[i],
			MaxSpeed:  s.speedMax[i],
			MeanBrake: s.brakeSum[i] / n,
			Distance:  s.speedSum[i] * dt / vehicle.SpeedScale,
			StateTime: make(map[driver.State]float64, len(s.states[i])),
		}
		if !math.IsInf(s.minGap[i], 1) {
			as.MinThreatGap = s.minGap[i]
		}
		for st, k := range s.states[i] {
			as.StateTime[st] = float64(k) * dt
		}
		out.Agents[i] = as
	}
	return out
}
