package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roadagent/internal/path"
)

func ptr(v float64) *float64 { return &v }

func TestLoadBundledScenario(t *testing.T) {
	s, err := Load(filepath.Join("..", "..", "config", "scenarios", "stop-and-follow.yaml"))
	require.NoError(t, err)

	want := Scenario{
		Name:  "stop-and-follow",
		DT:    0.02,
		Ticks: 3000,
		Road:  Road{Points: []Point{{0, 0}, {0, 1500}}},
		Cars: []Car{
			{Name: "leader", Start: 40, Cruise: ptr(0.4)},
			{Name: "follower", Patience: ptr(0.2), Recklessness: ptr(0.3)},
		},
		StopSigns: []StopSign{{At: 600}},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("scenario mismatch (-want +got):\n%s", diff)
	}

	road, err := s.BuildRoad()
	require.NoError(t, err)
	assert.InDelta(t, 1500, road.Length(), 1e-9)
	assert.Equal(t, 3.0, s.StopSigns[0].SignOffset())
}

func TestParseJSON(t *testing.T) {
	s, err := Parse([]byte(`{
  "road": {"circle": {"radius": 50}},
  "cars": [{"start": 10}, {"start": 90, "left_lane": true}],
  "stop_signs": [{"at": 20, "offset": -2}]
}`), ".json")
	require.NoError(t, err)
	assert.Equal(t, defaultDT, s.DT)
	assert.True(t, s.Road.Closed)
	assert.Equal(t, defaultSegments, s.Road.Circle.Segments)
	assert.Equal(t, "car-1", s.Cars[0].Name)
	assert.Equal(t, "car-2", s.Cars[1].Name)
	assert.Equal(t, -2.0, s.StopSigns[0].SignOffset())

	road, err := s.BuildRoad()
	require.NoError(t, err)
	assert.True(t, road.Closed())
	// A 72-gon inscribed in r=50 is a touch shorter than the circle.
	assert.InDelta(t, 2*50*72*0.0436193874, road.Length(), 1e-3)
}

func TestValidate(t *testing.T) {
	road := Road{Points: []Point{{0, 0}, {0, 100}}}
	tests := []struct {
		name    string
		s       Scenario
		wantIs  error
		wantMsg string
	}{
		{"no cars", Scenario{Road: road, DT: 0.02}, ErrNoCars, ""},
		{"bad dt", Scenario{Road: road, DT: -1, Cars: []Car{{Name: "a"}}}, nil, "dt must be positive"},
		{"negative ticks", Scenario{Road: road, DT: 0.02, Ticks: -3, Cars: []Car{{Name: "a"}}}, nil, "ticks"},
		{"short road", Scenario{Road: Road{Points: []Point{{0, 0}}}, DT: 0.02, Cars: []Car{{Name: "a"}}}, path.ErrTooFewPoints, ""},
		{"both road kinds", Scenario{Road: Road{Points: road.Points, Circle: &Circle{Radius: 5, Segments: 8}}, DT: 0.02, Cars: []Car{{Name: "a"}}}, nil, "not both"},
		{"tiny circle", Scenario{Road: Road{Circle: &Circle{Radius: 5, Segments: 2}}, DT: 0.02, Cars: []Car{{Name: "a"}}}, nil, "segments"},
		{"duplicate names", Scenario{Road: road, DT: 0.02, Cars: []Car{{Name: "a"}, {Name: "a"}}}, nil, "duplicate"},
		{"patience range", Scenario{Road: road, DT: 0.02, Cars: []Car{{Name: "a", Patience: ptr(2)}}}, nil, "patience"},
		{"negative speed", Scenario{Road: road, DT: 0.02, Cars: []Car{{Name: "a", Speed: -1}}}, nil, "speed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.True(t, errors.Is(err, tt.wantIs), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to stat")

	txt := filepath.Join(dir, "road.txt")
	require.NoError(t, os.WriteFile(txt, []byte("name: x"), 0o644))
	_, err = Load(txt)
	assert.ErrorContains(t, err, "unsupported")

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("cars: [unterminated"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "scenario yaml")

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("road: {points: [{x: 0, z: 0}, {x: 0, z: 5}]}"), 0o644))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrNoCars)
}

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	_, err := s.BuildRoad()
	require.NoError(t, err)
}
