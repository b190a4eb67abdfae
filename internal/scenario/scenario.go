// Package scenario describes a road, the cars on it and its stop signs, and
// loads that description from YAML or JSON.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/roadagent/internal/path"
)

// ErrNoCars is returned by Validate for a scenario without cars.
var ErrNoCars = errors.New("scenario has no cars")

const (
	defaultDT         = 0.02
	defaultSignOffset = 3.0
	defaultSegments   = 72
	maxScenarioSize   = 1 << 20
)

// Scenario is one runnable setup.
type Scenario struct {
	Name      string     `yaml:"name" json:"name"`
	Road      Road       `yaml:"road" json:"road"`
	Cars      []Car      `yaml:"cars" json:"cars"`
	StopSigns []StopSign `yaml:"stop_signs,omitempty" json:"stop_signs,omitempty"`
	// DT is the fixed tick length in seconds.
	DT float64 `yaml:"dt" json:"dt"`
	// Ticks bounds a run; zero runs until cancelled.
	Ticks int `yaml:"ticks" json:"ticks"`
}

// Road is either an explicit polyline or a generated circle.
type Road struct {
	Closed bool    `yaml:"closed" json:"closed"`
	Points []Point `yaml:"points,omitempty" json:"points,omitempty"`
	Circle *Circle `yaml:"circle,omitempty" json:"circle,omitempty"`
}

// Point is a ground-plane coordinate.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Z float64 `yaml:"z" json:"z"`
}

// Circle generates a closed loop.
type Circle struct {
	Radius   float64 `yaml:"radius" json:"radius"`
	Segments int     `yaml:"segments,omitempty" json:"segments,omitempty"`
}

// Car places one agent on the road.
type Car struct {
	Name string `yaml:"name" json:"name"`
	// Start is the arc length the car spawns at.
	Start    float64 `yaml:"start" json:"start"`
	LeftLane bool    `yaml:"left_lane,omitempty" json:"left_lane,omitempty"`
	// Speed is the initial driver-scale speed.
	Speed        float64  `yaml:"speed,omitempty" json:"speed,omitempty"`
	Patience     *float64 `yaml:"patience,omitempty" json:"patience,omitempty"`
	Recklessness *float64 `yaml:"recklessness,omitempty" json:"recklessness,omitempty"`
	// Cruise is the desired cruise speed as a fraction of the maximum.
	Cruise *float64 `yaml:"cruise,omitempty" json:"cruise,omitempty"`
}

// StopSign places a sign beside the road.
type StopSign struct {
	At float64 `yaml:"at" json:"at"`
	// Offset is the distance to the right of the path centre.
	Offset *float64 `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// SignOffset returns the configured lateral offset or the default.
func (s StopSign) SignOffset() float64 {
	if s.Offset == nil {
		return defaultSignOffset
	}
	return *s.Offset
}

// Load reads a scenario file. The format follows the extension: .yaml and
// .yml decode as YAML, .json as JSON.
func Load(file string) (Scenario, error) {
	clean := filepath.Clean(file)
	info, err := os.Stat(clean)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to stat scenario: %w", err)
	}
	if info.Size() > maxScenarioSize {
		return Scenario{}, fmt.Errorf("scenario file too large: %d bytes (max %d)", info.Size(), maxScenarioSize)
	}
	b, err := os.ReadFile(clean)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(b, strings.ToLower(filepath.Ext(clean)))
}

// Parse decodes a scenario in the format named by ext.
func Parse(b []byte, ext string) (Scenario, error) {
	var s Scenario
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &s); err != nil {
			return s, fmt.Errorf("scenario yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &s); err != nil {
			return s, fmt.Errorf("scenario json: %w", err)
		}
	default:
		return s, fmt.Errorf("unsupported scenario format %q", ext)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Normalize fills defaults for unset fields.
func (s *Scenario) Normalize() {
	if s.DT == 0 {
		s.DT = defaultDT
	}
	if s.Road.Circle != nil {
		s.Road.Closed = true
		if s.Road.Circle.Segments == 0 {
			s.Road.Circle.Segments = defaultSegments
		}
	}
	for i := range s.Cars {
		if s.Cars[i].Name == "" {
			s.Cars[i].Name = fmt.Sprintf("car-%d", i+1)
		}
	}
}

// Validate reports the first problem found.
func (s Scenario) Validate() error {
	if len(s.Cars) == 0 {
		return ErrNoCars
	}
	if s.DT <= 0 {
		return fmt.Errorf("dt must be positive, got %v", s.DT)
	}
	if s.Ticks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", s.Ticks)
	}
	switch {
	case s.Road.Circle != nil && len(s.Road.Points) > 0:
		return errors.New("road: set either points or circle, not both")
	case s.Road.Circle != nil:
		if s.Road.Circle.Radius <= 0 {
			return fmt.Errorf("road: circle radius must be positive, got %v", s.Road.Circle.Radius)
		}
		if s.Road.Circle.Segments < 3 {
			return fmt.Errorf("road: circle needs at least 3 segments, got %d", s.Road.Circle.Segments)
		}
	case len(s.Road.Points) < 2:
		return fmt.Errorf("road: %w", path.ErrTooFewPoints)
	}
	seen := make(map[string]bool, len(s.Cars))
	for i, c := range s.Cars {
		if seen[c.Name] {
			return fmt.Errorf("car %d: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Speed < 0 {
			return fmt.Errorf("car %q: speed must not be negative", c.Name)
		}
		for field, v := range map[string]*float64{"patience": c.Patience, "recklessness": c.Recklessness, "cruise": c.Cruise} {
			if v != nil && (*v < 0 || *v > 1) {
				return fmt.Errorf("car %q: %s must be in [0, 1], got %v", c.Name, field, *v)
			}
		}
	}
	return nil
}

// BuildRoad constructs the road polyline.
func (s Scenario) BuildRoad() (*path.Polyline, error) {
	var pts []r3.Vec
	if c := s.Road.Circle; c != nil {
		pts = path.Circle(r3.Vec{}, c.Radius, c.Segments)
	} else {
		pts = make([]r3.Vec, len(s.Road.Points))
		for i, p := range s.Road.Points {
			pts[i] = r3.Vec{X: p.X, Z: p.Z}
		}
	}
	road, err := path.NewPolyline(pts, s.Road.Closed)
	if err != nil {
		return nil, fmt.Errorf("build road: %w", err)
	}
	return road, nil
}

// Default is the built-in demo: three cars and a stop sign on a loop.
func Default() Scenario {
	half := 0.5
	s := Scenario{
		Name: "loop",
		Road: Road{Circle: &Circle{Radius: 80}},
		Cars: []Car{
			{Name: "alpha", Start: 0},
			{Name: "bravo", Start: 60, Cruise: &half},
			{Name: "charlie", Start: 150, LeftLane: true, Recklessness: &half},
		},
		StopSigns: []StopSign{{At: 300}},
	}
	s.Normalize()
	return s
}
