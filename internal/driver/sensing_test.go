package driver

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/geom"
	"github.com/banshee-data/roadagent/internal/path"
	"github.com/banshee-data/roadagent/internal/world"
)

func TestCurveSeverity(t *testing.T) {
	t.Parallel()

	straight := straightRoad(t)
	pose := geom.PoseFromHeading(r3.Vec{}, 0)
	assert.InDelta(t, 0.0, CurveSeverity(straight, pose, 10, 65, 6), 1e-9)

	// A right-angle bend 20 units ahead: the sample at 24 lies past it.
	bend, err := path.NewPolyline([]r3.Vec{{}, {Z: 20}, {X: 100, Z: 20}}, false)
	require.NoError(t, err)
	got := CurveSeverity(bend, pose, 0, 45, 6)
	assert.InDelta(t, 90.0, got, 1e-9)
	assert.InDelta(t, 2*got, CurveSeverity(bend, pose, 0, 90, 6), 1e-9)

	// Pure: same inputs, same answer.
	assert.Equal(t, got, CurveSeverity(bend, pose, 0, 45, 6))
}

func TestForwardThreat(t *testing.T) {
	t.Parallel()

	self := newStubCar(0)
	near := newStubCar(8)
	far := newStubCar(20)
	behind := newStubCar(-5)
	otherLane := newStubCar(4)
	otherLane.right = false
	merging := newStubCar(6)
	merging.right = false
	merging.changing = true

	tests := []struct {
		name     string
		cars     []world.Car
		lane     bool
		wantID   *stubCar
		wantDist float64
	}{
		{"empty", nil, true, nil, 0},
		{"self only", []world.Car{self}, true, nil, 0},
		{"closest ahead", []world.Car{self, far, near}, true, near, 8},
		{"ignores behind", []world.Car{self, behind, far}, true, far, 20},
		{"ignores other lane", []world.Car{self, otherLane, far}, true, far, 20},
		{"counts merging car", []world.Car{self, merging, near}, true, merging, 6},
		{"left lane", []world.Car{self, otherLane, near}, false, otherLane, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, dist := ForwardThreat(self, tt.cars, tt.lane)
			if tt.wantID == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID.ID(), got.ID())
			assert.InDelta(t, tt.wantDist, dist, 1e-9)

			again, dist2 := ForwardThreat(self, tt.cars, tt.lane)
			assert.Equal(t, got.ID(), again.ID())
			assert.Equal(t, dist, dist2)
		})
	}
}

func TestForwardThreatTieKeepsFirst(t *testing.T) {
	t.Parallel()

	self := newStubCar(0)
	a := &stubCar{id: uuid.New(), pos: r3.Vec{X: 1, Z: 5}, right: true}
	b := &stubCar{id: uuid.New(), pos: r3.Vec{X: -1, Z: 5}, right: true}
	got, _ := ForwardThreat(self, []world.Car{self, a, b}, true)
	assert.Equal(t, a.ID(), got.ID())
}

func TestLateralThreat(t *testing.T) {
	t.Parallel()

	p := DefaultParams()
	calm := Personality{Patience: 1}
	self := newStubCar(0)

	beside := &stubCar{id: uuid.New(), pos: r3.Vec{X: -2}}            // 90°, 2 away
	closeBehind := &stubCar{id: uuid.New(), pos: r3.Vec{Z: -3}}       // 180°, 3 away
	farBehind := &stubCar{id: uuid.New(), pos: r3.Vec{Z: -15}}        // 180°, 15 away
	aheadAngled := &stubCar{id: uuid.New(), pos: r3.Vec{X: -6, Z: 6}} // 45°, 8.5 away
	straightOn := newStubCar(6)                                       // 0°, 6 away

	tests := []struct {
		name   string
		cars   []world.Car
		pers   Personality
		target float64
		want   *stubCar
	}{
		{"nothing nearby", []world.Car{self, straightOn}, calm, 65, nil},
		{"alongside in back zone", []world.Car{self, beside}, calm, 65, beside},
		{"close behind falls in the wide zone", []world.Car{self, closeBehind}, calm, 65, closeBehind},
		{"far behind is ignored", []world.Car{self, farBehind}, calm, 65, nil},
		{"angled ahead in front zone", []world.Car{self, aheadAngled}, calm, 65, aheadAngled},
		{"reckless shrinks front zone", []world.Car{self, aheadAngled}, Personality{Patience: 1, Recklessness: 0.5}, 65, nil},
		{"first match wins", []world.Car{self, aheadAngled, beside}, calm, 65, aheadAngled},
		{"impatient ignores front zone", []world.Car{self, aheadAngled}, Personality{Patience: 0.1}, 20, nil},
		{"impatient still sees close car", []world.Car{self, beside}, Personality{Patience: 0.1}, 20, beside},
		{"impatient sees directly behind", []world.Car{self, closeBehind}, Personality{Patience: 0.1}, 20, closeBehind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := LateralThreat(self, tt.cars, p, tt.pers, 65, tt.target)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.ID(), got.ID())
		})
	}
}
