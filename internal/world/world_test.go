package world

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/geom"
)

type fakeCar struct {
	id    uuid.UUID
	right bool
}

func (c *fakeCar) ID() uuid.UUID         { return c.id }
func (c *fakeCar) Tag() Tag              { return TagCar }
func (c *fakeCar) Pose() geom.Pose       { return geom.PoseFromHeading(r3.Vec{}, 0) }
func (c *fakeCar) UseRightLane() bool    { return c.right }
func (c *fakeCar) IsChangingLanes() bool { return false }
func (c *fakeCar) Speed() float64        { return 0 }
func (c *fakeCar) Throttle() float64     { return 0 }
func (c *fakeCar) Brake() float64        { return 0 }

func TestRegistryAddLookupRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sign := NewStopSign(geom.PoseFromHeading(r3.Vec{Z: 10}, 0))
	car := &fakeCar{id: uuid.New()}
	r.Add(sign)
	r.Add(car)
	require.Equal(t, 2, r.Len())

	got, ok := r.Lookup(sign.ID())
	require.True(t, ok)
	assert.Equal(t, TagStopSign, got.Tag())

	assert.True(t, r.Remove(sign.ID()))
	assert.False(t, r.Remove(sign.ID()))
	_, ok = r.Lookup(sign.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestAllWithTagKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := &fakeCar{id: uuid.New()}
	b := &fakeCar{id: uuid.New()}
	c := &fakeCar{id: uuid.New()}
	r.Add(a)
	r.Add(NewStopSign(geom.Pose{}))
	r.Add(b)
	r.Add(c)
	r.Add(b) // re-adding keeps position

	cars := r.AllWithTag(TagCar)
	require.Len(t, cars, 3)
	assert.Equal(t, a.ID(), cars[0].ID())
	assert.Equal(t, b.ID(), cars[1].ID())
	assert.Equal(t, c.ID(), cars[2].ID())

	assert.Len(t, r.AllWithTag(TagStopSign), 1)
	assert.Len(t, Cars(r), 3)
}
