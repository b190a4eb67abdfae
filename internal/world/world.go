// Package world is the entity registry the driver queries for other cars and
// stop signs. Entities are addressed by uuid handles so callers never hold
// them across ticks.
package world

import (
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/roadagent/internal/geom"
)

// Tag classifies an entity for AllWithTag scans.
type Tag string

const (
	TagCar      Tag = "Car"
	TagStopSign Tag = "StopSign"
)

// Entity is anything placed in the world.
type Entity interface {
	ID() uuid.UUID
	Tag() Tag
	Pose() geom.Pose
}

// Car is the public face of a driven vehicle as other agents see it.
type Car interface {
	Entity
	UseRightLane() bool
	IsChangingLanes() bool
	Speed() float64
	Throttle() float64
	Brake() float64
}

// Query is the read side of the registry the driver depends on.
type Query interface {
	// AllWithTag returns every entity with the tag in insertion order.
	AllWithTag(tag Tag) []Entity
	// Lookup resolves a handle. ok is false once the entity is removed.
	Lookup(id uuid.UUID) (Entity, bool)
}

// Registry is a Query over a mutable set of entities.
type Registry struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]Entity
	order    []uuid.UUID
}

var _ Query = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[uuid.UUID]Entity)}
}

// Add inserts e. Adding an ID twice replaces the entity but keeps its
// original scan position.
func (r *Registry) Add(e Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.ID()]; !ok {
		r.order = append(r.order, e.ID())
	}
	r.entities[e.ID()] = e
}

// Remove deletes the entity with id. It reports whether it was present.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[id]; !ok {
		return false
	}
	delete(r.entities, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup resolves id.
func (r *Registry) Lookup(id uuid.UUID) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[id]
	return e, ok
}

// AllWithTag returns the entities carrying tag in insertion order.
func (r *Registry) AllWithTag(tag Tag) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entity
	for _, id := range r.order {
		if e := r.entities[id]; e.Tag() == tag {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Cars returns every entity tagged Car that implements Car.
func Cars(q Query) []Car {
	var out []Car
	for _, e := range q.AllWithTag(TagCar) {
		if c, ok := e.(Car); ok {
			out = append(out, c)
		}
	}
	return out
}

// StopSign is a static sign placed beside the road.
type StopSign struct {
	id   uuid.UUID
	pose geom.Pose
}

// NewStopSign places a sign at pose with a fresh handle.
func NewStopSign(pose geom.Pose) *StopSign {
	return &StopSign{id: uuid.New(), pose: pose}
}

func (s *StopSign) ID() uuid.UUID   { return s.id }
func (s *StopSign) Tag() Tag        { return TagStopSign }
func (s *StopSign) Pose() geom.Pose { return s.pose }
