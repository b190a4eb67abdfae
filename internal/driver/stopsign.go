package driver

import (
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/roadagent/internal/path"
	"github.com/banshee-data/roadagent/internal/world"
)

// StopSignTracker holds the handle of the nearest upcoming stop sign.
type StopSignTracker struct {
	id      uuid.UUID
	tracked bool
}

// Tracked returns the handle of the tracked sign.
func (t *StopSignTracker) Tracked() (uuid.UUID, bool) {
	return t.id, t.tracked
}

// Clear drops the tracked sign.
func (t *StopSignTracker) Clear() {
	t.id = uuid.Nil
	t.tracked = false
}

// Resolve picks the nearest sign lying more than buffer beyond arc. On a
// closed road the distance wraps past the seam. The tracker stays empty
// when there is none.
func (t *StopSignTracker) Resolve(road path.Oracle, q world.Query, arc, buffer float64) bool {
	var (
		found   bool
		nearest float64
		pick    uuid.UUID
	)
	for _, s := range q.AllWithTag(world.TagStopSign) {
		d := arcAhead(road, arc, road.ClosestDistanceAlong(s.Pose().Position), buffer)
		if d <= buffer {
			continue
		}
		if !found || d < nearest {
			found, nearest, pick = true, d, s.ID()
		}
	}
	if found {
		t.id, t.tracked = pick, true
	}
	return found
}

// Arc re-resolves the tracked sign and returns its arc position. A sign
// that no longer exists is dropped and ok is false.
func (t *StopSignTracker) Arc(road path.Oracle, q world.Query) (arc float64, ok bool) {
	if !t.tracked {
		return 0, false
	}
	s, ok := q.Lookup(t.id)
	if !ok {
		t.Clear()
		return 0, false
	}
	return road.ClosestDistanceAlong(s.Pose().Position), true
}

// arcAhead returns how far arc position to lies beyond from. On an open
// road this is the plain difference. On a closed road it wraps into one
// lap, and anything within behind of a full lap reads as a small negative
// gap so a sign the car just rolled past is not taken for the next one.
func arcAhead(road path.Oracle, from, to, behind float64) float64 {
	d := to - from
	c, ok := road.(interface{ Closed() bool })
	if !ok || !c.Closed() {
		return d
	}
	l := road.Length()
	if !(l > 0) {
		return d
	}
	d = math.Mod(d, l)
	if d < 0 {
		d += l
	}
	if d > l-behind {
		d -= l
	}
	return d
}
