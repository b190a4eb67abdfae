// Package path provides the arc-length parameterised road centreline the
// driver follows.
package path

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/roadagent/internal/geom"
)

// ErrTooFewPoints is returned when a polyline has fewer than two distinct
// points.
var ErrTooFewPoints = errors.New("path needs at least two distinct points")

// Oracle answers arc-length queries about a 1-D road path.
type Oracle interface {
	// ClosestDistanceAlong returns the arc-length of the path point nearest p.
	ClosestDistanceAlong(p r3.Vec) float64
	// PointAt returns the path point at arc-length d.
	PointAt(d float64) r3.Vec
	// TangentAt returns the unit direction of travel at arc-length d.
	TangentAt(d float64) r3.Vec
	// NormalAt returns the unit horizontal normal at arc-length d, pointing
	// to the right of the direction of travel.
	NormalAt(d float64) r3.Vec
	// Length returns the total arc-length.
	Length() float64
}

// Polyline is an Oracle over straight segments between points. Open
// polylines clamp queries to [0, Length]; closed ones wrap around.
type Polyline struct {
	points []r3.Vec
	// lengths[i] is the arc-length at points[i].
	lengths []float64
	closed  bool
}

var _ Oracle = (*Polyline)(nil)

// NewPolyline builds a polyline through points. Consecutive duplicates are
// dropped. When closed is set the last point joins back to the first.
func NewPolyline(points []r3.Vec, closed bool) (*Polyline, error) {
	pts := make([]r3.Vec, 0, len(points)+1)
	for _, p := range points {
		if len(pts) > 0 && geom.Distance(pts[len(pts)-1], p) == 0 {
			continue
		}
		pts = append(pts, p)
	}
	if closed && len(pts) > 1 && geom.Distance(pts[0], pts[len(pts)-1]) > 0 {
		pts = append(pts, pts[0])
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, len(pts))
	}

	lengths := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		lengths[i] = lengths[i-1] + geom.Distance(pts[i-1], pts[i])
	}
	return &Polyline{points: pts, lengths: lengths, closed: closed}, nil
}

// Length returns the total arc-length.
func (p *Polyline) Length() float64 {
	return p.lengths[len(p.lengths)-1]
}

// Closed reports whether the polyline loops.
func (p *Polyline) Closed() bool {
	return p.closed
}

// Points returns a copy of the vertices.
func (p *Polyline) Points() []r3.Vec {
	return append([]r3.Vec(nil), p.points...)
}

func (p *Polyline) normalise(d float64) float64 {
	total := p.Length()
	if p.closed {
		d = math.Mod(d, total)
		if d < 0 {
			d += total
		}
		return d
	}
	return math.Max(0, math.Min(total, d))
}

// segment returns the index i of the segment [points[i], points[i+1]]
// containing arc-length d and the fraction along it.
func (p *Polyline) segment(d float64) (int, float64) {
	d = p.normalise(d)
	i := sort.SearchFloat64s(p.lengths, d) - 1
	if i < 0 {
		i = 0
	}
	if i > len(p.points)-2 {
		i = len(p.points) - 2
	}
	seg := p.lengths[i+1] - p.lengths[i]
	return i, (d - p.lengths[i]) / seg
}

// PointAt returns the point at arc-length d.
func (p *Polyline) PointAt(d float64) r3.Vec {
	i, t := p.segment(d)
	return r3.Add(p.points[i], r3.Scale(t, r3.Sub(p.points[i+1], p.points[i])))
}

// TangentAt returns the unit direction of the segment containing d.
func (p *Polyline) TangentAt(d float64) r3.Vec {
	i, _ := p.segment(d)
	return geom.Unit(r3.Sub(p.points[i+1], p.points[i]))
}

// NormalAt returns the rightward horizontal unit normal at d.
func (p *Polyline) NormalAt(d float64) r3.Vec {
	return geom.Unit(r3.Cross(geom.Up, p.TangentAt(d)))
}

// ClosestDistanceAlong projects q onto every segment and returns the
// arc-length of the nearest projection.
func (p *Polyline) ClosestDistanceAlong(q r3.Vec) float64 {
	best := math.Inf(1)
	bestArc := 0.0
	for i := 0; i+1 < len(p.points); i++ {
		a, b := p.points[i], p.points[i+1]
		ab := r3.Sub(b, a)
		seg := r3.Norm(ab)
		along := math.Max(0, math.Min(seg, r3.Dot(r3.Sub(q, a), ab)/seg))
		proj := r3.Add(a, r3.Scale(along/seg, ab))
		if d := geom.Distance(q, proj); d < best {
			best = d
			bestArc = p.lengths[i] + along
		}
	}
	if p.closed && bestArc >= p.Length() {
		bestArc = 0
	}
	return bestArc
}

// Circle returns n points on a horizontal circle of the given radius around
// centre, starting at +Z and turning towards +X.
func Circle(centre r3.Vec, radius float64, n int) []r3.Vec {
	pts := make([]r3.Vec, n)
	for k := range pts {
		theta := 2 * math.Pi * float64(k) / float64(n)
		pts[k] = r3.Add(centre, r3.Vec{X: radius * math.Sin(theta), Z: radius * math.Cos(theta)})
	}
	return pts
}
