// Package geom holds the vector and pose helpers shared by the path, world
// and driver packages. The frame is Y up, Z forward and X right.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Up is the world vertical axis.
var Up = r3.Vec{Y: 1}

// zeroNorm is the length below which a vector is treated as zero.
const zeroNorm = 1e-15

// Angle returns the unsigned angle between a and b in degrees. It returns 0
// when either vector has no length.
func Angle(a, b r3.Vec) float64 {
	denom := r3.Norm(a) * r3.Norm(b)
	if denom < zeroNorm {
		return 0
	}
	cos := r3.Dot(a, b) / denom
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Unit is r3.Unit with the zero vector mapped to zero instead of NaN.
func Unit(v r3.Vec) r3.Vec {
	if r3.Norm(v) < zeroNorm {
		return r3.Vec{}
	}
	return r3.Unit(v)
}

// Distance returns the straight-line distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Pose is a position with an orthonormal body frame.
type Pose struct {
	Position r3.Vec `json:"position"`
	Forward  r3.Vec `json:"forward"`
	Right    r3.Vec `json:"right"`
	Up       r3.Vec `json:"up"`
}

// PoseFromHeading builds a level pose at pos facing yaw radians clockwise
// from +Z when viewed from above.
func PoseFromHeading(pos r3.Vec, yaw float64) Pose {
	fwd := r3.Vec{X: math.Sin(yaw), Z: math.Cos(yaw)}
	return Pose{
		Position: pos,
		Forward:  fwd,
		Right:    r3.Cross(Up, fwd),
		Up:       Up,
	}
}

// PoseFacing builds a level pose at pos looking along dir. A vertical or
// zero dir yields a pose facing +Z.
func PoseFacing(pos, dir r3.Vec) Pose {
	flat := Unit(r3.Vec{X: dir.X, Z: dir.Z})
	if flat == (r3.Vec{}) {
		flat = r3.Vec{Z: 1}
	}
	return Pose{Position: pos, Forward: flat, Right: r3.Cross(Up, flat), Up: Up}
}

// Yaw returns the heading of the pose in radians, matching PoseFromHeading.
func (p Pose) Yaw() float64 {
	return math.Atan2(p.Forward.X, p.Forward.Z)
}

// InverseTransformPoint expresses the world point w in the pose's local
// frame: X along Right, Y along Up, Z along Forward.
func (p Pose) InverseTransformPoint(w r3.Vec) r3.Vec {
	d := r3.Sub(w, p.Position)
	return r3.Vec{
		X: r3.Dot(d, p.Right),
		Y: r3.Dot(d, p.Up),
		Z: r3.Dot(d, p.Forward),
	}
}

// Bearing returns the signed horizontal angle in degrees from the pose's
// forward axis to the world point w. Positive is to the right.
func (p Pose) Bearing(w r3.Vec) float64 {
	local := p.InverseTransformPoint(w)
	return math.Atan2(local.X, local.Z) * 180 / math.Pi
}
