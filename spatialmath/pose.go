package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Pose is a rigid transform (R, t) with R a rotation matrix and t a translation in
// meters, mapping points expressed in some local frame into the parent frame as
// p_parent = R*p_local + t.
type Pose struct {
	orientation *RotationMatrix
	point       r3.Vector
}

// NewPose builds a Pose from a rotation matrix and a translation.
func NewPose(point r3.Vector, orientation *RotationMatrix) *Pose {
	if orientation == nil {
		orientation = NewZeroRotationMatrix()
	}
	return &Pose{orientation: orientation, point: point}
}

// NewPoseFromOrientation builds a Pose from a point and any Orientation representation.
func NewPoseFromOrientation(point r3.Vector, o Orientation) *Pose {
	if o == nil {
		return NewPose(point, NewZeroRotationMatrix())
	}
	return NewPose(point, o.RotationMatrix())
}

// NewZeroPose returns the identity transform.
func NewZeroPose() *Pose {
	return NewPose(r3.Vector{}, NewZeroRotationMatrix())
}

// Point returns the translation component.
func (p *Pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the rotational component.
func (p *Pose) Orientation() *RotationMatrix {
	return p.orientation
}

// Transform maps a point from this pose's local frame into the parent frame: R*v + t.
func (p *Pose) Transform(v r3.Vector) r3.Vector {
	return p.orientation.MulVector(v).Add(p.point)
}

// TransformDirection rotates a direction vector (e.g. a normal) without translating it.
func (p *Pose) TransformDirection(v r3.Vector) r3.Vector {
	return p.orientation.MulVector(v)
}

// InverseTransform maps a point from the parent frame back into this pose's local frame:
// Rᵀ*(v - t).
func (p *Pose) InverseTransform(v r3.Vector) r3.Vector {
	return p.orientation.MulTransposeVector(v.Sub(p.point))
}

// Compose returns the pose equivalent to applying `other` first and then `p`: if `other`
// maps local->mid and `p` maps mid->parent, the result maps local->parent.
func (p *Pose) Compose(other *Pose) *Pose {
	return NewPose(p.Transform(other.point), p.orientation.Mul(other.orientation))
}

// Clone returns a deep copy of the pose.
func (p *Pose) Clone() *Pose {
	rm := *p.orientation
	return &Pose{orientation: &rm, point: p.point}
}

// PoseAlmostEqual reports whether two poses have approximately the same translation
// (within distEps meters) and orientation.
func PoseAlmostEqual(a, b *Pose, distEps float64) bool {
	d := a.point.Sub(b.point)
	if d.Norm() > distEps {
		return false
	}
	return OrientationAlmostEqual(a.orientation, b.orientation)
}
