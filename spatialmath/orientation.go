package spatialmath

import (
	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the
// orientation of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	Quaternion() quat.Number
	RotationMatrix() *RotationMatrix
	AxisAngles() *R4AA
}

// quaternion is an Orientation backed directly by a unit quaternion.
type quaternion quat.Number

// NewOrientationFromQuaternion wraps a quat.Number as an Orientation.
func NewOrientationFromQuaternion(q quat.Number) Orientation {
	qq := quaternion(q)
	return &qq
}

func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

func (q *quaternion) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(quat.Number(*q))
}

func (q *quaternion) AxisAngles() *R4AA {
	return QuatToR4AA(quat.Number(*q))
}

// NewZeroOrientation returns an orientation which signifies no rotation.
func NewZeroOrientation() Orientation {
	q := quaternion(quat.Number{Real: 1})
	return &q
}

// QuaternionAlmostEqual returns whether two quaternions represent the same rotation to
// within the given epsilon, accounting for the double-cover of SO(3) by unit quaternions
// (q and -q represent the same rotation).
func QuaternionAlmostEqual(q1, q2 quat.Number, epsilon float64) bool {
	diff := func(a, b quat.Number) float64 {
		return absF(a.Real-b.Real) + absF(a.Imag-b.Imag) + absF(a.Jmag-b.Jmag) + absF(a.Kmag-b.Kmag)
	}
	return diff(q1, q2) < epsilon || diff(q1, quat.Scale(-1, q2)) < epsilon
}

// OrientationAlmostEqual returns whether two Orientations describe approximately the same
// rotation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
