package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 rotation matrix in SO(3), stored row-major. It is the
// representation used internally wherever a rotation must be composed or applied to many
// points in a tight loop, since it avoids the repeated quaternion normalization that would
// otherwise accumulate per-pixel.
type RotationMatrix struct {
	data [9]float64
}

// NewRotationMatrix builds a RotationMatrix from 9 row-major values.
func NewRotationMatrix(vals [9]float64) *RotationMatrix {
	return &RotationMatrix{vals}
}

// NewZeroRotationMatrix returns the identity rotation.
func NewZeroRotationMatrix() *RotationMatrix {
	return &RotationMatrix{[9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// At returns the (row, col) entry, 0-indexed.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.data[row*3+col]
}

// Set assigns the (row, col) entry, 0-indexed.
func (rm *RotationMatrix) Set(row, col int, v float64) {
	rm.data[row*3+col] = v
}

// Row returns the row as a vector; row 0 is the parent X axis expressed in the local frame,
// and so on (the local axes expressed in the parent frame are the columns).
func (rm *RotationMatrix) Row(i int) r3.Vector {
	return r3.Vector{X: rm.At(i, 0), Y: rm.At(i, 1), Z: rm.At(i, 2)}
}

// MulVector applies the rotation to a vector: R*v.
func (rm *RotationMatrix) MulVector(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.At(0, 0)*v.X + rm.At(0, 1)*v.Y + rm.At(0, 2)*v.Z,
		Y: rm.At(1, 0)*v.X + rm.At(1, 1)*v.Y + rm.At(1, 2)*v.Z,
		Z: rm.At(2, 0)*v.X + rm.At(2, 1)*v.Y + rm.At(2, 2)*v.Z,
	}
}

// MulTransposeVector applies the transpose (== inverse, for a proper rotation) of the
// matrix to a vector: Rᵀ*v.
func (rm *RotationMatrix) MulTransposeVector(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: rm.At(0, 0)*v.X + rm.At(1, 0)*v.Y + rm.At(2, 0)*v.Z,
		Y: rm.At(0, 1)*v.X + rm.At(1, 1)*v.Y + rm.At(2, 1)*v.Z,
		Z: rm.At(0, 2)*v.X + rm.At(1, 2)*v.Y + rm.At(2, 2)*v.Z,
	}
}

// Mul composes this*other, returning a new RotationMatrix equal to this rotation
// applied after `other`.
func (rm *RotationMatrix) Mul(other *RotationMatrix) *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += rm.At(i, k) * other.At(k, j)
			}
			out.Set(i, j, sum)
		}
	}
	return &out
}

// Transpose returns the transpose of the matrix, which is its inverse when the matrix is a
// proper rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.Set(i, j, rm.At(j, i))
		}
	}
	return &out
}

// Quaternion converts the rotation matrix to its equivalent unit quaternion using the
// standard trace-based method (stable near all four quadrants).
func (rm *RotationMatrix) Quaternion() quat.Number {
	m00, m01, m02 := rm.At(0, 0), rm.At(0, 1), rm.At(0, 2)
	m10, m11, m12 := rm.At(1, 0), rm.At(1, 1), rm.At(1, 2)
	m20, m21, m22 := rm.At(2, 0), rm.At(2, 1), rm.At(2, 2)

	trace := m00 + m11 + m22
	var w, x, y, z float64
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		w = 0.25 / s
		x = (m21 - m12) * s
		y = (m02 - m20) * s
		z = (m10 - m01) * s
	case m00 > m11 && m00 > m22:
		s := 2.0 * math.Sqrt(1.0+m00-m11-m22)
		w = (m21 - m12) / s
		x = 0.25 * s
		y = (m01 + m10) / s
		z = (m02 + m20) / s
	case m11 > m22:
		s := 2.0 * math.Sqrt(1.0+m11-m00-m22)
		w = (m02 - m20) / s
		x = (m01 + m10) / s
		y = 0.25 * s
		z = (m12 + m21) / s
	default:
		s := 2.0 * math.Sqrt(1.0+m22-m00-m11)
		w = (m10 - m01) / s
		x = (m02 + m20) / s
		y = (m12 + m21) / s
		z = 0.25 * s
	}
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// RotationMatrix implements Orientation by returning itself.
func (rm *RotationMatrix) RotationMatrix() *RotationMatrix {
	return rm
}

// AxisAngles returns the orientation in axis angle representation.
func (rm *RotationMatrix) AxisAngles() *R4AA {
	return QuatToR4AA(rm.Quaternion())
}

// QuatToRotationMatrix converts a unit quaternion to its equivalent rotation matrix.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	norm := Norm(q)*Norm(q) + q.Real*q.Real
	if norm == 0 {
		return NewZeroRotationMatrix()
	}
	s := 2.0 / norm
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	xs, ys, zs := x*s, y*s, z*s
	wx, wy, wz := w*xs, w*ys, w*zs
	xx, xy, xz := x*xs, x*ys, x*zs
	yy, yz, zz := y*ys, y*zs, z*zs

	return &RotationMatrix{[9]float64{
		1 - (yy + zz), xy - wz, xz + wy,
		xy + wz, 1 - (xx + zz), yz - wx,
		xz - wy, yz + wx, 1 - (xx + yy),
	}}
}

// NewRotationMatrixFromEulerAngles builds R = Rz(yaw) * Ry(pitch) * Rx(roll), the convention
// used for composing small-angle ICP increments (see EulerAngles.RotationMatrix).
func NewRotationMatrixFromEulerAngles(e *EulerAngles) *RotationMatrix {
	return e.RotationMatrix()
}
