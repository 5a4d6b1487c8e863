package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// EulerAngles represents an orientation as an X-Y-Z (roll, pitch, yaw) Euler sequence.
// Euler angles are convenient for small-angle increments but are terrible for anything
// else (gimbal lock, representation is not unique); don't accumulate state in this form.
type EulerAngles struct {
	Roll  float64 // rotation about X, radians
	Pitch float64 // rotation about Y, radians
	Yaw   float64 // rotation about Z, radians
}

// NewEulerAngles returns the identity orientation.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{}
}

// RotationMatrix builds R = Rz(Yaw) * Ry(Pitch) * Rx(Roll), applied to a column vector as
// R*v. This is the ordering the small-angle ICP increment uses to turn (α, β, γ) into a
// rotation.
func (e *EulerAngles) RotationMatrix() *RotationMatrix {
	sr, cr := math.Sin(e.Roll), math.Cos(e.Roll)
	sp, cp := math.Sin(e.Pitch), math.Cos(e.Pitch)
	sy, cy := math.Sin(e.Yaw), math.Cos(e.Yaw)

	rx := &RotationMatrix{[9]float64{
		1, 0, 0,
		0, cr, -sr,
		0, sr, cr,
	}}
	ry := &RotationMatrix{[9]float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	}}
	rz := &RotationMatrix{[9]float64{
		cy, -sy, 0,
		sy, cy, 0,
		0, 0, 1,
	}}
	return rz.Mul(ry).Mul(rx)
}

// Quaternion converts to a unit quaternion via the rotation matrix.
func (e *EulerAngles) Quaternion() quat.Number {
	return e.RotationMatrix().Quaternion()
}

// AxisAngles converts to axis-angle representation.
func (e *EulerAngles) AxisAngles() *R4AA {
	return QuatToR4AA(e.Quaternion())
}

// QuatToEulerAngles converts a unit quaternion to the X-Y-Z Euler sequence.
func QuatToEulerAngles(q quat.Number) *EulerAngles {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	var pitch float64
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	return &EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw}
}
