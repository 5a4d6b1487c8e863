// Package transform holds the pinhole camera model shared by preprocessing, tracking,
// integration, and raycasting: projecting a 3D camera-frame point to a pixel, and
// unprojecting a pixel plus depth back to a camera-frame point.
package transform

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is returned when intrinsics parameters are missing or invalid.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with a message.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to project a 3D point in the
// camera frame to the 2D image plane, and back. A full-resolution instance is scaled
// per pyramid level via AtLevel.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid reports whether the intrinsics fields are usable.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid size (%d, %d)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length Fx = %v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length Fy = %v", params.Fy))
	}
	return nil
}

// AtLevel scales the intrinsics for pyramid level i: (fx, fy, ppx, ppy) * 2^-i, and
// halves the image dimensions i times. Level 0 is full resolution.
func (params *PinholeCameraIntrinsics) AtLevel(i int) *PinholeCameraIntrinsics {
	scale := 1.0
	for n := 0; n < i; n++ {
		scale *= 0.5
	}
	return &PinholeCameraIntrinsics{
		Width:  params.Width >> uint(i),
		Height: params.Height >> uint(i),
		Fx:     params.Fx * scale,
		Fy:     params.Fy * scale,
		Ppx:    params.Ppx * scale,
		Ppy:    params.Ppy * scale,
	}
}

// PixelToPoint unprojects a pixel (x, y) with depth z (in the same units as the
// returned point, typically meters) into a camera-frame 3D point: V = z * K^-1 (x,y,1).
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) r3.Vector {
	return r3.Vector{
		X: (x - params.Ppx) / params.Fx * z,
		Y: (y - params.Ppy) / params.Fy * z,
		Z: z,
	}
}

// PointToPixel projects a camera-frame 3D point to a pixel (x, y). If z <= 0 the
// point is behind the camera and the returned pixel is meaningless; callers must
// check z themselves (the projective correspondence search in the tracker and
// integrator does this explicitly rather than relying on a sentinel here).
func (params *PinholeCameraIntrinsics) PointToPixel(p r3.Vector) (float64, float64) {
	return p.X/p.Z*params.Fx + params.Ppx, p.Y/p.Z*params.Fy + params.Ppy
}

// GetCameraMatrix returns the 3x3 calibration matrix K = [[fx,0,ppx],[0,fy,ppy],[0,0,1]].
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	k := mat.NewDense(3, 3, nil)
	k.Set(0, 0, params.Fx)
	k.Set(1, 1, params.Fy)
	k.Set(0, 2, params.Ppx)
	k.Set(1, 2, params.Ppy)
	k.Set(2, 2, 1)
	return k
}
