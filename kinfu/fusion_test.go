package kinfu

import (
	"errors"
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/kinfu-go/kinfu/rimage"
	"github.com/kinfu-go/kinfu/spatialmath"
)

// flatWallFusion builds a Fusion over a small cube, with the camera pinned at
// (0.5, 0.5, 0) facing +Z (identity orientation) so a uniform-range depth frame of
// d meters lands the observed wall at world Z=d, mirroring the geometry
// integrate_test.go and raycast_test.go already establish by hand.
func flatWallFusion(t *testing.T, rows, cols int) *Fusion {
	f, err := New(rows, cols,
		WithVolumeDims([3]int{16, 16, 16}),
		WithVolumeSize(r3.Vector{X: 1, Y: 1, Z: 1}),
		WithInitialCameraPose(spatialmath.NewPose(r3.Vector{X: 0.5, Y: 0.5, Z: 0}, nil)),
	)
	test.That(t, err, test.ShouldBeNil)
	return f
}

func TestBootstrapFrameReturnsFalseAndIntegratesNothing(t *testing.T) {
	rows, cols := 48, 64
	f := flatWallFusion(t, rows, cols)

	raw := rimage.NewEmptyDepthMap(rows, cols)
	tracked, err := f.ProcessDepth(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tracked, test.ShouldBeFalse)
	test.That(t, f.frame, test.ShouldEqual, 1)
	test.That(t, len(f.poses), test.ShouldEqual, 1)

	dims := f.volume.Dims()
	for z := 0; z < dims[2]; z += 4 {
		for y := 0; y < dims[1]; y += 4 {
			for x := 0; x < dims[0]; x += 4 {
				_, w, _ := f.volume.At(x, y, z)
				test.That(t, w, test.ShouldEqual, int16(0))
			}
		}
	}
}

func TestFlatWallTrackedFrameRecoversIdentity(t *testing.T) {
	rows, cols := 48, 64
	f := flatWallFusion(t, rows, cols)
	raw := flatDepthFrame(rows, cols, 500)

	tracked, err := f.ProcessDepth(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tracked, test.ShouldBeFalse)

	tracked, err = f.ProcessDepth(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tracked, test.ShouldBeTrue)
	test.That(t, len(f.poses), test.ShouldEqual, 2)

	test.That(t, spatialmath.PoseAlmostEqual(f.GetCameraPose(-1), f.poses[0], 1e-3), test.ShouldBeTrue)
}

func TestTrackingFailureResetsPoseHistory(t *testing.T) {
	rows, cols := 48, 64
	f := flatWallFusion(t, rows, cols)
	initialPose := f.poses[0]

	raw := flatDepthFrame(rows, cols, 500)
	tracked, err := f.ProcessDepth(raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tracked, test.ShouldBeFalse)

	empty := rimage.NewEmptyDepthMap(rows, cols)
	tracked, err = f.ProcessDepth(empty)
	test.That(t, tracked, test.ShouldBeFalse)
	test.That(t, errors.Is(err, ErrSingularICP), test.ShouldBeTrue)

	test.That(t, f.frame, test.ShouldEqual, 0)
	test.That(t, len(f.poses), test.ShouldEqual, 1)
	test.That(t, spatialmath.PoseAlmostEqual(f.poses[0], initialPose, 1e-12), test.ShouldBeTrue)
}

func TestColorFusionConvergesOverRepeatedFrames(t *testing.T) {
	rows, cols := 48, 64
	f := flatWallFusion(t, rows, cols)
	f.InitColorIntegration(64)

	raw := flatDepthFrame(rows, cols, 500)
	red := rimage.NewImage(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			red.Set(y, x, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	for i := 0; i < 100; i++ {
		_, err := f.ProcessDepthAndColor(raw, red)
		test.That(t, err, test.ShouldBeNil)
	}

	dims := f.volume.Dims()
	cv := f.volume.ColorVolume()
	var bestW uint8
	var bestR, bestG, bestB uint8
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				r, g, b, w := cv.At(x, y, z)
				if w > bestW {
					bestW, bestR, bestG, bestB = w, r, g, b
				}
			}
		}
	}

	test.That(t, bestW, test.ShouldEqual, uint8(64))
	test.That(t, bestR, test.ShouldEqual, uint8(255))
	test.That(t, bestG, test.ShouldEqual, uint8(0))
	test.That(t, bestB, test.ShouldEqual, uint8(0))
}

func TestProcessDepthAndColorRejectsUninitializedColor(t *testing.T) {
	rows, cols := 48, 64
	f := flatWallFusion(t, rows, cols)
	raw := flatDepthFrame(rows, cols, 500)
	red := rimage.NewImage(rows, cols)

	_, err := f.ProcessDepthAndColor(raw, red)
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)
}

func TestProcessDepthRejectsWrongSize(t *testing.T) {
	f := flatWallFusion(t, 48, 64)
	wrong := rimage.NewEmptyDepthMap(10, 10)

	_, err := f.ProcessDepth(wrong)
	test.That(t, errors.Is(err, ErrInvalidInput), test.ShouldBeTrue)
}
