package kinfu

import (
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/kinfu-go/kinfu/rimage"
	"github.com/kinfu-go/kinfu/rimage/transform"
	"github.com/kinfu-go/kinfu/spatialmath"
)

func TestIntegrateFlatWallIncreasesWeight(t *testing.T) {
	dims := [3]int{64, 64, 64}
	size := r3.Vector{X: 2, Y: 2, Z: 2}
	v := NewVolume(dims, size)
	v.SetTruncationDistance(0.03)

	raw := flatDepthFrame(64, 64, 1500)
	intr := &transform.PinholeCameraIntrinsics{Width: 64, Height: 64, Fx: 525, Fy: 525, Ppx: 32, Ppy: 32}
	ig := &Integrator{Intrinsics: intr}

	// Camera sits on the volume's central axis (x=1, y=1) looking along +Z, so the
	// voxels near the middle of the wall project close to the image center.
	pose := spatialmath.NewPose(r3.Vector{X: 1, Y: 1, Z: 0}, nil)
	ig.Integrate(v, raw, pose)

	cell := v.CellSize()
	zIdx := int(1.5 / cell.Z)
	_, weight, observed := v.At(32, 32, zIdx)
	test.That(t, observed, test.ShouldBeTrue)
	test.That(t, weight, test.ShouldBeGreaterThan, int16(0))

	ig.Integrate(v, raw, pose)
	_, weight2, _ := v.At(32, 32, zIdx)
	test.That(t, weight2, test.ShouldBeGreaterThanOrEqualTo, weight)
}

func TestIntegrateTruncationShortCircuit(t *testing.T) {
	dims := [3]int{32, 32, 32}
	size := r3.Vector{X: 1, Y: 1, Z: 1}
	v := NewVolume(dims, size)
	v.SetTruncationDistance(0.05)

	raw := flatDepthFrame(32, 32, 100)
	intr := &transform.PinholeCameraIntrinsics{Width: 32, Height: 32, Fx: 525, Fy: 525, Ppx: 16, Ppy: 16}
	ig := &Integrator{Intrinsics: intr}
	pose := spatialmath.NewPose(r3.Vector{X: 0.5, Y: 0.5, Z: 0}, nil)
	ig.Integrate(v, raw, pose)

	_, _, observedFar := v.At(16, 16, 31)
	test.That(t, observedFar, test.ShouldBeFalse)
}

func TestIntegrateColorConverges(t *testing.T) {
	dims := [3]int{16, 16, 16}
	v := NewVolume(dims, r3.Vector{X: 1, Y: 1, Z: 1})
	v.InitColorIntegration(64)

	vmap := NewVectorMap(4, 4)
	vmap.Set(2, 2, v.VoxelCenter(8, 8, 8))

	img := rimage.NewImage(4, 4)
	img.Set(2, 2, color.NRGBA{R: 255, G: 0, B: 0, A: 255})

	ig := &Integrator{}
	for i := 0; i < 100; i++ {
		ig.IntegrateColor(v, img, vmap)
	}

	r, g, b, w := v.ColorVolume().At(8, 8, 8)
	test.That(t, r, test.ShouldEqual, uint8(255))
	test.That(t, g, test.ShouldEqual, uint8(0))
	test.That(t, b, test.ShouldEqual, uint8(0))
	test.That(t, w, test.ShouldEqual, uint8(64))
}
