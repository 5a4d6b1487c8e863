package kinfu

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/kinfu-go/kinfu/rimage/transform"
	"github.com/kinfu-go/kinfu/spatialmath"
)

// fillPlanarTSDF sets every voxel's tsdf to a simple linear function of Z,
// centered (zero-crossing) at wallZ, fully observed with weight 1 throughout,
// simulating what the Integrator would have produced from a frontal flat wall.
func fillPlanarTSDF(v *Volume, wallZ, trancDist float64) {
	dims := v.Dims()
	for z := 0; z < dims[2]; z++ {
		center := v.VoxelCenter(0, 0, z).Z
		sdf := wallZ - center
		if sdf > trancDist {
			sdf = trancDist
		}
		if sdf < -trancDist {
			sdf = -trancDist
		}
		tsdf := sdf / trancDist
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				v.SetRaw(x, y, z, floatToFixed(tsdf), 1)
			}
		}
	}
}

func TestRaycastFindsPlanarZeroCrossing(t *testing.T) {
	dims := [3]int{64, 64, 64}
	size := r3.Vector{X: 2, Y: 2, Z: 2}
	v := NewVolume(dims, size)
	v.SetTruncationDistance(0.03)

	wallZ := 1.0
	fillPlanarTSDF(v, wallZ, v.TruncationDistance())

	intr := &transform.PinholeCameraIntrinsics{Width: 64, Height: 64, Fx: 525, Fy: 525, Ppx: 32, Ppy: 32}
	pyr := NewPyramid(64, 64, 1, intr)

	pose := spatialmath.NewPose(r3.Vector{X: 1, Y: 1, Z: 0}, nil)

	rc := &Raycaster{}
	rc.Cast(pyr, v, pose)

	lvl0 := pyr.Levels[0]
	p := lvl0.VertexPrevWorld.At(32, 32)
	test.That(t, validVector(p), test.ShouldBeTrue)
	test.That(t, p.Z, test.ShouldAlmostEqual, wallZ, 0.05)

	n := lvl0.NormalPrevWorld.At(32, 32)
	test.That(t, validVector(n), test.ShouldBeTrue)
	test.That(t, n.Z, test.ShouldBeLessThan, 0)
}

func TestRaycastMissesEmptyVolume(t *testing.T) {
	dims := [3]int{32, 32, 32}
	size := r3.Vector{X: 1, Y: 1, Z: 1}
	v := NewVolume(dims, size)
	v.SetTruncationDistance(0.03)

	intr := &transform.PinholeCameraIntrinsics{Width: 32, Height: 32, Fx: 525, Fy: 525, Ppx: 16, Ppy: 16}
	pyr := NewPyramid(32, 32, 1, intr)
	pose := spatialmath.NewPose(r3.Vector{X: 0.5, Y: 0.5, Z: 0}, nil)

	rc := &Raycaster{}
	rc.Cast(pyr, v, pose)

	p := pyr.Levels[0].VertexPrevWorld.At(16, 16)
	test.That(t, validVector(p), test.ShouldBeFalse)
}

func TestResizeVMapAveragesValidBlock(t *testing.T) {
	src := NewVectorMap(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(y, x, r3.Vector{X: float64(x), Y: float64(y), Z: 1})
		}
	}
	dst := NewVectorMap(2, 2)
	resizeVMap(src, dst)

	v := dst.At(0, 0)
	test.That(t, v.X, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, v.Y, test.ShouldAlmostEqual, 0.5, 1e-9)
}
