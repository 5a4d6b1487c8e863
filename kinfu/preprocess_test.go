package kinfu

import (
	"testing"

	"go.viam.com/test"

	"github.com/kinfu-go/kinfu/rimage"
	"github.com/kinfu-go/kinfu/rimage/transform"
)

func flatDepthFrame(rows, cols int, mm uint16) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dm.Set(y, x, mm)
		}
	}
	return dm
}

func testIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{Width: 64, Height: 48, Fx: 525, Fy: 525, Ppx: 32, Ppy: 24}
}

func TestPreprocessFlatWall(t *testing.T) {
	raw := flatDepthFrame(48, 64, 1500)
	pyr := NewPyramid(48, 64, 3, testIntrinsics())
	p := &Preprocessor{}
	p.Process(pyr, raw)

	lvl0 := pyr.Levels[0]
	test.That(t, lvl0.DepthCurr.At(24, 32), test.ShouldAlmostEqual, 1.5, 0.01)
	v := lvl0.VertexCurr.At(24, 32)
	test.That(t, validVector(v), test.ShouldBeTrue)
	test.That(t, v.Z, test.ShouldAlmostEqual, 1.5, 0.01)

	n := lvl0.NormalCurr.At(24, 32)
	test.That(t, validVector(n), test.ShouldBeTrue)
	test.That(t, n.Z, test.ShouldBeLessThan, 0)
}

func TestPreprocessZeroDepthAllInvalid(t *testing.T) {
	raw := rimage.NewEmptyDepthMap(48, 64)
	pyr := NewPyramid(48, 64, 3, testIntrinsics())
	p := &Preprocessor{}
	p.Process(pyr, raw)

	for _, lvl := range pyr.Levels {
		for y := 0; y < lvl.VertexCurr.Rows; y++ {
			for x := 0; x < lvl.VertexCurr.Cols; x++ {
				test.That(t, lvl.VertexCurr.Valid(y, x), test.ShouldBeFalse)
			}
		}
	}
}

func TestPreprocessMaxICPDistanceTruncates(t *testing.T) {
	raw := flatDepthFrame(48, 64, 5000)
	pyr := NewPyramid(48, 64, 1, testIntrinsics())
	p := &Preprocessor{MaxICPDistance: 2.0}
	p.Process(pyr, raw)

	test.That(t, pyr.Levels[0].DepthCurr.At(24, 32), test.ShouldEqual, 0.0)
}

func TestPyramidLevelSizes(t *testing.T) {
	pyr := NewPyramid(480, 640, 3, testIntrinsics())
	test.That(t, pyr.Levels[0].DepthCurr.Rows, test.ShouldEqual, 480)
	test.That(t, pyr.Levels[1].DepthCurr.Rows, test.ShouldEqual, 240)
	test.That(t, pyr.Levels[2].DepthCurr.Rows, test.ShouldEqual, 120)
	test.That(t, pyr.Levels[1].Intrinsics.Fx, test.ShouldAlmostEqual, 262.5, 1e-9)
}
