package kinfu

import (
	"errors"
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/kinfu-go/kinfu/spatialmath"
)

// buildFlatWallPyramid fills both the current-frame and the predicted-model maps
// of every level with the same flat wall at depthM meters, so a Tracker started
// from the identity pose should find (near) zero correction.
func buildFlatWallPyramid(levels int, depthM float64) *Pyramid {
	pyr := NewPyramid(48, 64, levels, testIntrinsics())
	raw := flatDepthFrame(48, 64, uint16(depthM*1000))
	p := &Preprocessor{}
	p.Process(pyr, raw)

	for _, lvl := range pyr.Levels {
		for row := 0; row < lvl.VertexCurr.Rows; row++ {
			for col := 0; col < lvl.VertexCurr.Cols; col++ {
				lvl.VertexPrevWorld.Set(row, col, lvl.VertexCurr.At(row, col))
				lvl.NormalPrevWorld.Set(row, col, lvl.NormalCurr.At(row, col))
			}
		}
	}
	return pyr
}

func TestTrackerConvergesOnStationaryFlatWall(t *testing.T) {
	pyr := buildFlatWallPyramid(3, 1.5)
	tracker := NewTracker()
	prevPose := spatialmath.NewZeroPose()

	pose, err := tracker.Track(pyr, prevPose)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(pose, prevPose, 1e-6), test.ShouldBeTrue)
}

// buildPitchedPyramid builds a pyramid whose predicted model maps are a flat wall
// at depthM (as buildFlatWallPyramid), but whose current-frame maps are the same
// wall as it would appear to a camera rotated by pitchRad about the world/model Y
// axis relative to the model's frame: V_local = R_true^T * V_world, so that a
// Tracker started from the identity pose should recover R_true exactly.
func buildPitchedPyramid(levels int, depthM, pitchRad float64) *Pyramid {
	pyr := buildFlatWallPyramid(levels, depthM)
	rTrue := (&spatialmath.EulerAngles{Pitch: pitchRad}).RotationMatrix()
	rTrueT := rTrue.Transpose()

	for _, lvl := range pyr.Levels {
		for row := 0; row < lvl.VertexCurr.Rows; row++ {
			for col := 0; col < lvl.VertexCurr.Cols; col++ {
				vWorld := lvl.VertexPrevWorld.At(row, col)
				nWorld := lvl.NormalPrevWorld.At(row, col)
				if !validVector(vWorld) || !validVector(nWorld) {
					continue
				}
				lvl.VertexCurr.Set(row, col, rTrueT.MulVector(vWorld))
				lvl.NormalCurr.Set(row, col, rTrueT.MulVector(nWorld))
			}
		}
	}
	return pyr
}

func TestTrackerRecoversSmallPitchRotation(t *testing.T) {
	pitchRad := 2 * math.Pi / 180
	pyr := buildPitchedPyramid(3, 1.5, pitchRad)
	tracker := NewTracker()

	pose, err := tracker.Track(pyr, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)

	recovered := spatialmath.QuatToEulerAngles(pose.Orientation().Quaternion())
	test.That(t, recovered.Pitch, test.ShouldAlmostEqual, pitchRad, 1e-4)
	test.That(t, pose.Point().Norm(), test.ShouldBeLessThan, 1e-3)
}

func TestTrackerFailsWithNoCorrespondences(t *testing.T) {
	pyr := NewPyramid(48, 64, 3, testIntrinsics())
	// Current frame has valid geometry but the predicted model maps are left all
	// NaN (as if nothing has ever been integrated/raycast), so no correspondence
	// can ever be formed.
	raw := flatDepthFrame(48, 64, 1500)
	p := &Preprocessor{}
	p.Process(pyr, raw)

	tracker := NewTracker()
	_, err := tracker.Track(pyr, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrSingularICP), test.ShouldBeTrue)
}
