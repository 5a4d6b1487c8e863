package kinfu

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestVolumeUnobservedByDefault(t *testing.T) {
	v := NewVolume([3]int{8, 8, 8}, r3.Vector{X: 1, Y: 1, Z: 1})
	tsdf, weight, observed := v.At(0, 0, 0)
	test.That(t, observed, test.ShouldBeFalse)
	test.That(t, weight, test.ShouldEqual, int16(0))
	test.That(t, tsdf, test.ShouldAlmostEqual, 1.0, 1e-9)
}

func TestVolumePackRoundTrip(t *testing.T) {
	v := NewVolume([3]int{4, 4, 4}, r3.Vector{X: 1, Y: 1, Z: 1})
	v.SetRaw(1, 2, 3, -16000, 5)
	tsdf, weight, observed := v.At(1, 2, 3)
	test.That(t, observed, test.ShouldBeTrue)
	test.That(t, weight, test.ShouldEqual, int16(5))
	test.That(t, tsdf, test.ShouldAlmostEqual, -16000.0/Divisor, 1e-9)
}

func TestVolumeTruncationClamp(t *testing.T) {
	v := NewVolume([3]int{512, 512, 512}, r3.Vector{X: 3, Y: 3, Z: 3})
	v.SetTruncationDistance(0.03)
	minAllowed := 2.1 * v.maxCellSize()
	test.That(t, v.TruncationDistance(), test.ShouldBeGreaterThanOrEqualTo, minAllowed)

	v.SetTruncationDistance(10.0)
	test.That(t, v.TruncationDistance(), test.ShouldAlmostEqual, 10.0, 1e-9)
}

func TestVolumeReset(t *testing.T) {
	v := NewVolume([3]int{4, 4, 4}, r3.Vector{X: 1, Y: 1, Z: 1})
	v.SetRaw(0, 0, 0, 100, 3)
	v.Reset()
	_, weight, observed := v.At(0, 0, 0)
	test.That(t, observed, test.ShouldBeFalse)
	test.That(t, weight, test.ShouldEqual, int16(0))
}

func TestColorVolumeConvergence(t *testing.T) {
	v := NewVolume([3]int{4, 4, 4}, r3.Vector{X: 1, Y: 1, Z: 1})
	v.InitColorIntegration(64)
	cv := v.ColorVolume()
	test.That(t, cv, test.ShouldNotBeNil)

	for i := 0; i < 100; i++ {
		cv.Update(1, 1, 1, 255, 0, 0)
	}
	r, g, b, w := cv.At(1, 1, 1)
	test.That(t, r, test.ShouldEqual, uint8(255))
	test.That(t, g, test.ShouldEqual, uint8(0))
	test.That(t, b, test.ShouldEqual, uint8(0))
	test.That(t, w, test.ShouldEqual, uint8(64))
}

func TestVoxelCenter(t *testing.T) {
	v := NewVolume([3]int{2, 2, 2}, r3.Vector{X: 2, Y: 2, Z: 2})
	center := v.VoxelCenter(0, 0, 0)
	test.That(t, center.X, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, center.Y, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, center.Z, test.ShouldAlmostEqual, 0.5, 1e-9)
}
