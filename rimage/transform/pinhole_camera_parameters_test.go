package transform

import (
	"testing"

	"go.viam.com/test"
)

func TestIntrinsicsRoundTrip(t *testing.T) {
	intr := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 525, Fy: 525, Ppx: 320, Ppy: 240}
	test.That(t, intr.CheckValid(), test.ShouldBeNil)

	p := intr.PixelToPoint(400, 300, 2.0)
	x, y := intr.PointToPixel(p)
	test.That(t, x, test.ShouldAlmostEqual, 400.0, 1e-9)
	test.That(t, y, test.ShouldAlmostEqual, 300.0, 1e-9)
	test.That(t, p.Z, test.ShouldEqual, 2.0)
}

func TestIntrinsicsAtLevel(t *testing.T) {
	intr := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 525, Fy: 525, Ppx: 320, Ppy: 240}
	lvl1 := intr.AtLevel(1)
	test.That(t, lvl1.Width, test.ShouldEqual, 320)
	test.That(t, lvl1.Height, test.ShouldEqual, 240)
	test.That(t, lvl1.Fx, test.ShouldAlmostEqual, 262.5, 1e-9)
	test.That(t, lvl1.Ppx, test.ShouldAlmostEqual, 160.0, 1e-9)

	lvl2 := intr.AtLevel(2)
	test.That(t, lvl2.Fx, test.ShouldAlmostEqual, 131.25, 1e-9)
}

func TestIntrinsicsInvalid(t *testing.T) {
	var intr *PinholeCameraIntrinsics
	test.That(t, intr.CheckValid(), test.ShouldNotBeNil)

	bad := &PinholeCameraIntrinsics{Width: 0, Height: 480, Fx: 525, Fy: 525}
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
}
