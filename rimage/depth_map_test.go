package rimage

import (
	"testing"

	"go.viam.com/test"
)

func TestDepthMapGetSet(t *testing.T) {
	dm := NewEmptyDepthMap(4, 6)
	test.That(t, dm.Rows(), test.ShouldEqual, 4)
	test.That(t, dm.Cols(), test.ShouldEqual, 6)
	test.That(t, dm.Valid(0, 0), test.ShouldBeFalse)

	dm.Set(2, 3, 1500)
	test.That(t, dm.Get(2, 3), test.ShouldEqual, uint16(1500))
	test.That(t, dm.Valid(2, 3), test.ShouldBeTrue)

	test.That(t, dm.In(4, 0), test.ShouldBeFalse)
	test.That(t, dm.Get(-1, 0), test.ShouldEqual, uint16(0))
}

func TestDepthMapFromData(t *testing.T) {
	data := make([]uint16, 2*3)
	dm, err := NewDepthMapFromData(2, 3, data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Rows(), test.ShouldEqual, 2)

	_, err = NewDepthMapFromData(2, 3, make([]uint16, 5))
	test.That(t, err, test.ShouldNotBeNil)
}
