package kinfu

import (
	"image"
	"math"

	"github.com/golang/geo/r3"

	"github.com/kinfu-go/kinfu/rimage/transform"
	"github.com/kinfu-go/kinfu/spatialmath"
	kutils "github.com/kinfu-go/kinfu/utils"
)

// Raycaster renders the model's predicted vertex/normal maps by marching a ray per
// pixel through the TSDF volume and locating the nearest zero crossing, per spec
// section 4.4. It fills level 0 at full resolution and derives coarser levels by a
// simple 2x box downsample, mirroring Preprocessor's depth pyramid.
type Raycaster struct{}

// Cast renders pyr's VertexPrevWorld/NormalPrevWorld maps at every level from v
// under the given camera-to-world pose.
func (rc *Raycaster) Cast(pyr *Pyramid, v *Volume, pose *spatialmath.Pose) {
	lvl0 := pyr.Levels[0]
	castLevel0(v, pose, lvl0.Intrinsics, lvl0.VertexPrevWorld, lvl0.NormalPrevWorld)

	prevV, prevN := lvl0.VertexPrevWorld, lvl0.NormalPrevWorld
	for i := 1; i < len(pyr.Levels); i++ {
		lvl := pyr.Levels[i]
		resizeVMap(prevV, lvl.VertexPrevWorld)
		resizeNMap(prevN, lvl.NormalPrevWorld)
		prevV, prevN = lvl.VertexPrevWorld, lvl.NormalPrevWorld
	}
}

// castLevel0 marches one ray per pixel of vmapOut/nmapOut, dispatched over the
// image the same way the rest of the pipeline simulates per-pixel device work.
func castLevel0(v *Volume, pose *spatialmath.Pose, intr *transform.PinholeCameraIntrinsics, vmapOut, nmapOut *VectorMap) {
	step := 0.5 * v.TruncationDistance()
	if step <= 0 {
		cell := v.CellSize()
		step = 0.5 * math.Max(cell.X, math.Max(cell.Y, cell.Z))
	}
	origin := pose.Point()

	kutils.ParallelForEachPixel(image.Point{X: intr.Width, Y: intr.Height}, func(x, y int) {
		rayLocal := intr.PixelToPoint(float64(x), float64(y), 1)
		dir := pose.Orientation().MulVector(rayLocal)
		norm := dir.Norm()
		if norm == 0 {
			return
		}
		dir = dir.Mul(1 / norm)

		tMin, tMax, hit := intersectAABB(origin, dir, v.VolumeSize())
		if !hit {
			return
		}

		havePrev := false
		var prevT, prevTSDF float64

		for t := tMin; t <= tMax; t += step {
			pos := origin.Add(dir.Mul(t))
			tsdf, weight, observed := sampleTSDFTrilinear(v, pos)
			if !observed || weight == 0 {
				havePrev = false
				continue
			}

			if havePrev && prevTSDF > 0 && tsdf <= 0 {
				denom := prevTSDF - tsdf
				if denom == 0 {
					return
				}
				tCross := prevT + (t-prevT)*prevTSDF/denom
				posCross := origin.Add(dir.Mul(tCross))
				normal, ok := centralDifferenceNormal(v, posCross)
				if !ok {
					return
				}
				vmapOut.Set(y, x, posCross)
				nmapOut.Set(y, x, normal)
				return
			}

			havePrev = true
			prevT = t
			prevTSDF = tsdf
		}
	})
}

// intersectAABB computes the [tMin, tMax] ray-parameter range over which the ray
// (origin, dir) lies inside the axis-aligned box [0, size] (the slab method),
// spec section 4.4 step 2. Returns hit=false if the ray misses the box or the box
// is entirely behind the ray origin.
func intersectAABB(origin, dir, size r3.Vector) (tMin, tMax float64, hit bool) {
	tMin, tMax = 0, math.Inf(1)

	update := func(o, d, max float64) bool {
		if d == 0 {
			return o >= 0 && o <= max
		}
		t0 := (0 - o) / d
		t1 := (max - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		return tMin <= tMax
	}

	if !update(origin.X, dir.X, size.X) {
		return 0, 0, false
	}
	if !update(origin.Y, dir.Y, size.Y) {
		return 0, 0, false
	}
	if !update(origin.Z, dir.Z, size.Z) {
		return 0, 0, false
	}
	return tMin, tMax, true
}

// sampleTSDFTrilinear interpolates the tsdf field at a continuous world position.
// It reports observed=false if pos falls outside the grid or any of the 8
// surrounding voxels has never been observed, so callers never blend real data
// with the unobserved sentinel.
func sampleTSDFTrilinear(v *Volume, pos r3.Vector) (tsdf float64, weight int16, observed bool) {
	cell := v.CellSize()
	dims := v.Dims()

	fx := pos.X/cell.X - 0.5
	fy := pos.Y/cell.Y - 0.5
	fz := pos.Z/cell.Z - 0.5

	x0, y0, z0 := int(math.Floor(fx)), int(math.Floor(fy)), int(math.Floor(fz))
	x1, y1, z1 := x0+1, y0+1, z0+1
	if x0 < 0 || y0 < 0 || z0 < 0 || x1 >= dims[0] || y1 >= dims[1] || z1 >= dims[2] {
		return 0, 0, false
	}

	tx, ty, tz := fx-float64(x0), fy-float64(y0), fz-float64(z0)

	var corners [8]float64
	var weights [8]int16
	i := 0
	for _, cz := range [2]int{z0, z1} {
		for _, cy := range [2]int{y0, y1} {
			for _, cx := range [2]int{x0, x1} {
				val, w, ok := v.At(cx, cy, cz)
				if !ok {
					return 0, 0, false
				}
				corners[i] = val
				weights[i] = w
				i++
			}
		}
	}

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	c00 := lerp(corners[0], corners[1], tx)
	c10 := lerp(corners[2], corners[3], tx)
	c01 := lerp(corners[4], corners[5], tx)
	c11 := lerp(corners[6], corners[7], tx)
	c0 := lerp(c00, c10, ty)
	c1 := lerp(c01, c11, ty)
	val := lerp(c0, c1, tz)

	minWeight := weights[0]
	for _, w := range weights[1:] {
		if w < minWeight {
			minWeight = w
		}
	}
	return val, minWeight, true
}

// centralDifferenceNormal estimates the TSDF gradient at pos by central
// differences one half-voxel wide along each axis, per spec section 4.4 step 5.
// It reports ok=false if any of the six samples needed falls outside the
// observed volume.
func centralDifferenceNormal(v *Volume, pos r3.Vector) (r3.Vector, bool) {
	cell := v.CellSize()
	hx := r3.Vector{X: 0.5 * cell.X}
	hy := r3.Vector{Y: 0.5 * cell.Y}
	hz := r3.Vector{Z: 0.5 * cell.Z}

	xPos, _, okXPos := sampleTSDFTrilinear(v, pos.Add(hx))
	xNeg, _, okXNeg := sampleTSDFTrilinear(v, pos.Sub(hx))
	yPos, _, okYPos := sampleTSDFTrilinear(v, pos.Add(hy))
	yNeg, _, okYNeg := sampleTSDFTrilinear(v, pos.Sub(hy))
	zPos, _, okZPos := sampleTSDFTrilinear(v, pos.Add(hz))
	zNeg, _, okZNeg := sampleTSDFTrilinear(v, pos.Sub(hz))
	if !okXPos || !okXNeg || !okYPos || !okYNeg || !okZPos || !okZNeg {
		return r3.Vector{}, false
	}

	grad := r3.Vector{
		X: (xPos - xNeg) / cell.X,
		Y: (yPos - yNeg) / cell.Y,
		Z: (zPos - zNeg) / cell.Z,
	}
	norm := grad.Norm()
	if norm == 0 {
		return r3.Vector{}, false
	}
	return grad.Mul(1 / norm), true
}

// resizeVMap downsamples src into dst (half the resolution on each axis) by
// averaging each valid 2x2 block, skipping invalid corners entirely; a block with
// no valid corner stays invalid. Mirrors Preprocessor's depth downsample, per spec
// section 4.4's resizeVMap/resizeNMap.
func resizeVMap(src, dst *VectorMap) {
	for y := 0; y < dst.Rows; y++ {
		for x := 0; x < dst.Cols; x++ {
			sy, sx := y*2, x*2
			var sum r3.Vector
			var n float64
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					val := src.At(sy+dy, sx+dx)
					if !validVector(val) {
						continue
					}
					sum = sum.Add(val)
					n++
				}
			}
			if n > 0 {
				dst.Set(y, x, sum.Mul(1/n))
			}
		}
	}
}

// resizeNMap is resizeVMap's normal-map analogue: the averaged direction is
// renormalized so coarser-level normals stay unit length.
func resizeNMap(src, dst *VectorMap) {
	for y := 0; y < dst.Rows; y++ {
		for x := 0; x < dst.Cols; x++ {
			sy, sx := y*2, x*2
			var sum r3.Vector
			var n float64
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					val := src.At(sy+dy, sx+dx)
					if !validVector(val) {
						continue
					}
					sum = sum.Add(val)
					n++
				}
			}
			if n == 0 {
				continue
			}
			norm := sum.Norm()
			if norm == 0 {
				continue
			}
			dst.Set(y, x, sum.Mul(1/norm))
		}
	}
}
