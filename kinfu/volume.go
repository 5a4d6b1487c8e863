package kinfu

import (
	"math"

	"github.com/golang/geo/r3"
)

// Divisor is the fixed-point scale for packed TSDF values: a raw signed 16-bit
// tsdf of +Divisor also doubles as the "unobserved" sentinel. Bound once here and
// reused by packing, extraction, and the host-side float dump, per the original
// KinFu source's local `const int DIVISOR = 32767`.
const Divisor = 32767

// DefaultMaxWeight is the running-average weight cap used before color integration
// is enabled (spec section 6: "max_weight=1 until color integration is enabled").
const DefaultMaxWeight = 1

// packVoxel packs a signed fixed-point tsdf and a signed weight into one 32-bit
// word, tsdf in the low half, weight in the high half.
func packVoxel(tsdf, weight int16) int32 {
	return int32(uint32(uint16(tsdf)) | uint32(uint16(weight))<<16)
}

// unpackVoxel splits a packed word back into its tsdf and weight halves.
func unpackVoxel(word int32) (tsdf, weight int16) {
	u := uint32(word)
	return int16(uint16(u)), int16(uint16(u >> 16))
}

// Volume is the dense TSDF voxel grid: VolumeX x VolumeY x VolumeZ voxels covering
// a metric cube of side VolumeSize, each holding a packed (tsdf, weight) pair.
// Voxels are indexed with X fastest, then Y, then Z, matching the host dump layout
// required by spec section 6.
type Volume struct {
	dims       [3]int
	volumeSize r3.Vector
	cellSize   r3.Vector
	trancDist  float64
	maxWeight  int16

	voxels []int32
	color  *ColorVolume
}

// NewVolume allocates a Volume of the given voxel dimensions and metric size, with
// every voxel initialized to "unobserved" (tsdf == +Divisor, weight == 0).
func NewVolume(dims [3]int, volumeSize r3.Vector) *Volume {
	v := &Volume{
		dims:       dims,
		volumeSize: volumeSize,
		maxWeight:  DefaultMaxWeight,
	}
	v.recomputeCellSize()
	v.voxels = make([]int32, dims[0]*dims[1]*dims[2])
	v.Reset()
	return v
}

func (v *Volume) recomputeCellSize() {
	v.cellSize = r3.Vector{
		X: v.volumeSize.X / float64(v.dims[0]),
		Y: v.volumeSize.Y / float64(v.dims[1]),
		Z: v.volumeSize.Z / float64(v.dims[2]),
	}
}

// maxCellSize returns the largest of the three per-axis cell dimensions.
func (v *Volume) maxCellSize() float64 {
	m := v.cellSize.X
	if v.cellSize.Y > m {
		m = v.cellSize.Y
	}
	if v.cellSize.Z > m {
		m = v.cellSize.Z
	}
	return m
}

// Dims returns the voxel grid dimensions (VolumeX, VolumeY, VolumeZ).
func (v *Volume) Dims() [3]int { return v.dims }

// VolumeSize returns the metric side lengths of the cube the grid covers.
func (v *Volume) VolumeSize() r3.Vector { return v.volumeSize }

// SetVolumeSize updates the metric extent of the grid and re-derives cell sizes.
// The number of voxels is unchanged; existing voxel contents are left untouched
// (callers that need the old fusion discarded should call Reset separately).
func (v *Volume) SetVolumeSize(size r3.Vector) {
	v.volumeSize = size
	v.recomputeCellSize()
	if v.trancDist > 0 {
		v.trancDist = clampTruncationDistance(v.trancDist, v.maxCellSize())
	}
}

// CellSize returns the metric size of one voxel.
func (v *Volume) CellSize() r3.Vector { return v.cellSize }

// clampTruncationDistance enforces the spec's tranc_dist >= 2.1*max(cell_size)
// invariant, raising d if necessary rather than erroring.
func clampTruncationDistance(d, maxCell float64) float64 {
	min := 2.1 * maxCell
	if d < min {
		return min
	}
	return d
}

// SetTruncationDistance sets the TSDF truncation distance, clamped up to
// 2.1*max(cell_size) if the requested value is too small for the current grid.
func (v *Volume) SetTruncationDistance(d float64) {
	v.trancDist = clampTruncationDistance(d, v.maxCellSize())
}

// TruncationDistance returns the effective (post-clamp) truncation distance.
func (v *Volume) TruncationDistance() float64 { return v.trancDist }

// SetMaxWeight sets the running-average weight cap (raised to DefaultMaxWeight's
// successor range once color integration begins, per spec section 6).
func (v *Volume) SetMaxWeight(w int16) { v.maxWeight = w }

// MaxWeight returns the current running-average weight cap.
func (v *Volume) MaxWeight() int16 { return v.maxWeight }

// index computes the flat, X-fastest offset for voxel (x, y, z).
func (v *Volume) index(x, y, z int) int {
	return x + v.dims[0]*(y+v.dims[1]*z)
}

// InBounds reports whether (x, y, z) addresses a voxel in the grid.
func (v *Volume) InBounds(x, y, z int) bool {
	return x >= 0 && x < v.dims[0] && y >= 0 && y < v.dims[1] && z >= 0 && z < v.dims[2]
}

// At returns the normalized tsdf in [-1, 1], the weight, and whether the voxel has
// ever been observed (tsdf != +Divisor).
func (v *Volume) At(x, y, z int) (tsdf float64, weight int16, observed bool) {
	raw, w := unpackVoxel(v.voxels[v.index(x, y, z)])
	return float64(raw) / Divisor, w, raw != Divisor
}

// SetRaw writes a packed (tsdf, weight) pair directly; used by the integrator and
// by tests constructing synthetic volumes.
func (v *Volume) SetRaw(x, y, z int, tsdf, weight int16) {
	v.voxels[v.index(x, y, z)] = packVoxel(tsdf, weight)
}

// VoxelCenter returns the metric world-frame position of the center of voxel
// (x, y, z): ((x,y,z) + 0.5) * cell_size, per spec section 4.3 step 1.
func (v *Volume) VoxelCenter(x, y, z int) r3.Vector {
	return r3.Vector{
		X: (float64(x) + 0.5) * v.cellSize.X,
		Y: (float64(y) + 0.5) * v.cellSize.Y,
		Z: (float64(z) + 0.5) * v.cellSize.Z,
	}
}

// Reset reinitializes every voxel to "unobserved" and discards any color volume
// contents (the color volume, if present, stays allocated but is zeroed).
func (v *Volume) Reset() {
	unobserved := packVoxel(Divisor, 0)
	for i := range v.voxels {
		v.voxels[i] = unobserved
	}
	if v.color != nil {
		v.color.reset()
	}
}

// InitColorIntegration allocates the color volume and lifts the weight cap to
// maxWeight, per spec section 6's init_color_integration.
func (v *Volume) InitColorIntegration(maxWeight int16) {
	v.maxWeight = maxWeight
	v.color = newColorVolume(v.dims, maxWeight)
}

// ColorVolume returns the color volume, or nil if InitColorIntegration has not
// been called.
func (v *Volume) ColorVolume() *ColorVolume { return v.color }

// colorVoxel is a running-average RGB color with its own observation weight,
// capped independently at the color volume's max weight.
type colorVoxel struct {
	r, g, b uint8
	w       uint8
}

// ColorVolume is the optional per-voxel RGB grid fused alongside the TSDF, per
// spec section 3's Color Volume C.
type ColorVolume struct {
	dims      [3]int
	maxWeight int16
	voxels    []colorVoxel
}

func newColorVolume(dims [3]int, maxWeight int16) *ColorVolume {
	return &ColorVolume{dims: dims, maxWeight: maxWeight, voxels: make([]colorVoxel, dims[0]*dims[1]*dims[2])}
}

func (c *ColorVolume) index(x, y, z int) int {
	return x + c.dims[0]*(y+c.dims[1]*z)
}

func (c *ColorVolume) reset() {
	for i := range c.voxels {
		c.voxels[i] = colorVoxel{}
	}
}

// At returns the RGB color and weight at (x, y, z).
func (c *ColorVolume) At(x, y, z int) (r, g, b, w uint8) {
	cv := c.voxels[c.index(x, y, z)]
	return cv.r, cv.g, cv.b, cv.w
}

// Update blends (r, g, b) into the running average at (x, y, z), capping weight at
// maxWeight, per spec section 4.3's color-fusion running-weight blend.
func (c *ColorVolume) Update(x, y, z int, r, g, b uint8) {
	idx := c.index(x, y, z)
	cv := c.voxels[idx]
	if cv.w == 0 {
		c.voxels[idx] = colorVoxel{r: r, g: g, b: b, w: 1}
		return
	}
	w := float64(cv.w)
	blend := func(old, new uint8) uint8 {
		return uint8(math.Round((float64(old)*w + float64(new)) / (w + 1)))
	}
	newW := cv.w
	if int16(newW) < c.maxWeight {
		newW++
	}
	c.voxels[idx] = colorVoxel{r: blend(cv.r, r), g: blend(cv.g, g), b: blend(cv.b, b), w: newW}
}
