package kinfu

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"

	"github.com/kinfu-go/kinfu/pointcloud"
)

// neighborOffset is one voxel-grid step (dx, dy, dz) away from a cell.
type neighborOffset struct{ dx, dy, dz int }

// forward6Neighbors is the axis-aligned forward half of the 6-connected
// neighborhood: one representative per undirected edge, so every edge in the
// grid is inspected from exactly one of its two endpoints.
var forward6Neighbors = []neighborOffset{
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
}

// forward26Neighbors is the forward half of the full 26-connected neighborhood:
// 13 offsets (3 face + 6 edge + 4 corner directions), again one representative
// per undirected edge so 6- and 26-connected extraction see every crossing edge
// exactly once regardless of which cell it's inspected from.
var forward26Neighbors = []neighborOffset{
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	{1, 1, 0}, {1, -1, 0},
	{1, 0, 1}, {1, 0, -1},
	{0, 1, 1}, {0, 1, -1},
	{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
}

// Connectivity selects the neighbor enumeration Extractor uses when scanning for
// zero crossings. Connectivity26 also inspects diagonal edges, so it finds every
// crossing Connectivity6 finds plus those lying on diagonal edges.
type Connectivity int

const (
	// Connectivity6 inspects only axis-aligned neighbors.
	Connectivity6 Connectivity = 6
	// Connectivity26 inspects all 13 forward directions of the full 26-neighborhood.
	Connectivity26 Connectivity = 26
)

// Extractor produces a one-shot point cloud of surface zero-crossings from a
// TSDF volume, per spec section 4.5.
type Extractor struct {
	Connectivity Connectivity
}

// NewExtractor returns an Extractor using 26-connected neighbor enumeration.
func NewExtractor() *Extractor {
	return &Extractor{Connectivity: Connectivity26}
}

// ExtractedCloud bundles the surface point cloud with the per-point normals the
// Data interface has no slot for (pointcloud.Data only carries color/value).
type ExtractedCloud struct {
	Points  pointcloud.PointCloud
	Normals map[r3.Vector]r3.Vector
}

// Extract scans v for sign-changing edges between a cell and each of its forward
// neighbors, emitting one interpolated surface point per crossing.
func (ex *Extractor) Extract(v *Volume) *ExtractedCloud {
	neighbors := forward26Neighbors
	if ex.Connectivity == Connectivity6 {
		neighbors = forward6Neighbors
	}

	out := &ExtractedCloud{
		Points:  pointcloud.New(),
		Normals: make(map[r3.Vector]r3.Vector),
	}

	dims := v.Dims()
	cv := v.ColorVolume()

	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				f, wf, observed := v.At(x, y, z)
				if !observed || wf <= 0 {
					continue
				}
				vCenter := v.VoxelCenter(x, y, z)

				for _, off := range neighbors {
					nx, ny, nz := x+off.dx, y+off.dy, z+off.dz
					if nx < 0 || nx >= dims[0] || ny < 0 || ny >= dims[1] || nz < 0 || nz >= dims[2] {
						continue
					}
					fn, wfn, observedN := v.At(nx, ny, nz)
					if !observedN || wfn <= 0 {
						continue
					}
					if f == 0 || fn == 0 || (f > 0) == (fn > 0) {
						continue
					}

					vn := v.VoxelCenter(nx, ny, nz)
					absF, absFn := math.Abs(f), math.Abs(fn)
					denom := absF + absFn
					if denom == 0 {
						continue
					}
					point := vCenter.Mul(absFn).Add(vn.Mul(absF)).Mul(1 / denom)

					var data pointcloud.Data
					if cv != nil {
						if r, g, b, ok := colorTrilinear(cv, dims, v.CellSize(), point); ok {
							data = pointcloud.NewColoredData(color.NRGBA{R: r, G: g, B: b, A: 255})
						}
					}
					if data == nil {
						data = pointcloud.NewBasicData()
					}
					if err := out.Points.Set(point, data); err != nil {
						continue
					}
					if normal, ok := centralDifferenceNormal(v, point); ok {
						out.Normals[point] = normal
					}
				}
			}
		}
	}
	return out
}

// colorTrilinear interpolates the color volume at a continuous world position,
// the color analogue of sampleTSDFTrilinear. It reports ok=false if pos falls
// outside the grid or any of the 8 surrounding voxels has never been colored.
func colorTrilinear(cv *ColorVolume, dims [3]int, cell r3.Vector, pos r3.Vector) (r, g, b uint8, ok bool) {
	fx := pos.X/cell.X - 0.5
	fy := pos.Y/cell.Y - 0.5
	fz := pos.Z/cell.Z - 0.5

	x0, y0, z0 := int(math.Floor(fx)), int(math.Floor(fy)), int(math.Floor(fz))
	x1, y1, z1 := x0+1, y0+1, z0+1
	if x0 < 0 || y0 < 0 || z0 < 0 || x1 >= dims[0] || y1 >= dims[1] || z1 >= dims[2] {
		return 0, 0, 0, false
	}

	tx, ty, tz := fx-float64(x0), fy-float64(y0), fz-float64(z0)

	var rs, gs, bs [8]float64
	i := 0
	for _, cz := range [2]int{z0, z1} {
		for _, cy := range [2]int{y0, y1} {
			for _, cx := range [2]int{x0, x1} {
				cr, cg, cb, cw := cv.At(cx, cy, cz)
				if cw == 0 {
					return 0, 0, 0, false
				}
				rs[i], gs[i], bs[i] = float64(cr), float64(cg), float64(cb)
				i++
			}
		}
	}

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	blend := func(v [8]float64) float64 {
		c00 := lerp(v[0], v[1], tx)
		c10 := lerp(v[2], v[3], tx)
		c01 := lerp(v[4], v[5], tx)
		c11 := lerp(v[6], v[7], tx)
		c0 := lerp(c00, c10, ty)
		c1 := lerp(c01, c11, ty)
		return lerp(c0, c1, tz)
	}

	return uint8(math.Round(blend(rs))), uint8(math.Round(blend(gs))), uint8(math.Round(blend(bs))), true
}
