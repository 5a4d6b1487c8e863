// Package pointcloud defines a sparse 3D point cloud, the output type of the surface
// extractor. Points are keyed by position; each carries an optional color and/or
// integer value via the Data interface.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is summary information about what's stored in a point cloud: whether any
// point carries color or a user value, and the axis-aligned bounding box of all points
// added so far.
type MetaData struct {
	HasColor bool
	HasValue bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64

	inited bool
}

// NewMetaData returns an empty MetaData with bounds ready to be grown by Merge.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge folds a newly-added point into the running bounds and flag summary.
func (meta *MetaData) Merge(p r3.Vector, data Data) {
	if data != nil {
		if data.HasColor() {
			meta.HasColor = true
		}
		if data.HasValue() {
			meta.HasValue = true
		}
	}

	if !meta.inited {
		meta.MinX, meta.MaxX = p.X, p.X
		meta.MinY, meta.MaxY = p.Y, p.Y
		meta.MinZ, meta.MaxZ = p.Z, p.Z
		meta.inited = true
		return
	}

	if p.X > meta.MaxX {
		meta.MaxX = p.X
	}
	if p.Y > meta.MaxY {
		meta.MaxY = p.Y
	}
	if p.Z > meta.MaxZ {
		meta.MaxZ = p.Z
	}
	if p.X < meta.MinX {
		meta.MinX = p.X
	}
	if p.Y < meta.MinY {
		meta.MinY = p.Y
	}
	if p.Z < meta.MinZ {
		meta.MinZ = p.Z
	}
}

// PointCloud is a general-purpose container of points. The basic implementation is
// sparse, backed by a map keyed on exact position; it is the output type of surface
// extraction, not a dense per-voxel structure.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns summary bounds/flags for the cloud.
	MetaData() MetaData

	// Set places the given point in the cloud, overwriting any existing data at that
	// exact position.
	Set(p r3.Vector, d Data) error

	// At returns the data at the given position, and whether a point exists there.
	At(x, y, z float64) (Data, bool)

	// Iterate calls fn for every point in the cloud, stopping early if fn returns
	// false. numBatches divides the work for concurrent callers (0 means don't
	// divide); myBatch selects which batch to iterate when numBatches > 0.
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// PointAndData pairs a position with its associated Data, the element type the
// backing storage keeps in insertion order.
type PointAndData struct {
	P r3.Vector
	D Data
}

// storage is the backing store a PointCloud delegates to; matrixStorage is the only
// implementation, kept as a separate interface so alternate backings (e.g. a future
// k-d tree) can be swapped in without changing basicPointCloud.
type storage interface {
	Size() int
	At(x, y, z float64) (Data, bool)
	Set(p r3.Vector, d Data) error
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// matrixStorage is a flat append-only slice of points plus an index for O(1) lookup
// by exact position. Good enough for the extractor's one-shot output; not meant for
// dense per-voxel access patterns.
type matrixStorage struct {
	points   []PointAndData
	indexMap map[r3.Vector]uint
}

func (ms *matrixStorage) Size() int {
	return len(ms.points)
}

func (ms *matrixStorage) At(x, y, z float64) (Data, bool) {
	idx, ok := ms.indexMap[r3.Vector{X: x, Y: y, Z: z}]
	if !ok {
		return nil, false
	}
	return ms.points[idx].D, true
}

func (ms *matrixStorage) Set(p r3.Vector, d Data) error {
	if idx, ok := ms.indexMap[p]; ok {
		ms.points[idx].D = d
		return nil
	}
	ms.indexMap[p] = uint(len(ms.points))
	ms.points = append(ms.points, PointAndData{P: p, D: d})
	return nil
}

func (ms *matrixStorage) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	from, to := 0, len(ms.points)
	if numBatches > 0 {
		batchSize := (len(ms.points) + numBatches - 1) / numBatches
		from = myBatch * batchSize
		to = from + batchSize
		if from > len(ms.points) {
			from = len(ms.points)
		}
		if to > len(ms.points) {
			to = len(ms.points)
		}
	}
	for i := from; i < to; i++ {
		if !fn(ms.points[i].P, ms.points[i].D) {
			return
		}
	}
}
