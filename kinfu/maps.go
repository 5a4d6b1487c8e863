package kinfu

import (
	"math"

	"github.com/golang/geo/r3"
)

// nanVector is the sentinel for an invalid vertex or normal.
var nanVector = r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}

// validVector reports whether v carries a real (non-sentinel) value.
func validVector(v r3.Vector) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z)
}

// VectorMap is a dense rows x cols field of 3D vectors: a vertex map or a normal
// map. Semantically one r3.Vector per pixel; NaN in any component marks an invalid
// pixel (spec section 3's "three row-band" packing is a device-memory-layout detail
// this host-side representation does not need to reproduce).
type VectorMap struct {
	Rows, Cols int
	Data       []r3.Vector
}

// NewVectorMap allocates a VectorMap with every entry invalid.
func NewVectorMap(rows, cols int) *VectorMap {
	data := make([]r3.Vector, rows*cols)
	for i := range data {
		data[i] = nanVector
	}
	return &VectorMap{Rows: rows, Cols: cols, Data: data}
}

// In reports whether (row, col) is within bounds.
func (vm *VectorMap) In(row, col int) bool {
	return row >= 0 && row < vm.Rows && col >= 0 && col < vm.Cols
}

// At returns the vector at (row, col), or the NaN sentinel if out of bounds.
func (vm *VectorMap) At(row, col int) r3.Vector {
	if !vm.In(row, col) {
		return nanVector
	}
	return vm.Data[row*vm.Cols+col]
}

// Set assigns the vector at (row, col).
func (vm *VectorMap) Set(row, col int, v r3.Vector) {
	vm.Data[row*vm.Cols+col] = v
}

// Valid reports whether the pixel at (row, col) holds a real vector.
func (vm *VectorMap) Valid(row, col int) bool {
	return vm.In(row, col) && validVector(vm.At(row, col))
}

// DepthLevel is one pyramid level's depth image, stored as float64 meters with 0
// meaning invalid (mirrors rimage.DepthMap's "zero is invalid" convention, but in
// metric units since the preprocessing pipeline works in meters throughout).
type DepthLevel struct {
	Rows, Cols int
	Data       []float64
}

// NewDepthLevel allocates a DepthLevel with every pixel invalid.
func NewDepthLevel(rows, cols int) *DepthLevel {
	return &DepthLevel{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// In reports whether (row, col) is within bounds.
func (dl *DepthLevel) In(row, col int) bool {
	return row >= 0 && row < dl.Rows && col >= 0 && col < dl.Cols
}

// At returns the depth in meters at (row, col), or 0 if out of bounds.
func (dl *DepthLevel) At(row, col int) float64 {
	if !dl.In(row, col) {
		return 0
	}
	return dl.Data[row*dl.Cols+col]
}

// Set assigns the depth in meters at (row, col).
func (dl *DepthLevel) Set(row, col int, v float64) {
	dl.Data[row*dl.Cols+col] = v
}

// Valid reports whether the pixel at (row, col) is a real (nonzero) observation.
func (dl *DepthLevel) Valid(row, col int) bool {
	return dl.In(row, col) && dl.Data[row*dl.Cols+col] > 0
}
