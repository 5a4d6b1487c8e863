// Package rimage holds the raw 2D image types the reconstruction core consumes: a
// 16-bit depth map and an 8-bit RGB/RGBA color image.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// DepthMap is a dense rows x cols grid of 16-bit unsigned depth in millimeters.
// A value of zero means "invalid" (no return, out of range, etc). Storage is a flat
// row-major buffer rather than [][]uint16 so a frame is one contiguous allocation.
type DepthMap struct {
	rows, cols int
	data       []uint16
}

// NewEmptyDepthMap allocates a DepthMap of the given size with every pixel invalid.
func NewEmptyDepthMap(rows, cols int) *DepthMap {
	return &DepthMap{rows: rows, cols: cols, data: make([]uint16, rows*cols)}
}

// NewDepthMapFromData wraps an existing row-major rows*cols buffer. It does not copy.
func NewDepthMapFromData(rows, cols int, data []uint16) (*DepthMap, error) {
	if len(data) != rows*cols {
		return nil, errors.Errorf("depth data length %d does not match rows*cols %d*%d", len(data), rows, cols)
	}
	return &DepthMap{rows: rows, cols: cols, data: data}, nil
}

// Rows returns the image height.
func (dm *DepthMap) Rows() int { return dm.rows }

// Cols returns the image width.
func (dm *DepthMap) Cols() int { return dm.cols }

// In reports whether (row, col) is within bounds.
func (dm *DepthMap) In(row, col int) bool {
	return row >= 0 && row < dm.rows && col >= 0 && col < dm.cols
}

// Get returns the raw millimeter depth at (row, col), or 0 if out of bounds.
func (dm *DepthMap) Get(row, col int) uint16 {
	if !dm.In(row, col) {
		return 0
	}
	return dm.data[row*dm.cols+col]
}

// Set assigns the raw millimeter depth at (row, col).
func (dm *DepthMap) Set(row, col int, v uint16) {
	dm.data[row*dm.cols+col] = v
}

// Valid reports whether the pixel at (row, col) is a valid (nonzero) observation.
func (dm *DepthMap) Valid(row, col int) bool {
	return dm.In(row, col) && dm.data[row*dm.cols+col] != 0
}

// Bounds returns the image rectangle, width-by-height in (col, row) == (x, y) order.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.cols, dm.rows)
}

// Image is a dense rows x cols grid of 8-bit RGB(A) color.
type Image struct {
	rows, cols int
	pix        []color.NRGBA
}

// NewImage allocates a black Image of the given size.
func NewImage(rows, cols int) *Image {
	return &Image{rows: rows, cols: cols, pix: make([]color.NRGBA, rows*cols)}
}

// Rows returns the image height.
func (img *Image) Rows() int { return img.rows }

// Cols returns the image width.
func (img *Image) Cols() int { return img.cols }

// In reports whether (row, col) is within bounds.
func (img *Image) In(row, col int) bool {
	return row >= 0 && row < img.rows && col >= 0 && col < img.cols
}

// Get returns the color at (row, col).
func (img *Image) Get(row, col int) color.NRGBA {
	return img.pix[row*img.cols+col]
}

// Set assigns the color at (row, col).
func (img *Image) Set(row, col int, c color.NRGBA) {
	img.pix[row*img.cols+col] = c
}
