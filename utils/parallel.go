package utils

import (
	"image"
	"math"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelForEachPixel loops through the image and calls f for each (x, y) position.
// The image is divided into N*N blocks, where N is the number of available processor
// threads, and each block is processed on its own goroutine. This stands in for the
// per-pixel dispatch of a massively parallel accelerator: the call blocks until every
// block has finished, giving the caller an explicit synchronization point.
func ParallelForEachPixel(size image.Point, f func(x, y int)) {
	procs := runtime.GOMAXPROCS(0)
	var waitGroup sync.WaitGroup
	waitGroup.Add(procs * procs)
	for i := 0; i < procs; i++ {
		startX := i * int(math.Floor(float64(size.X)/float64(procs)))
		var endX int
		if i < procs-1 {
			endX = (i + 1) * int(math.Floor(float64(size.X)/float64(procs)))
		} else {
			endX = size.X
		}
		for j := 0; j < procs; j++ {
			startY := j * int(math.Floor(float64(size.Y)/float64(procs)))
			var endY int
			if j < procs-1 {
				endY = (j + 1) * int(math.Floor(float64(size.Y)/float64(procs)))
			} else {
				endY = size.Y
			}
			sX, eX, sY, eY := startX, endX, startY, endY
			utils.PanicCapturingGo(func() {
				defer waitGroup.Done()
				for x := sX; x < eX; x++ {
					for y := sY; y < eY; y++ {
						f(x, y)
					}
				}
			})
		}
	}
	waitGroup.Wait()
}

// ParallelForEachVoxelSlab divides the Z extent of a volume into GOMAXPROCS slabs and
// calls f once per slab on its own goroutine, passing the inclusive-exclusive [zFrom, zTo)
// range that goroutine owns. It is the voxel-grid analogue of ParallelForEachPixel used by
// integration, which iterates the full (x, y) plane per z layer internally.
func ParallelForEachVoxelSlab(depth int, f func(zFrom, zTo int)) {
	procs := runtime.GOMAXPROCS(0)
	if procs > depth {
		procs = depth
	}
	if procs <= 0 {
		return
	}
	slab := int(math.Ceil(float64(depth) / float64(procs)))
	var waitGroup sync.WaitGroup
	for z := 0; z < depth; z += slab {
		zFrom := z
		zTo := zFrom + slab
		if zTo > depth {
			zTo = depth
		}
		waitGroup.Add(1)
		utils.PanicCapturingGo(func() {
			defer waitGroup.Done()
			f(zFrom, zTo)
		})
	}
	waitGroup.Wait()
}
