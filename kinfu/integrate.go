package kinfu

import (
	"github.com/kinfu-go/kinfu/rimage"
	"github.com/kinfu-go/kinfu/rimage/transform"
	"github.com/kinfu-go/kinfu/spatialmath"
	kutils "github.com/kinfu-go/kinfu/utils"
)

// Integrator fuses a raw depth frame (and optionally a color frame) into a Volume
// given the camera-to-world pose for that frame, per spec section 4.3.
type Integrator struct {
	Intrinsics *transform.PinholeCameraIntrinsics
}

// Integrate projects every voxel of v into the depth image under cameraToWorld and
// folds the observation into the running (tsdf, weight) average.
func (ig *Integrator) Integrate(v *Volume, raw *rimage.DepthMap, cameraToWorld *spatialmath.Pose) {
	dims := v.Dims()
	trancDist := v.TruncationDistance()
	maxWeight := v.MaxWeight()
	intr := ig.Intrinsics
	rows, cols := raw.Rows(), raw.Cols()

	kutils.ParallelForEachVoxelSlab(dims[2], func(zFrom, zTo int) {
		for z := zFrom; z < zTo; z++ {
			for y := 0; y < dims[1]; y++ {
				for x := 0; x < dims[0]; x++ {
					integrateVoxel(v, raw, cameraToWorld, intr, rows, cols, trancDist, maxWeight, x, y, z)
				}
			}
		}
	})
}

func integrateVoxel(
	v *Volume,
	raw *rimage.DepthMap,
	cameraToWorld *spatialmath.Pose,
	intr *transform.PinholeCameraIntrinsics,
	rows, cols int,
	trancDist float64,
	maxWeight int16,
	x, y, z int,
) {
	worldPos := v.VoxelCenter(x, y, z)
	camPos := cameraToWorld.InverseTransform(worldPos)
	if camPos.Z <= 0 {
		return
	}

	u, vv := intr.PointToPixel(camPos)
	col, row := int(u), int(vv)
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return
	}

	rawDepthMM := raw.Get(row, col)
	if rawDepthMM == 0 {
		return
	}
	d := float64(rawDepthMM) / 1000.0

	sdf := d - camPos.Norm()
	if sdf < -trancDist {
		return
	}

	tsdfNew := sdf / trancDist
	if tsdfNew > 1 {
		tsdfNew = 1
	}

	tsdfOldRaw, weightOld, observed := v.At(x, y, z)
	var tsdfOld float64
	if observed {
		tsdfOld = tsdfOldRaw
	}
	newWeight := weightOld + 1
	if newWeight > maxWeight {
		newWeight = maxWeight
	}
	tsdf := (tsdfOld*float64(weightOld) + tsdfNew) / float64(weightOld+1)

	v.SetRaw(x, y, z, floatToFixed(tsdf), newWeight)
}

// floatToFixed packs a normalized tsdf in [-1, 1] into the Divisor-scaled fixed
// point representation, clamping to avoid overflow from numerical drift.
func floatToFixed(tsdf float64) int16 {
	if tsdf > 1 {
		tsdf = 1
	}
	if tsdf < -1 {
		tsdf = -1
	}
	return int16(tsdf * Divisor)
}

// IntegrateColor fuses a color frame into the color volume, updating the voxel
// nearest each level-0 predicted vertex whose projection lands inside the color
// frame, per spec section 4.3's color-fusion addendum. vmapGPrev is the previous
// frame's level-0 raycasted world-frame vertex map.
func (ig *Integrator) IntegrateColor(v *Volume, color *rimage.Image, vmapGPrev *VectorMap) {
	cv := v.ColorVolume()
	if cv == nil {
		return
	}
	cellSize := v.CellSize()
	dims := v.Dims()

	for row := 0; row < vmapGPrev.Rows; row++ {
		for col := 0; col < vmapGPrev.Cols; col++ {
			if !color.In(row, col) {
				continue
			}
			worldPos := vmapGPrev.At(row, col)
			if !validVector(worldPos) {
				continue
			}
			vx := int(worldPos.X / cellSize.X)
			vy := int(worldPos.Y / cellSize.Y)
			vz := int(worldPos.Z / cellSize.Z)
			if vx < 0 || vx >= dims[0] || vy < 0 || vy >= dims[1] || vz < 0 || vz >= dims[2] {
				continue
			}
			c := color.Get(row, col)
			cv.Update(vx, vy, vz, c.R, c.G, c.B)
		}
	}
}
