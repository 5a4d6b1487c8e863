package kinfu

import (
	"github.com/kinfu-go/kinfu/rimage/transform"
)

// PyramidLevel holds the four dense maps spec section 3 associates with one
// pyramid level: the current frame's depth/vertex/normal maps in camera space, and
// the previous frame's raycasted vertex/normal prediction in world space. Buffers
// are allocated once and reused across frames; Preprocessor overwrites the "curr"
// maps and Raycaster overwrites the "prev" maps in place.
type PyramidLevel struct {
	Intrinsics *transform.PinholeCameraIntrinsics

	DepthCurr  *DepthLevel
	VertexCurr *VectorMap
	NormalCurr *VectorMap

	VertexPrevWorld *VectorMap
	NormalPrevWorld *VectorMap
}

// Pyramid is the full multi-resolution stack for one tracker instance, with L
// levels indexed finest (0) to coarsest (L-1).
type Pyramid struct {
	Levels []*PyramidLevel
}

// NewPyramid allocates a Pyramid of `levels` levels for a full-resolution frame of
// size (rows, cols), with per-level intrinsics scaled via Intrinsics.AtLevel.
func NewPyramid(rows, cols, levels int, intrinsics *transform.PinholeCameraIntrinsics) *Pyramid {
	p := &Pyramid{Levels: make([]*PyramidLevel, levels)}
	for i := 0; i < levels; i++ {
		r, c := rows>>uint(i), cols>>uint(i)
		p.Levels[i] = &PyramidLevel{
			Intrinsics:      intrinsics.AtLevel(i),
			DepthCurr:       NewDepthLevel(r, c),
			VertexCurr:      NewVectorMap(r, c),
			NormalCurr:      NewVectorMap(r, c),
			VertexPrevWorld: NewVectorMap(r, c),
			NormalPrevWorld: NewVectorMap(r, c),
		}
	}
	return p
}

// SetIntrinsics rescales every level's intrinsics from a new full-resolution base,
// used by set_depth_intrinsics.
func (p *Pyramid) SetIntrinsics(intrinsics *transform.PinholeCameraIntrinsics) {
	for i, lvl := range p.Levels {
		lvl.Intrinsics = intrinsics.AtLevel(i)
	}
}
