package kinfu

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/kinfu-go/kinfu/logging"
	"github.com/kinfu-go/kinfu/rimage/transform"
	"github.com/kinfu-go/kinfu/spatialmath"
)

// Default configuration values, per the external interface's stated defaults.
var (
	DefaultFx, DefaultFy   = 525.0, 525.0
	DefaultVolumeSize      = r3.Vector{X: 3.0, Y: 3.0, Z: 3.0}
	DefaultVolumeDims      = [3]int{512, 512, 512}
	DefaultLevels          = 3
	DefaultTSDFTruncation  = 0.03
	DefaultICPDistTruncate = 2.5
)

// options holds the tunables New assembles a Fusion from. Unexported so Option is
// the only construction surface, mirroring the functional-options shape used
// elsewhere for service construction.
type options struct {
	fx, fy         float64
	ppxVal, ppyVal float64

	volumeDims [3]int
	volumeSize r3.Vector
	levels     int

	initialPose *spatialmath.Pose

	distThreshold  float64
	angleThreshold float64
	icpIterations  []int

	tsdfTruncation    float64
	icpDepthTruncation float64

	logger logging.Logger
}

// Option configures a Fusion at construction time.
type Option interface {
	apply(*options)
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) { fo.f(o) }

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{f: f}
}

// WithDepthIntrinsics sets the focal lengths; the principal point defaults to the
// image center unless WithPrincipalPoint is also given.
func WithDepthIntrinsics(fx, fy float64) Option {
	return newFuncOption(func(o *options) {
		o.fx, o.fy = fx, fy
	})
}

// WithPrincipalPoint overrides the default (image-center) principal point.
func WithPrincipalPoint(cx, cy float64) Option {
	return newFuncOption(func(o *options) {
		o.ppxVal, o.ppyVal = cx, cy
	})
}

// WithVolumeSize sets the metric side lengths of the TSDF cube.
func WithVolumeSize(size r3.Vector) Option {
	return newFuncOption(func(o *options) {
		o.volumeSize = size
	})
}

// WithVolumeDims sets the voxel grid resolution of the TSDF cube.
func WithVolumeDims(dims [3]int) Option {
	return newFuncOption(func(o *options) {
		o.volumeDims = dims
	})
}

// WithInitialCameraPose overrides the default bootstrap camera pose.
func WithInitialCameraPose(pose *spatialmath.Pose) Option {
	return newFuncOption(func(o *options) {
		o.initialPose = pose
	})
}

// WithPyramidLevels sets the number of coarse-to-fine pyramid levels.
func WithPyramidLevels(levels int) Option {
	return newFuncOption(func(o *options) {
		o.levels = levels
	})
}

// WithICPIterations sets the per-level iteration schedule, indexed finest (0) to
// coarsest (len-1).
func WithICPIterations(iterations []int) Option {
	return newFuncOption(func(o *options) {
		iters := make([]int, len(iterations))
		copy(iters, iterations)
		o.icpIterations = iters
	})
}

// WithICPFiltering sets the correspondence-rejection gates.
func WithICPFiltering(distThreshold, sinAngleThreshold float64) Option {
	return newFuncOption(func(o *options) {
		o.distThreshold = distThreshold
		o.angleThreshold = sinAngleThreshold
	})
}

// WithTSDFTruncationDistance overrides the default truncation distance (still
// clamped up to 2.1*max(cell_size) by Volume).
func WithTSDFTruncationDistance(d float64) Option {
	return newFuncOption(func(o *options) {
		o.tsdfTruncation = d
	})
}

// WithDepthTruncationForICP sets the maximum depth (meters) Preprocessor keeps for
// the ICP-facing pyramid; <=0 disables truncation.
func WithDepthTruncationForICP(d float64) Option {
	return newFuncOption(func(o *options) {
		o.icpDepthTruncation = d
	})
}

// WithLogger overrides the default logger.
func WithLogger(logger logging.Logger) Option {
	return newFuncOption(func(o *options) {
		o.logger = logger
	})
}

// defaultOptions returns the external interface's stated defaults for a frame of
// the given size: principal point at image center, volume side 3.0m at 512^3
// voxels, initial camera pose at (vol/2, vol/2, -0.6*vol.z) looking at the volume's
// center, L=3 pyramid levels, icp_iters={10,5,4} (finest first), distThres=0.10m,
// angleThres=sin(20deg), tranc_dist=0.03m.
func defaultOptions(rows, cols int) *options {
	o := &options{
		fx:                 DefaultFx,
		fy:                 DefaultFy,
		volumeDims:         DefaultVolumeDims,
		volumeSize:         DefaultVolumeSize,
		levels:             DefaultLevels,
		distThreshold:      DefaultDistThreshold,
		angleThreshold:     DefaultAngleThreshold,
		icpIterations:      append([]int(nil), DefaultICPIterations...),
		tsdfTruncation:     DefaultTSDFTruncation,
		icpDepthTruncation: DefaultICPDistTruncate,
		logger:             logging.NewBlankLogger("kinfu"),
	}
	o.ppxVal = float64(cols) / 2
	o.ppyVal = float64(rows) / 2
	return o
}

// buildIntrinsics resolves the (possibly overridden) principal point into a
// concrete PinholeCameraIntrinsics for the given frame size.
func (o *options) buildIntrinsics(rows, cols int) *transform.PinholeCameraIntrinsics {
	ppx, ppy := o.ppxVal, o.ppyVal
	return &transform.PinholeCameraIntrinsics{
		Width: cols, Height: rows,
		Fx: o.fx, Fy: o.fy,
		Ppx: ppx, Ppy: ppy,
	}
}

// defaultInitialPose places the camera at (vol/2, vol/2, -0.6*vol.z), oriented to
// look at the volume's center, per the external interface's stated default.
func defaultInitialPose(volumeSize r3.Vector) *spatialmath.Pose {
	camPos := r3.Vector{X: volumeSize.X / 2, Y: volumeSize.Y / 2, Z: -0.6 * volumeSize.Z}
	target := r3.Vector{X: volumeSize.X / 2, Y: volumeSize.Y / 2, Z: volumeSize.Z / 2}
	return lookAtPose(camPos, target)
}

// lookAtPose builds a camera-to-world pose at camPos whose local +Z (forward, the
// direction PixelToPoint projects along) points at target, constructed the way a
// graphics look-at camera is: an arbitrary world "up" picks out a right-handed
// (right, down, forward) basis, degenerate only when forward is exactly parallel
// to worldUp.
func lookAtPose(camPos, target r3.Vector) *spatialmath.Pose {
	forward := target.Sub(camPos)
	fwdNorm := forward.Norm()
	if fwdNorm == 0 {
		return spatialmath.NewPose(camPos, nil)
	}
	forward = forward.Mul(1 / fwdNorm)

	worldUp := r3.Vector{Y: 1}
	right := worldUp.Cross(forward)
	rightNorm := right.Norm()
	if rightNorm == 0 {
		worldUp = r3.Vector{X: 1}
		right = worldUp.Cross(forward)
		rightNorm = right.Norm()
	}
	right = right.Mul(1 / rightNorm)
	down := forward.Cross(right)

	rot := spatialmath.NewRotationMatrix([9]float64{
		right.X, down.X, forward.X,
		right.Y, down.Y, forward.Y,
		right.Z, down.Z, forward.Z,
	})
	return spatialmath.NewPose(camPos, rot)
}

// clampICPDepthTruncation maps a NaN or infinite value to 0 ("disabled") so it
// never reaches Preprocessor's depth comparisons; every other value is returned
// unchanged (Preprocessor already treats values <= 0 as disabled).
func clampICPDepthTruncation(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}
