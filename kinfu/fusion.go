package kinfu

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/kinfu-go/kinfu/logging"
	"github.com/kinfu-go/kinfu/pointcloud"
	"github.com/kinfu-go/kinfu/rimage"
	"github.com/kinfu-go/kinfu/rimage/transform"
	"github.com/kinfu-go/kinfu/spatialmath"
)

// Fusion is the top-level tracker handle: it owns the pyramid, the TSDF volume, and
// the pose history, and drives the per-frame pipeline of spec section 4.6. It is not
// re-entrant: ProcessDepth/ProcessDepthAndColor must not overlap each other, nor any
// of the getters below, for a given Fusion.
type Fusion struct {
	rows, cols int
	intr       *transform.PinholeCameraIntrinsics

	volume *Volume
	pyr    *Pyramid

	pre        *Preprocessor
	tracker    *Tracker
	integrator *Integrator
	raycaster  *Raycaster
	extractor  *Extractor

	opts *options

	poses []*spatialmath.Pose
	frame int

	logger logging.Logger
}

// New constructs a Fusion for a rows x cols depth stream, with the defaults spec
// section 6 states (fx=fy=525, volume side 3.0m, initial pose at (vol/2, vol/2,
// -0.6*vol.z) looking into the volume, L=3 levels, icp_iters={10,5,4} finest
// first, distThres=0.10m, angleThres=sin(20deg), tranc_dist=0.03m), adjustable via
// Option.
func New(rows, cols int, opts ...Option) (*Fusion, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid frame size %dx%d", rows, cols)
	}

	o := defaultOptions(rows, cols)
	for _, opt := range opts {
		opt.apply(o)
	}
	o.icpDepthTruncation = clampICPDepthTruncation(o.icpDepthTruncation)
	if o.logger == nil {
		o.logger = logging.NewBlankLogger("kinfu")
	}

	f := &Fusion{
		rows:   rows,
		cols:   cols,
		intr:   o.buildIntrinsics(rows, cols),
		opts:   o,
		logger: o.logger,
	}
	f.rebuild()
	return f, nil
}

// rebuild (re)allocates the volume, pyramid, and pipeline stages from f.opts,
// discarding any prior TSDF contents and pose history. If color integration was
// initialized, the new volume gets an empty color volume with the same max weight.
// Shared by New and Reset.
func (f *Fusion) rebuild() {
	var colorMaxWeight int16
	if f.volume != nil && f.volume.ColorVolume() != nil {
		colorMaxWeight = f.volume.ColorVolume().maxWeight
	}
	f.volume = NewVolume(f.opts.volumeDims, f.opts.volumeSize)
	f.volume.SetTruncationDistance(f.opts.tsdfTruncation)
	if colorMaxWeight > 0 {
		f.volume.InitColorIntegration(colorMaxWeight)
	}

	f.pyr = NewPyramid(f.rows, f.cols, f.opts.levels, f.intr)

	f.pre = &Preprocessor{MaxICPDistance: f.opts.icpDepthTruncation}
	f.tracker = &Tracker{
		DistThreshold:  f.opts.distThreshold,
		AngleThreshold: f.opts.angleThreshold,
		Iterations:     append([]int(nil), f.opts.icpIterations...),
	}
	f.integrator = &Integrator{Intrinsics: f.intr}
	f.raycaster = &Raycaster{}
	f.extractor = NewExtractor()

	initialPose := f.opts.initialPose
	if initialPose == nil {
		initialPose = defaultInitialPose(f.opts.volumeSize)
	}
	f.poses = []*spatialmath.Pose{initialPose}
	f.frame = 0
}

// Reset reinitializes the tracker: the TSDF volume is cleared, the color volume (if
// color integration was initialized) is cleared and stays initialized, the pose
// history is dropped back to the configured initial pose, and the next ProcessDepth
// call is again a bootstrap frame.
func (f *Fusion) Reset() {
	f.rebuild()
}

// Rows returns the configured depth frame height.
func (f *Fusion) Rows() int { return f.rows }

// Cols returns the configured depth frame width.
func (f *Fusion) Cols() int { return f.cols }

// GetVolumeSize returns the metric side lengths of the TSDF cube.
func (f *Fusion) GetVolumeSize() r3.Vector { return f.volume.VolumeSize() }

// SetDepthIntrinsics updates the focal lengths and, if non-nil, the principal
// point, re-scaling every pyramid level and the integrator/raycaster's intrinsics.
func (f *Fusion) SetDepthIntrinsics(fx, fy float64, cx, cy *float64) {
	f.opts.fx, f.opts.fy = fx, fy
	if cx != nil {
		f.opts.ppxVal = *cx
	}
	if cy != nil {
		f.opts.ppyVal = *cy
	}
	f.intr = f.opts.buildIntrinsics(f.rows, f.cols)
	f.pyr.SetIntrinsics(f.intr)
	f.integrator.Intrinsics = f.intr
}

// SetVolumeSize updates the metric extent of the TSDF cube in place, without
// discarding voxel contents or the pose history (callers wanting a clean fusion
// after resizing should call Reset separately).
func (f *Fusion) SetVolumeSize(size r3.Vector) {
	f.opts.volumeSize = size
	f.volume.SetVolumeSize(size)
}

// SetInitialCameraPose overrides the bootstrap pose used by the next Reset (and by
// New, if set via Option). It does not retroactively alter an in-progress session's
// pose history.
func (f *Fusion) SetInitialCameraPose(pose *spatialmath.Pose) {
	f.opts.initialPose = pose
}

// SetTSDFTruncationDistance updates the TSDF truncation distance, clamped up to
// 2.1*max(cell_size) by Volume.
func (f *Fusion) SetTSDFTruncationDistance(d float64) {
	f.opts.tsdfTruncation = d
	f.volume.SetTruncationDistance(d)
}

// SetDepthTruncationForICP updates the maximum depth Preprocessor keeps for the
// ICP-facing pyramid; d<=0 disables truncation.
func (f *Fusion) SetDepthTruncationForICP(d float64) {
	f.opts.icpDepthTruncation = clampICPDepthTruncation(d)
	f.pre.MaxICPDistance = f.opts.icpDepthTruncation
}

// SetICPFiltering updates the correspondence-rejection gates.
func (f *Fusion) SetICPFiltering(distThreshold, sinAngleThreshold float64) {
	f.opts.distThreshold = distThreshold
	f.opts.angleThreshold = sinAngleThreshold
	f.tracker.DistThreshold = distThreshold
	f.tracker.AngleThreshold = sinAngleThreshold
}

// InitColorIntegration allocates the color volume; color frames supplied to
// ProcessDepthAndColor before this call are rejected with ErrInvalidInput.
func (f *Fusion) InitColorIntegration(maxWeight int16) {
	f.volume.InitColorIntegration(maxWeight)
}

// GetCameraPose returns the pose at history index k, per the original's leniency:
// k<0 or k>=len(poses) clamps to the latest pose (index len(poses)-1); otherwise
// poses[k] is returned directly.
func (f *Fusion) GetCameraPose(k int) *spatialmath.Pose {
	if k < 0 || k >= len(f.poses) {
		k = len(f.poses) - 1
	}
	return f.poses[k]
}

// ProcessDepth runs one frame of the pipeline against raw depth, per spec section
// 4.6. It returns false on the bootstrap frame (the very first call after
// construction or Reset) and on tracking failure, true otherwise. A tracking
// failure also resets the session, so the next call is again a bootstrap frame.
func (f *Fusion) ProcessDepth(raw *rimage.DepthMap) (bool, error) {
	if raw == nil || raw.Rows() != f.rows || raw.Cols() != f.cols {
		return false, errors.Wrapf(ErrInvalidInput, "depth frame must be %dx%d", f.rows, f.cols)
	}

	f.pre.Process(f.pyr, raw)

	if f.frame == 0 {
		pose0 := f.poses[0]
		f.integrator.Integrate(f.volume, raw, pose0)
		f.raycaster.Cast(f.pyr, f.volume, pose0)
		f.frame++
		return false, nil
	}

	prevPose := f.poses[len(f.poses)-1]
	pose, err := f.tracker.Track(f.pyr, prevPose)
	if err != nil {
		f.logger.Warnw("tracking failure, resetting session", "error", err)
		f.Reset()
		return false, err
	}

	f.poses = append(f.poses, pose)
	f.integrator.Integrate(f.volume, raw, pose)
	f.raycaster.Cast(f.pyr, f.volume, pose)
	f.frame++
	return true, nil
}

// ProcessDepthAndColor runs ProcessDepth, then, on success, fuses color into the
// color volume using the depth frame's just-raycast prediction as the projection
// target. color must already be sized rows x cols. InitColorIntegration must have
// been called first.
func (f *Fusion) ProcessDepthAndColor(raw *rimage.DepthMap, colorFrame *rimage.Image) (bool, error) {
	if f.volume.ColorVolume() == nil {
		return false, errors.Wrap(ErrInvalidInput, "color integration not initialized")
	}
	if colorFrame == nil || colorFrame.Rows() != f.rows || colorFrame.Cols() != f.cols {
		return false, errors.Wrapf(ErrInvalidInput, "color frame must be %dx%d", f.rows, f.cols)
	}

	tracked, err := f.ProcessDepth(raw)
	if err != nil {
		return tracked, err
	}

	f.integrator.IntegrateColor(f.volume, colorFrame, f.pyr.Levels[0].VertexPrevWorld)
	return tracked, nil
}

// GetLastFrameCloud returns the latest predicted world-frame vertex map (level 0).
func (f *Fusion) GetLastFrameCloud() *VectorMap {
	return f.pyr.Levels[0].VertexPrevWorld
}

// GetLastFrameNormals returns the latest predicted world-frame normal map (level 0).
func (f *Fusion) GetLastFrameNormals() *VectorMap {
	return f.pyr.Levels[0].NormalPrevWorld
}

// GetCloudFromVolume performs a one-shot extraction of the TSDF's surface
// zero-crossings, per spec section 4.5.
func (f *Fusion) GetCloudFromVolume() *ExtractedCloud {
	return f.extractor.Extract(f.volume)
}

// GetNormalsFromVolume returns cloud's per-point normals, keyed the same way
// GetCloudFromVolume's Points are.
func (f *Fusion) GetNormalsFromVolume(cloud *ExtractedCloud) map[r3.Vector]r3.Vector {
	return cloud.Normals
}

// GetColorsFromVolume returns the subset of cloud's points that carry color,
// keyed by position.
func (f *Fusion) GetColorsFromVolume(cloud *ExtractedCloud) map[r3.Vector]color.NRGBA {
	colors := make(map[r3.Vector]color.NRGBA)
	cloud.Points.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if d.HasColor() {
			r, g, b := d.RGB255()
			colors[p] = color.NRGBA{R: r, G: g, B: b, A: 255}
		}
		return true
	})
	return colors
}

// GetTSDFVolume dumps the TSDF as float32 in [-1, 1], row-major with X fastest,
// then Y, then Z, per spec section 6's persisted dump layout. Unobserved voxels
// dump as +1 (Divisor/Divisor), matching the fixed-point sentinel.
func (f *Fusion) GetTSDFVolume() []float32 {
	out, _ := f.dumpVolume(false)
	return out
}

// GetTSDFVolumeAndWeights dumps both the TSDF (as in GetTSDFVolume) and the raw
// per-voxel weights, in the same row-major layout.
func (f *Fusion) GetTSDFVolumeAndWeights() ([]float32, []int16) {
	return f.dumpVolume(true)
}

func (f *Fusion) dumpVolume(withWeights bool) ([]float32, []int16) {
	dims := f.volume.Dims()
	n := dims[0] * dims[1] * dims[2]
	tsdf := make([]float32, n)
	var weights []int16
	if withWeights {
		weights = make([]int16, n)
	}

	i := 0
	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				val, w, _ := f.volume.At(x, y, z)
				tsdf[i] = float32(val)
				if withWeights {
					weights[i] = w
				}
				i++
			}
		}
	}
	return tsdf, weights
}

// defaultLightOffset is the original's default light position, expressed as a
// per-axis multiple of the volume size: a point far behind and outside the volume
// along the negative diagonal.
const defaultLightOffset = -3.0

// GetImage renders a Lambertian-shaded view of the latest predicted surface from a
// point light at lightPos. A nil lightPos defaults to volumeSize * -3, per the
// original's getImage(view) with no explicit light.
func (f *Fusion) GetImage(lightPos *r3.Vector) *rimage.Image {
	light := r3.Vector{
		X: defaultLightOffset * f.volume.VolumeSize().X,
		Y: defaultLightOffset * f.volume.VolumeSize().Y,
		Z: defaultLightOffset * f.volume.VolumeSize().Z,
	}
	if lightPos != nil {
		light = *lightPos
	}
	return shadeLambertian(f.pyr.Levels[0].VertexPrevWorld, f.pyr.Levels[0].NormalPrevWorld, light)
}

// GetImageFromPose raycasts the volume from an arbitrary pose (for preview, without
// disturbing the tracker's own predicted maps) and shades the result the same way
// GetImage does.
func (f *Fusion) GetImageFromPose(pose *spatialmath.Pose, lightPos *r3.Vector) *rimage.Image {
	vmap := NewVectorMap(f.rows, f.cols)
	nmap := NewVectorMap(f.rows, f.cols)
	castLevel0(f.volume, pose, f.intr, vmap, nmap)

	light := r3.Vector{
		X: defaultLightOffset * f.volume.VolumeSize().X,
		Y: defaultLightOffset * f.volume.VolumeSize().Y,
		Z: defaultLightOffset * f.volume.VolumeSize().Z,
	}
	if lightPos != nil {
		light = *lightPos
	}
	return shadeLambertian(vmap, nmap, light)
}

// shadeLambertian renders vmap/nmap into an RGBA8 image by a single point-light
// Lambertian term: a dim ambient floor plus max(0, N.dot(L)) scaled to full white,
// zero (transparent black) where the pixel has no prediction.
func shadeLambertian(vmap, nmap *VectorMap, lightPos r3.Vector) *rimage.Image {
	const ambient = 0.1

	img := rimage.NewImage(vmap.Rows, vmap.Cols)
	for y := 0; y < vmap.Rows; y++ {
		for x := 0; x < vmap.Cols; x++ {
			v := vmap.At(y, x)
			n := nmap.At(y, x)
			if !validVector(v) || !validVector(n) {
				continue
			}
			toLight := lightPos.Sub(v)
			dist := toLight.Norm()
			if dist == 0 {
				continue
			}
			lightDir := toLight.Mul(1 / dist)
			shade := ambient + (1-ambient)*math.Max(0, n.Dot(lightDir))
			gray := uint8(math.Round(255 * math.Min(1, shade)))
			img.Set(y, x, color.NRGBA{R: gray, G: gray, B: gray, A: 255})
		}
	}
	return img
}
