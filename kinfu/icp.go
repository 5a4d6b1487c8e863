package kinfu

import (
	"math"
	"runtime"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"github.com/kinfu-go/kinfu/spatialmath"
)

// DefaultDistThreshold and DefaultAngleThreshold are the correspondence rejection
// gates spec section 6 defaults to: 10cm of point-to-point distance, and
// sin(20 degrees) of normal misalignment.
var (
	DefaultDistThreshold  = 0.10
	DefaultAngleThreshold = math.Sin(20 * math.Pi / 180)
)

// DefaultICPIterations is the default per-level iteration count, indexed finest (0)
// to coarsest (L-1): 10 iterations at full resolution, 5 at half, 4 at quarter.
var DefaultICPIterations = []int{10, 5, 4}

// Tracker estimates the frame-to-model camera pose by minimizing a point-to-plane
// cost between the current frame's pyramid and the model's raycasted prediction,
// per spec section 4.2.
type Tracker struct {
	DistThreshold  float64
	AngleThreshold float64
	Iterations     []int // indexed finest (0) to coarsest (len-1)
}

// NewTracker returns a Tracker configured with the spec's stated defaults.
func NewTracker() *Tracker {
	iters := make([]int, len(DefaultICPIterations))
	copy(iters, DefaultICPIterations)
	return &Tracker{
		DistThreshold:  DefaultDistThreshold,
		AngleThreshold: DefaultAngleThreshold,
		Iterations:     iters,
	}
}

// Track runs the coarse-to-fine ICP schedule starting from prevPose (the initial
// guess), against the current frame's pyramid and the model's predicted
// vmaps_g_prev/nmaps_g_prev held in each level's VertexPrevWorld/NormalPrevWorld.
// It returns the refined camera-to-world pose, or ErrSingularICP if the linear
// system becomes singular or non-finite at any iteration (the caller must reset()
// the session and drop the frame in that case).
func (tr *Tracker) Track(pyr *Pyramid, prevPose *spatialmath.Pose) (*spatialmath.Pose, error) {
	R := prevPose.Orientation()
	t := prevPose.Point()
	prevR := prevPose.Orientation()
	prevT := prevPose.Point()

	levels := len(pyr.Levels)
	for li := levels - 1; li >= 0; li-- {
		lvl := pyr.Levels[li]
		iters := 0
		if li < len(tr.Iterations) {
			iters = tr.Iterations[li]
		}
		for it := 0; it < iters; it++ {
			ata, atb, valid := tr.accumulate(lvl, R, t, prevR, prevT)
			if valid == 0 {
				return nil, errors.Wrap(ErrSingularICP, "no correspondences")
			}
			xi, err := solveCholesky6(ata, atb)
			if err != nil {
				return nil, errors.Wrap(ErrSingularICP, err.Error())
			}
			rInc := (&spatialmath.EulerAngles{Roll: xi[0], Pitch: xi[1], Yaw: xi[2]}).RotationMatrix()
			tInc := r3.Vector{X: xi[3], Y: xi[4], Z: xi[5]}
			t = rInc.MulVector(t).Add(tInc)
			R = rInc.Mul(R)
		}
	}
	return spatialmath.NewPose(t, R), nil
}

// icpPartial is one goroutine's local reduction block (spec section 4.2's "gbuf"),
// merged into the final sumbuf once every block has finished.
type icpPartial struct {
	ata   [21]float64
	atb   [6]float64
	valid int
}

// accumulate builds the 21-entry upper-triangular AᵀA and the 6-entry Aᵀb for one
// ICP iteration at the given level, under the candidate pose (R, t), projecting
// correspondences into the previous frame's camera via (prevR, prevT). Returns the
// number of accepted correspondences. Rows are partitioned across GOMAXPROCS
// goroutines, each reducing into its own gbuf block; the blocks are summed into the
// returned sumbuf after every goroutine finishes, modeling the device's per-block
// parallel reduction followed by a final host-side reduction.
func (tr *Tracker) accumulate(lvl *PyramidLevel, R *spatialmath.RotationMatrix, t r3.Vector, prevR *spatialmath.RotationMatrix, prevT r3.Vector) ([21]float64, [6]float64, int) {
	vmap := lvl.VertexCurr
	procs := runtime.GOMAXPROCS(0)
	if procs > vmap.Rows {
		procs = vmap.Rows
	}
	if procs < 1 {
		procs = 1
	}
	rowsPerBlock := (vmap.Rows + procs - 1) / procs

	gbuf := make([]icpPartial, procs)
	var wg sync.WaitGroup
	for b := 0; b < procs; b++ {
		rowFrom := b * rowsPerBlock
		rowTo := rowFrom + rowsPerBlock
		if rowTo > vmap.Rows {
			rowTo = vmap.Rows
		}
		if rowFrom >= rowTo {
			continue
		}
		block := b
		from, to := rowFrom, rowTo
		wg.Add(1)
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			gbuf[block] = tr.accumulateRows(lvl, R, t, prevR, prevT, from, to)
		})
	}
	wg.Wait()

	var sumbuf icpPartial
	for _, g := range gbuf {
		for i := range sumbuf.ata {
			sumbuf.ata[i] += g.ata[i]
		}
		for i := range sumbuf.atb {
			sumbuf.atb[i] += g.atb[i]
		}
		sumbuf.valid += g.valid
	}
	return sumbuf.ata, sumbuf.atb, sumbuf.valid
}

// accumulateRows reduces the [rowFrom, rowTo) row band of one ICP iteration into a
// single gbuf block; see accumulate for the surrounding parallel reduction.
func (tr *Tracker) accumulateRows(lvl *PyramidLevel, R *spatialmath.RotationMatrix, t r3.Vector, prevR *spatialmath.RotationMatrix, prevT r3.Vector, rowFrom, rowTo int) icpPartial {
	var out icpPartial

	intr := lvl.Intrinsics
	vmap := lvl.VertexCurr
	nmap := lvl.NormalCurr
	vmapPrev := lvl.VertexPrevWorld
	nmapPrev := lvl.NormalPrevWorld

	for row := rowFrom; row < rowTo; row++ {
		for col := 0; col < vmap.Cols; col++ {
			vLocal := vmap.At(row, col)
			nLocal := nmap.At(row, col)
			if !validVector(vLocal) || !validVector(nLocal) {
				continue
			}

			vc := R.MulVector(vLocal).Add(t)
			nc := R.MulVector(nLocal)

			camPrev := prevR.MulTransposeVector(vc.Sub(prevT))
			if camPrev.Z <= 0 {
				continue
			}
			u, v := intr.PointToPixel(camPrev)
			pc, pr := int(u), int(v)
			if pc < 0 || pc >= vmapPrev.Cols || pr < 0 || pr >= vmapPrev.Rows {
				continue
			}

			vPrev := vmapPrev.At(pr, pc)
			nPrev := nmapPrev.At(pr, pc)
			if !validVector(vPrev) || !validVector(nPrev) {
				continue
			}

			diff := vc.Sub(vPrev)
			if diff.Norm() > tr.DistThreshold {
				continue
			}
			if nc.Cross(nPrev).Norm() > tr.AngleThreshold {
				continue
			}

			cross := vc.Cross(nPrev)
			jac := [6]float64{cross.X, cross.Y, cross.Z, nPrev.X, nPrev.Y, nPrev.Z}
			residual := nPrev.Dot(diff)

			idx := 0
			for i := 0; i < 6; i++ {
				for j := i; j < 6; j++ {
					out.ata[idx] += jac[i] * jac[j]
					idx++
				}
				out.atb[i] -= jac[i] * residual
			}
			out.valid++
		}
	}
	return out
}

// solveCholesky6 solves the 6x6 symmetric positive-definite system Ax=b given A's
// upper-triangular 21 entries (row-major, i<=j) and b's 6 entries, via gonum's
// Cholesky factorization. Returns an error if the matrix is not positive definite
// or the solution contains a non-finite entry; Track wraps it in ErrSingularICP.
func solveCholesky6(ataUpper [21]float64, atb [6]float64) ([6]float64, error) {
	dense := mat.NewSymDense(6, nil)
	idx := 0
	for i := 0; i < 6; i++ {
		for j := i; j < 6; j++ {
			dense.SetSym(i, j, ataUpper[idx])
			idx++
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(dense); !ok {
		return [6]float64{}, errors.New("normal equations not positive definite")
	}

	b := mat.NewVecDense(6, atb[:])
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return [6]float64{}, errors.Wrap(err, "cholesky solve failed")
	}

	var out [6]float64
	for i := 0; i < 6; i++ {
		v := x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return [6]float64{}, errors.New("non-finite solution")
		}
		out[i] = v
	}
	return out, nil
}
