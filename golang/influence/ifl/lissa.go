package ifl

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

//LissaParams tunes the stochastic LiSSA approximation.
type LissaParams struct {
	Depth           int          //recursion length of one repeat; defaults to 1000
	Repeats         int          //independent repeats averaged together; defaults to 10
	Scale           float64      //step scaling, must satisfy Scale * norm(H + lambda*I) < 2; defaults to 0.1
	Sampler         BatchSampler //yields one fresh mini-batch per recursion step; required
	NormGrowthBound float64      //iterate norm may not exceed this multiple of norm(b); defaults to 1e4
	ThreadsNum      int          //repeats run on a worker pool when greater than one
}

const (
	defaultLissaDepth      = 1000
	defaultLissaRepeats    = 10
	defaultLissaScale      = 0.1
	defaultNormGrowthBound = 1e4
)

//DivergenceError reports a LiSSA repeat whose iterate norm blew past the
//configured bound, which happens when Scale is too large for the spectrum
//of the damped Hessian.
type DivergenceError struct {
	Repeat int
	Step   int
	Norm   float64
	Bound  float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("lissa repeat %d diverged at step %d: iterate norm %g exceeds bound %g", e.Repeat, e.Step, e.Norm, e.Bound)
}

//SolveLissa approximates (H + lambda*I)^{-1} b with the truncated Neumann
//recursion
//
//	x_0 = b,  x_{j+1} = b + (I - Scale*(H_j + lambda*I)) x_j
//
//where H_j is averaged over a freshly sampled mini-batch, so one step costs
//one mini-batch Hessian-vector product instead of a full dataset pass. The
//fixed point of the recursion is (1/Scale)(H + lambda*I)^{-1} b, so each
//repeat is rescaled by Scale before averaging. A single repeat has high
//variance from the batch sampling; the average over Repeats independent
//repeats is the estimate. Repeats whose iterate norm diverges fail with a
//DivergenceError and are dropped; the call fails only if every repeat
//diverged.
func SolveLissa(op *HessianOperator, b *mat.VecDense, params LissaParams) (*mat.VecDense, error) {
	d := op.Dim()
	if err := checkDim("lissa rhs", b, d); err != nil {
		return nil, err
	}
	if params.Sampler == nil {
		return nil, fmt.Errorf("lissa: batch sampler is required")
	}

	depth := params.Depth
	if depth <= 0 {
		depth = defaultLissaDepth
	}
	repeats := params.Repeats
	if repeats <= 0 {
		repeats = defaultLissaRepeats
	}
	scale := params.Scale
	if scale <= 0 {
		scale = defaultLissaScale
	}
	growthBound := params.NormGrowthBound
	if growthBound <= 0 {
		growthBound = defaultNormGrowthBound
	}

	bNorm := mat.Norm(b, 2)
	if bNorm == 0 {
		return mat.NewVecDense(d, nil), nil
	}
	normBound := growthBound * bNorm

	//samplers are not required to be safe for concurrent use
	var samplerMu sync.Mutex
	nextBatch := func() []Sample {
		samplerMu.Lock()
		defer samplerMu.Unlock()
		return params.Sampler.SampleBatch()
	}

	estimates := make([]*mat.VecDense, repeats)
	repeatErrs := make([]error, repeats)

	runRepeat := func(repeat int) {
		x := mat.NewVecDense(d, nil)
		x.CopyVec(b)
		for step := 0; step < depth; step++ {
			av, err := op.ApplyOn(x, nextBatch())
			if err != nil {
				repeatErrs[repeat] = err
				return
			}
			x.AddScaledVec(x, -scale, av)
			x.AddVec(x, b)

			norm := mat.Norm(x, 2)
			if math.IsNaN(norm) || math.IsInf(norm, 0) || norm > normBound {
				repeatErrs[repeat] = &DivergenceError{Repeat: repeat, Step: step, Norm: norm, Bound: normBound}
				return
			}
		}
		x.ScaleVec(scale, x)
		estimates[repeat] = x
	}

	if params.ThreadsNum > 1 {
		taskPool := NewPool(params.ThreadsNum)
		for repeat := 0; repeat < repeats; repeat++ {
			taskPool.AddTask(&TaskLissaRepeat{repeat: repeat, run: runRepeat})
		}
		taskPool.Close()
		taskPool.WaitAll()
	} else {
		for repeat := 0; repeat < repeats; repeat++ {
			runRepeat(repeat)
		}
	}

	average := mat.NewVecDense(d, nil)
	succeeded := 0
	var lastDivergence error
	for repeat, estimate := range estimates {
		if estimate == nil {
			err := repeatErrs[repeat]
			var diverged *DivergenceError
			if !errors.As(err, &diverged) {
				//anything other than divergence (e.g. a shape mismatch) is fatal
				return nil, err
			}
			log.Printf("lissa repeat %d dropped: %v", repeat, err)
			lastDivergence = err
			continue
		}
		average.AddVec(average, estimate)
		succeeded++
	}
	if succeeded == 0 {
		return nil, lastDivergence
	}
	average.ScaleVec(1/float64(succeeded), average)
	return average, nil
}
