//Package ifl estimates how much each training sample influenced a model's
//loss on a test sample, without retraining, via first-order influence
//functions. The heavy lifting is an approximate inverse-Hessian-vector
//product engine: (H + lambda*I) x = b solved directly, by conjugate
//gradients, or by the stochastic LiSSA recursion, touching the Hessian
//only through gradient and Hessian-vector-product oracle calls.
package ifl

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//SolverConfig selects the inversion method. It is a closed set of variants
//resolved once per influence computation: DirectConfig, CGConfig or
//LissaConfig.
type SolverConfig interface {
	solverName() string
}

//DirectConfig assembles the dense damped Hessian once and factorizes it.
//Only viable for small parameter counts; it is the ground truth the
//iterative methods are tested against.
type DirectConfig struct{}

func (DirectConfig) solverName() string { return "direct" }

//CGConfig runs conjugate gradients once per right-hand side.
type CGConfig struct {
	Tol         float64
	MaxIter     int
	StallWindow int
}

func (CGConfig) solverName() string { return "cg" }

//LissaConfig runs the stochastic LiSSA recursion once per right-hand side.
type LissaConfig struct {
	Depth           int
	Repeats         int
	Scale           float64
	Sampler         BatchSampler
	NormGrowthBound float64
}

func (LissaConfig) solverName() string { return "lissa" }

//InfluenceParams collects everything one influence computation needs. Theta
//is held fixed for the duration of the call. The Hessian is averaged over
//the training samples passed to UpWeighting or Perturbation.
type InfluenceParams struct {
	Oracle     Oracle
	Theta      *mat.VecDense
	Lambda     float64
	Solver     SolverConfig
	ThreadsNum int
}

//resolveSolver binds the tagged solver variant once and returns the closure
//used for every right-hand side.
func resolveSolver(op *HessianOperator, config SolverConfig, threadsNum int) (func(b *mat.VecDense) (*mat.VecDense, error), error) {
	switch cfg := config.(type) {
	case DirectConfig:
		hess, err := AssembleHessian(op)
		if err != nil {
			return nil, err
		}
		lambda := op.Lambda()
		return func(b *mat.VecDense) (*mat.VecDense, error) {
			return SolveDirectMatrix(hess, b, lambda)
		}, nil
	case CGConfig:
		cgParams := CGParams{Tol: cfg.Tol, MaxIter: cfg.MaxIter, StallWindow: cfg.StallWindow}
		return func(b *mat.VecDense) (*mat.VecDense, error) {
			x, _, err := SolveCG(op, b, cgParams)
			if err != nil {
				return nil, err
			}
			return x, nil
		}, nil
	case LissaConfig:
		lissaParams := LissaParams{
			Depth:           cfg.Depth,
			Repeats:         cfg.Repeats,
			Scale:           cfg.Scale,
			Sampler:         cfg.Sampler,
			NormGrowthBound: cfg.NormGrowthBound,
			ThreadsNum:      threadsNum,
		}
		return func(b *mat.VecDense) (*mat.VecDense, error) {
			return SolveLissa(op, b, lissaParams)
		}, nil
	default:
		return nil, fmt.Errorf("unknown solver config %T", config)
	}
}

//solveTestGradients computes the test-side gradients and solves the linear
//system once per test sample. With a deterministic solver and more than one
//thread the independent solves run on the worker pool; LiSSA keeps the
//threads for its own repeats instead.
func solveTestGradients(params InfluenceParams, solve func(*mat.VecDense) (*mat.VecDense, error), test []Sample) ([]*mat.VecDense, error) {
	solutions := make([]*mat.VecDense, len(test))
	errs := make([]error, len(test))

	solveOne := func(j int) (*mat.VecDense, error) {
		gTest, err := params.Oracle.Grad([]Sample{test[j]}, params.Theta)
		if err != nil {
			return nil, err
		}
		return solve(gTest)
	}

	_, stochastic := params.Solver.(LissaConfig)
	if params.ThreadsNum > 1 && !stochastic {
		taskPool := NewPool(params.ThreadsNum)
		for j := range test {
			localJ := j
			taskPool.AddTask(&TaskSolveRHS{
				solutions: solutions,
				errs:      errs,
				index:     localJ,
				solve:     func() (*mat.VecDense, error) { return solveOne(localJ) },
			})
		}
		taskPool.Close()
		taskPool.WaitAll()
	} else {
		for j := range test {
			solutions[j], errs[j] = solveOne(j)
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return solutions, nil
}

//UpWeighting computes the up-weighting influence matrix. Entry (i, j) is the
//first-order effect of up-weighting train sample i on the test loss at test
//sample j:
//
//	-g_test_j^T (H + lambda*I)^{-1} g_train_i
//
//One linear solve is performed per test sample and, by symmetry of the
//Hessian, reused across every train sample. This keeps the solve count
//linear in the test set size rather than quadratic in both sets.
func UpWeighting(params InfluenceParams, train, test []Sample) (*mat.Dense, error) {
	if len(train) == 0 || len(test) == 0 {
		return nil, fmt.Errorf("influence requires at least one train and one test sample")
	}
	op, err := NewHessianOperator(params.Oracle, params.Theta, train, params.Lambda)
	if err != nil {
		return nil, err
	}
	solve, err := resolveSolver(op, params.Solver, params.ThreadsNum)
	if err != nil {
		return nil, err
	}
	solutions, err := solveTestGradients(params, solve, test)
	if err != nil {
		return nil, err
	}

	scores := mat.NewDense(len(train), len(test), nil)
	for i, z := range train {
		gTrain, err := params.Oracle.Grad([]Sample{z}, params.Theta)
		if err != nil {
			return nil, err
		}
		for j := range test {
			scores.Set(i, j, -mat.Dot(solutions[j], gTrain))
		}
	}
	return scores, nil
}

//Perturbation computes the perturbation influence tensor with shape
//(n_train, n_test, d_x). Entry (i, j, :) is the sensitivity of the test
//loss at test sample j to perturbing each feature of train sample i:
//
//	-mixed_grad(z_train_i) (H + lambda*I)^{-1} g_test_j
//
//The solve per test sample is shared with the up-weighting path; only the
//train-side combination differs.
func Perturbation(params InfluenceParams, train, test []Sample) (*tensor.Dense, error) {
	oracle, ok := params.Oracle.(MixedOracle)
	if !ok {
		return nil, fmt.Errorf("perturbation influence requires an oracle with mixed gradients, got %T", params.Oracle)
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, fmt.Errorf("influence requires at least one train and one test sample")
	}
	op, err := NewHessianOperator(params.Oracle, params.Theta, train, params.Lambda)
	if err != nil {
		return nil, err
	}
	solve, err := resolveSolver(op, params.Solver, params.ThreadsNum)
	if err != nil {
		return nil, err
	}
	solutions, err := solveTestGradients(params, solve, test)
	if err != nil {
		return nil, err
	}

	d := params.Oracle.Dim()
	var scores *tensor.Dense
	featureDim := 0
	combined := &mat.VecDense{}

	for i, z := range train {
		mixed, err := oracle.MixedGrad(z, params.Theta)
		if err != nil {
			return nil, err
		}
		mixedH, mixedW := mixed.Dims()
		if mixedW != d {
			return nil, &ShapeMismatchError{Context: "oracle mixed gradient", Want: d, Got: mixedW}
		}
		if scores == nil {
			featureDim = mixedH
			scores = tensor.New(tensor.WithShape(len(train), len(test), featureDim), tensor.Of(tensor.Float64))
		} else if mixedH != featureDim {
			return nil, &ShapeMismatchError{Context: "oracle mixed gradient", Want: featureDim, Got: mixedH}
		}

		for j := range test {
			combined.MulVec(mixed, solutions[j])
			for k := 0; k < featureDim; k++ {
				if err := scores.SetAt(-combined.AtVec(k), i, j, k); err != nil {
					return nil, err
				}
			}
		}
	}
	return scores, nil
}
