package ifl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//CGParams tunes the conjugate-gradient solver.
type CGParams struct {
	Tol         float64 //relative residual target, norm(r)/norm(b); defaults to 1e-10
	MaxIter     int     //hard iteration budget; defaults to 10*d
	StallWindow int     //iterations without a new best residual before the solve is declared stagnant; defaults to 10
}

const (
	defaultCGTol       = 1e-10
	defaultStallWindow = 10
)

//CGStats reports how a conjugate-gradient solve ended.
type CGStats struct {
	Iterations int
	Residual   float64
	Converged  bool
}

//ConvergenceError reports a conjugate-gradient solve that stopped without
//reaching the residual target. Best carries the iterate with the smallest
//residual seen so the caller may still accept it or retry with a larger
//damping term.
type ConvergenceError struct {
	Iterations int
	Residual   float64
	Best       *mat.VecDense
	Stalled    bool
}

func (e *ConvergenceError) Error() string {
	reason := "iteration budget exhausted"
	if e.Stalled {
		reason = "residual stagnated"
	}
	return fmt.Sprintf("cg did not converge after %d iterations (%s): relative residual %g", e.Iterations, reason, e.Residual)
}

//SolveCG solves (H + lambda*I) x = b with the standard conjugate-gradient
//recursion, touching the Hessian only through op.Apply, one call per
//iteration. A zero right-hand side returns the zero vector without any
//operator call. A non-positive curvature direction or a residual that stops
//improving for StallWindow iterations ends the solve with a
//ConvergenceError; the best iterate found so far is still returned.
func SolveCG(op *HessianOperator, b *mat.VecDense, params CGParams) (*mat.VecDense, CGStats, error) {
	d := op.Dim()
	if err := checkDim("cg rhs", b, d); err != nil {
		return nil, CGStats{}, err
	}

	x := mat.NewVecDense(d, nil)
	bNorm := mat.Norm(b, 2)
	if bNorm == 0 {
		return x, CGStats{Converged: true}, nil
	}

	tol := params.Tol
	if tol <= 0 {
		tol = defaultCGTol
	}
	maxIter := params.MaxIter
	if maxIter <= 0 {
		maxIter = 10 * d
	}
	window := params.StallWindow
	if window <= 0 {
		window = defaultStallWindow
	}

	r := mat.NewVecDense(d, nil)
	r.CopyVec(b)
	p := mat.NewVecDense(d, nil)
	p.CopyVec(b)
	rs := mat.Dot(r, r)

	best := mat.NewVecDense(d, nil)
	bestResidual := math.Sqrt(rs) / bNorm
	sinceBest := 0

	for iter := 0; iter < maxIter; iter++ {
		ap, err := op.Apply(p)
		if err != nil {
			return nil, CGStats{Iterations: iter}, err
		}
		pap := mat.Dot(p, ap)
		if pap <= 0 {
			//the operator is not positive definite along p; lambda is too small
			stats := CGStats{Iterations: iter, Residual: bestResidual}
			return best, stats, &ConvergenceError{Iterations: iter, Residual: bestResidual, Best: best, Stalled: true}
		}

		alpha := rs / pap
		x.AddScaledVec(x, alpha, p)
		r.AddScaledVec(r, -alpha, ap)

		rsNext := mat.Dot(r, r)
		relResidual := math.Sqrt(rsNext) / bNorm
		if relResidual < bestResidual {
			bestResidual = relResidual
			best.CopyVec(x)
			sinceBest = 0
		} else {
			sinceBest++
		}

		if relResidual < tol {
			return x, CGStats{Iterations: iter + 1, Residual: relResidual, Converged: true}, nil
		}
		if sinceBest >= window {
			stats := CGStats{Iterations: iter + 1, Residual: bestResidual}
			return best, stats, &ConvergenceError{Iterations: iter + 1, Residual: bestResidual, Best: best, Stalled: true}
		}

		p.AddScaledVec(r, rsNext/rs, p)
		rs = rsNext
	}

	stats := CGStats{Iterations: maxIter, Residual: bestResidual}
	return best, stats, &ConvergenceError{Iterations: maxIter, Residual: bestResidual, Best: best}
}
