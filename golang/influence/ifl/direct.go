package ifl

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

//ErrSingularMatrix is returned by the direct solver when lambda is zero and
//the assembled Hessian is not invertible within numerical tolerance.
var ErrSingularMatrix = errors.New("singular hessian: not invertible without regularization")

//rcondTolerance is the relative cutoff below which singular values are
//treated as zero.
const rcondTolerance = 1e-12

//AssembleHessian materializes the dense damped Hessian column by column by
//applying the operator to every standard basis vector. Cost is d operator
//calls, only viable for low-dimensional parameter vectors.
func AssembleHessian(op *HessianOperator) (*mat.Dense, error) {
	d := op.Dim()
	hess := mat.NewDense(d, d, nil)
	basis := mat.NewVecDense(d, nil)
	for q := 0; q < d; q++ {
		basis.Zero()
		basis.SetVec(q, 1)
		column, err := op.Apply(basis)
		if err != nil {
			return nil, err
		}
		hess.SetCol(q, column.RawVector().Data)
	}
	return hess, nil
}

//SolveDirect assembles the damped Hessian through the operator and solves
//the dense system. It is the correctness baseline for the iterative solvers.
func SolveDirect(op *HessianOperator, b *mat.VecDense) (*mat.VecDense, error) {
	hess, err := AssembleHessian(op)
	if err != nil {
		return nil, err
	}
	return SolveDirectMatrix(hess, b, op.Lambda())
}

//SolveDirectMatrix solves hess * x = b for a precomputed damped Hessian.
//Cholesky is attempted first; when the matrix is not positive definite the
//solver falls back to an SVD pseudo-inverse, except at lambda zero where a
//numerically singular matrix is reported as ErrSingularMatrix.
func SolveDirectMatrix(hess *mat.Dense, b *mat.VecDense, lambda float64) (*mat.VecDense, error) {
	d, w := hess.Dims()
	if d != w {
		return nil, &ShapeMismatchError{Context: "direct solver matrix", Want: d, Got: w}
	}
	if err := checkDim("direct solver rhs", b, d); err != nil {
		return nil, err
	}

	//The Hessian is symmetric up to rounding; symmetrize before factorizing.
	sym := mat.NewSymDense(d, nil)
	for p := 0; p < d; p++ {
		for q := p; q < d; q++ {
			sym.SetSym(p, q, (hess.At(p, q)+hess.At(q, p))/2)
		}
	}

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		x := mat.NewVecDense(d, nil)
		if err := chol.SolveVecTo(x, b); err == nil {
			return x, nil
		}
	}

	var svd mat.SVD
	if !svd.Factorize(hess, mat.SVDFull) {
		return nil, ErrSingularMatrix
	}
	values := svd.Values(nil)
	maxValue := values[0]
	if lambda == 0 && (maxValue == 0 || values[len(values)-1] <= rcondTolerance*maxValue) {
		return nil, ErrSingularMatrix
	}

	//x = V S^+ U^T b
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	projected := mat.NewVecDense(d, nil)
	projected.MulVec(u.T(), b)
	for ind := 0; ind < d; ind++ {
		if values[ind] > rcondTolerance*maxValue {
			projected.SetVec(ind, projected.AtVec(ind)/values[ind])
		} else {
			projected.SetVec(ind, 0)
		}
	}
	x := mat.NewVecDense(d, nil)
	x.MulVec(&v, projected)
	return x, nil
}
