package ifl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAssembleHessianDiagonal(t *testing.T) {
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(NewLinearMSEOracle(2), theta, diagonalPoints(), 0.25)
	require.NoError(t, err)

	hess, err := AssembleHessian(op)
	require.NoError(t, err)

	expected := []float64{1.25, 0, 0, 4.25}
	for p := 0; p < 2; p++ {
		for q := 0; q < 2; q++ {
			assert.InDelta(t, expected[2*p+q], hess.At(p, q), 1e-12)
		}
	}
}

func TestSolveDirectDiagonal(t *testing.T) {
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(NewLinearMSEOracle(2), theta, diagonalPoints(), 0)
	require.NoError(t, err)

	x, err := SolveDirect(op, mat.NewVecDense(2, []float64{1, 1}))
	require.NoError(t, err)

	assert.InDelta(t, 1.0, x.AtVec(0), 1e-10)
	assert.InDelta(t, 0.25, x.AtVec(1), 1e-10)
}

func TestSolveDirectSingular(t *testing.T) {
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(zeroHessianOracle{dim: 2}, theta, nil, 0)
	require.NoError(t, err)

	_, err = SolveDirect(op, mat.NewVecDense(2, []float64{1, 1}))
	require.ErrorIs(t, err, ErrSingularMatrix)
}

func TestSolveDirectLargeLambda(t *testing.T) {
	lambda := 1e8
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(NewLinearMSEOracle(2), theta, diagonalPoints(), lambda)
	require.NoError(t, err)

	b := mat.NewVecDense(2, []float64{3, -7})
	x, err := SolveDirect(op, b)
	require.NoError(t, err)

	//(H + lambda I)^{-1} approaches I/lambda for dominant lambda
	assert.InEpsilon(t, b.AtVec(0)/lambda, x.AtVec(0), 1e-6)
	assert.InEpsilon(t, b.AtVec(1)/lambda, x.AtVec(1), 1e-6)
}

func TestSolveDirectMatrixIndefiniteFallsBackToPseudoInverse(t *testing.T) {
	//not positive definite, so Cholesky fails and the SVD path is taken
	hess := mat.NewDense(2, 2, []float64{1, 0, 0, -1})
	b := mat.NewVecDense(2, []float64{2, 3})

	x, err := SolveDirectMatrix(hess, b, 0.1)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, x.AtVec(0), 1e-10)
	assert.InDelta(t, -3.0, x.AtVec(1), 1e-10)
}

func TestSolveDirectMatrixShapeMismatch(t *testing.T) {
	hess := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	_, err := SolveDirectMatrix(hess, mat.NewVecDense(3, nil), 0)
	var shapeErr *ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}
