package ifl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCGMatchesDirect(t *testing.T) {
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(NewLinearMSEOracle(2), theta, diagonalPoints(), 0.1)
	require.NoError(t, err)

	for _, b := range []*mat.VecDense{
		mat.NewVecDense(2, []float64{1, 1}),
		mat.NewVecDense(2, []float64{-3, 0.25}),
		mat.NewVecDense(2, []float64{0, 42}),
	} {
		expected, err := SolveDirect(op, b)
		require.NoError(t, err)

		x, stats, err := SolveCG(op, b, CGParams{Tol: 1e-12})
		require.NoError(t, err)
		require.True(t, stats.Converged)

		for ind := 0; ind < 2; ind++ {
			assert.InDelta(t, expected.AtVec(ind), x.AtVec(ind), 1e-8)
		}
	}
}

func TestCGScalarClosedForm(t *testing.T) {
	//H = 2 for the quadratic loss, so (H)^{-1} 3 = 1.5
	theta := mat.NewVecDense(1, []float64{2})
	op, err := NewHessianOperator(NewLinearMSEOracle(1), theta, scalarPoints(), 0)
	require.NoError(t, err)

	x, stats, err := SolveCG(op, mat.NewVecDense(1, []float64{3}), CGParams{})
	require.NoError(t, err)
	assert.True(t, stats.Converged)
	assert.InDelta(t, 1.5, x.AtVec(0), 1e-10)
}

func TestCGZeroRHSNoOperatorCalls(t *testing.T) {
	counting := &countingOracle{inner: NewLinearMSEOracle(2)}
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(counting, theta, diagonalPoints(), 0)
	require.NoError(t, err)

	x, stats, err := SolveCG(op, mat.NewVecDense(2, nil), CGParams{})
	require.NoError(t, err)

	assert.True(t, stats.Converged)
	assert.Equal(t, 0, stats.Iterations)
	assert.Equal(t, 0, counting.hvpCalls)
	assert.InDelta(t, 0, mat.Norm(x, 2), 0)
}

func TestCGSingularHessianFails(t *testing.T) {
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(zeroHessianOracle{dim: 2}, theta, nil, 0)
	require.NoError(t, err)

	best, stats, err := SolveCG(op, mat.NewVecDense(2, []float64{1, 1}), CGParams{MaxIter: 50})
	var convErr *ConvergenceError
	require.ErrorAs(t, err, &convErr)
	assert.False(t, stats.Converged)
	assert.NotNil(t, best)
	assert.NotNil(t, convErr.Best)
}

func TestCGLargeLambda(t *testing.T) {
	lambda := 1e8
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(NewLinearMSEOracle(2), theta, diagonalPoints(), lambda)
	require.NoError(t, err)

	b := mat.NewVecDense(2, []float64{3, -7})
	x, _, err := SolveCG(op, b, CGParams{Tol: 1e-12})
	require.NoError(t, err)

	assert.InEpsilon(t, b.AtVec(0)/lambda, x.AtVec(0), 1e-6)
	assert.InEpsilon(t, b.AtVec(1)/lambda, x.AtVec(1), 1e-6)
}

func TestCGShapeMismatch(t *testing.T) {
	theta := mat.NewVecDense(2, nil)
	op, err := NewHessianOperator(NewLinearMSEOracle(2), theta, diagonalPoints(), 0)
	require.NoError(t, err)

	_, _, err = SolveCG(op, mat.NewVecDense(4, nil), CGParams{})
	var shapeErr *ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}
