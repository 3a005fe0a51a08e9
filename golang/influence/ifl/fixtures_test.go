package ifl

import (
	"gonum.org/v1/gonum/mat"
)

//diagonalPoints yields samples whose batch-mean Hessian under the linear MSE
//loss is diag(1, 4): the average of 2*x*x^T over x=[1,0] and x=[0,2].
func diagonalPoints() []Sample {
	return []Sample{
		LabeledPoint{X: mat.NewVecDense(2, []float64{1, 0}), Y: 0},
		LabeledPoint{X: mat.NewVecDense(2, []float64{0, 2}), Y: 0},
	}
}

//scalarPoints yields 1-D samples z in {1, 2, 3} for the quadratic loss
//L = (theta - z)^2, i.e. the linear MSE loss with a constant unit feature.
//The batch-mean Hessian is the constant 2.
func scalarPoints() []Sample {
	return []Sample{
		LabeledPoint{X: mat.NewVecDense(1, []float64{1}), Y: 1},
		LabeledPoint{X: mat.NewVecDense(1, []float64{1}), Y: 2},
		LabeledPoint{X: mat.NewVecDense(1, []float64{1}), Y: 3},
	}
}

//mixedScalePoints yields 1-D samples with different per-sample Hessians
//(2*x^2 for x in {0.5, 1.0, 1.5}), so mini-batch sampling genuinely varies.
func mixedScalePoints() []Sample {
	return []Sample{
		LabeledPoint{X: mat.NewVecDense(1, []float64{0.5}), Y: 0},
		LabeledPoint{X: mat.NewVecDense(1, []float64{1.0}), Y: 0},
		LabeledPoint{X: mat.NewVecDense(1, []float64{1.5}), Y: 0},
	}
}

//countingOracle counts Hessian-vector-product calls on the wrapped oracle.
type countingOracle struct {
	inner    Oracle
	hvpCalls int
}

func (o *countingOracle) Dim() int {
	return o.inner.Dim()
}

func (o *countingOracle) Grad(batch []Sample, theta *mat.VecDense) (*mat.VecDense, error) {
	return o.inner.Grad(batch, theta)
}

func (o *countingOracle) Hvp(v *mat.VecDense, batch []Sample, theta *mat.VecDense) (*mat.VecDense, error) {
	o.hvpCalls++
	return o.inner.Hvp(v, batch, theta)
}

//zeroHessianOracle has an identically zero Hessian and gradient, the fully
//degenerate case every solver must refuse to silently "solve" at lambda zero.
type zeroHessianOracle struct {
	dim int
}

func (o zeroHessianOracle) Dim() int {
	return o.dim
}

func (o zeroHessianOracle) Grad(batch []Sample, theta *mat.VecDense) (*mat.VecDense, error) {
	return mat.NewVecDense(o.dim, nil), nil
}

func (o zeroHessianOracle) Hvp(v *mat.VecDense, batch []Sample, theta *mat.VecDense) (*mat.VecDense, error) {
	if err := checkDim("zero oracle direction", v, o.dim); err != nil {
		return nil, err
	}
	return mat.NewVecDense(o.dim, nil), nil
}

//fixedSampler always returns the same batch, turning LiSSA into the
//deterministic truncated Neumann series.
type fixedSampler struct {
	batch []Sample
}

func (s fixedSampler) SampleBatch() []Sample {
	return s.batch
}
