package ifl

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

//LinearMSEOracle is the analytic oracle for a linear model with squared
//loss, L(w; x, y) = (w^T x - y)^2. All derivatives have closed forms, so no
//automatic differentiation backend is needed:
//  grad       = 2 (w^T x - y) x
//  hvp(v)     = 2 x (x^T v)
//  mixed grad = 2 (x w^T + (w^T x - y) I)
//Grad and Hvp average over the batch.
type LinearMSEOracle struct {
	dim int
}

//NewLinearMSEOracle creates an oracle for feature dimension dim.
func NewLinearMSEOracle(dim int) *LinearMSEOracle {
	return &LinearMSEOracle{dim: dim}
}

//Dim returns the parameter dimension.
func (o *LinearMSEOracle) Dim() int {
	return o.dim
}

func (o *LinearMSEOracle) point(s Sample) (LabeledPoint, error) {
	p, ok := s.(LabeledPoint)
	if !ok {
		return LabeledPoint{}, fmt.Errorf("linear mse oracle: unsupported sample type %T", s)
	}
	if err := checkDim("linear mse oracle sample", p.X, o.dim); err != nil {
		return LabeledPoint{}, err
	}
	return p, nil
}

//Grad returns the batch-mean gradient of the squared loss at theta.
func (o *LinearMSEOracle) Grad(batch []Sample, theta *mat.VecDense) (*mat.VecDense, error) {
	if err := checkDim("linear mse oracle theta", theta, o.dim); err != nil {
		return nil, err
	}
	grad := mat.NewVecDense(o.dim, nil)
	for _, s := range batch {
		p, err := o.point(s)
		if err != nil {
			return nil, err
		}
		residual := mat.Dot(theta, p.X) - p.Y
		grad.AddScaledVec(grad, 2*residual/float64(len(batch)), p.X)
	}
	return grad, nil
}

//Hvp returns the batch-mean Hessian-vector product. The per-sample Hessian
//of the squared loss is the constant 2 x x^T.
func (o *LinearMSEOracle) Hvp(v *mat.VecDense, batch []Sample, theta *mat.VecDense) (*mat.VecDense, error) {
	if err := checkDim("linear mse oracle theta", theta, o.dim); err != nil {
		return nil, err
	}
	if err := checkDim("linear mse oracle direction", v, o.dim); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(o.dim, nil)
	for _, s := range batch {
		p, err := o.point(s)
		if err != nil {
			return nil, err
		}
		out.AddScaledVec(out, 2*mat.Dot(p.X, v)/float64(len(batch)), p.X)
	}
	return out, nil
}

//MixedGrad returns the mixed second derivative d/dx d/dw L of one sample,
//a dim x dim matrix since features and parameters share the dimension.
func (o *LinearMSEOracle) MixedGrad(sample Sample, theta *mat.VecDense) (*mat.Dense, error) {
	if err := checkDim("linear mse oracle theta", theta, o.dim); err != nil {
		return nil, err
	}
	p, err := o.point(sample)
	if err != nil {
		return nil, err
	}
	residual := mat.Dot(theta, p.X) - p.Y
	mixed := mat.NewDense(o.dim, o.dim, nil)
	mixed.Outer(2, p.X, theta)
	for ind := 0; ind < o.dim; ind++ {
		mixed.Set(ind, ind, mixed.At(ind, ind)+2*residual)
	}
	return mixed, nil
}

//FitLinear computes least-squares weights for the target column against the
//feature matrix. Solve uses QR for the overdetermined case.
func FitLinear(features, target *mat.Dense) (*mat.VecDense, error) {
	h, d := features.Dims()
	targetH, targetW := target.Dims()
	if targetH != h {
		return nil, &ShapeMismatchError{Context: "linear fit target height", Want: h, Got: targetH}
	}
	if targetW != 1 {
		return nil, &ShapeMismatchError{Context: "linear fit target width", Want: 1, Got: targetW}
	}
	var solved mat.Dense
	if err := solved.Solve(features, target); err != nil {
		return nil, fmt.Errorf("linear fit: %w", err)
	}
	weights := mat.NewVecDense(d, nil)
	for ind := 0; ind < d; ind++ {
		weights.SetVec(ind, solved.At(ind, 0))
	}
	return weights, nil
}
