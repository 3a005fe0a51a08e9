package ifl

import "gonum.org/v1/gonum/mat"

//HessianOperator exposes the damped linear map v -> Hv + lambda*v, where
//H is the batch-mean Hessian of the oracle's loss at theta. Theta is
//captured once at construction and must not be mutated during a solve.
type HessianOperator struct {
	oracle Oracle
	theta  *mat.VecDense
	batch  []Sample
	lambda float64
}

//NewHessianOperator wraps an oracle into the damped operator with a fixed
//batch over which Hessian-vector products are averaged.
func NewHessianOperator(oracle Oracle, theta *mat.VecDense, batch []Sample, lambda float64) (*HessianOperator, error) {
	if err := checkDim("operator theta", theta, oracle.Dim()); err != nil {
		return nil, err
	}
	return &HessianOperator{oracle: oracle, theta: theta, batch: batch, lambda: lambda}, nil
}

//Dim returns the parameter dimension d.
func (op *HessianOperator) Dim() int {
	return op.oracle.Dim()
}

//Lambda returns the damping term added to the Hessian diagonal.
func (op *HessianOperator) Lambda() float64 {
	return op.lambda
}

//Apply computes (H + lambda*I) v with the Hessian averaged over the
//operator's fixed batch.
func (op *HessianOperator) Apply(v *mat.VecDense) (*mat.VecDense, error) {
	return op.ApplyOn(v, op.batch)
}

//ApplyOn computes (H + lambda*I) v with the Hessian averaged over the given
//batch instead of the fixed one. LiSSA feeds a freshly sampled mini-batch
//per recursion step through this entry point.
func (op *HessianOperator) ApplyOn(v *mat.VecDense, batch []Sample) (*mat.VecDense, error) {
	if err := checkDim("operator input", v, op.Dim()); err != nil {
		return nil, err
	}
	hv, err := op.oracle.Hvp(v, batch, op.theta)
	if err != nil {
		return nil, err
	}
	if err := checkDim("oracle hvp result", hv, op.Dim()); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(op.Dim(), nil)
	out.AddScaledVec(hv, op.lambda, v)
	return out, nil
}
