package ifl

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

//Sample is an opaque data unit. The engine never inspects its structure;
//only the oracle that knows the model consumes it.
type Sample interface{}

//LabeledPoint is the sample kind consumed by the built-in analytic oracles:
//a feature vector paired with a scalar target.
type LabeledPoint struct {
	X *mat.VecDense
	Y float64
}

//Oracle supplies gradients and Hessian-vector products of a loss with
//respect to the model parameters. Grad and Hvp average over the given batch.
//Implementations must be deterministic for a fixed (batch, theta) pair and
//must not share mutable state across concurrent calls with the same theta.
type Oracle interface {
	Dim() int
	Grad(batch []Sample, theta *mat.VecDense) (*mat.VecDense, error)
	Hvp(v *mat.VecDense, batch []Sample, theta *mat.VecDense) (*mat.VecDense, error)
}

//MixedOracle additionally exposes the mixed second derivative of the loss,
//d/dx d/dtheta L, for a single sample. Required for perturbation influence.
type MixedOracle interface {
	Oracle
	MixedGrad(sample Sample, theta *mat.VecDense) (*mat.Dense, error)
}

//ShapeMismatchError reports a dimension inconsistency between theta,
//gradients and Hessian-vector products. It is fatal and propagated
//unchanged to the caller.
type ShapeMismatchError struct {
	Context string
	Want    int
	Got     int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch in %s: want dimension %d, got %d", e.Context, e.Want, e.Got)
}

func checkDim(context string, v *mat.VecDense, want int) error {
	if got := v.Len(); got != want {
		return &ShapeMismatchError{Context: context, Want: want, Got: got}
	}
	return nil
}

//BatchSampler yields a fresh mini-batch per call. LiSSA draws one batch
//per recursion step through this interface.
type BatchSampler interface {
	SampleBatch() []Sample
}

//UniformSampler samples batches uniformly with replacement from a fixed
//data slice. The seed is explicit so that runs are reproducible.
type UniformSampler struct {
	data      []Sample
	batchSize int
	rng       *rand.Rand
}

//NewUniformSampler creates a sampler over data with the given batch size.
func NewUniformSampler(data []Sample, batchSize int, seed int64) *UniformSampler {
	if batchSize <= 0 || batchSize > len(data) {
		batchSize = len(data)
	}
	return &UniformSampler{data: data, batchSize: batchSize, rng: rand.New(rand.NewSource(seed))}
}

//SampleBatch draws batchSize samples with replacement.
func (s *UniformSampler) SampleBatch() []Sample {
	batch := make([]Sample, s.batchSize)
	for ind := range batch {
		batch[ind] = s.data[s.rng.Intn(len(s.data))]
	}
	return batch
}
