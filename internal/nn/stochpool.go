package nn

import (
	"math/rand"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// StochasticPool2d downsamples by non-overlapping 2x2 cells.
//
// In training mode each cell's output is one of its four values, sampled
// from the cell's softmax distribution; the randomness acts as a
// regularizer. In evaluation mode the cell's output is the
// probability-weighted mean of its values, so repeated evaluations of
// the same input produce identical metrics. The mode switch is explicit
// on the module and the random source is injected, never global.
type StochasticPool2d[B tensor.Backend] struct {
	rng      *rand.Rand
	training bool
	backend  B
}

// NewStochasticPool2d creates a stochastic pooling module drawing from rng.
func NewStochasticPool2d[B tensor.Backend](rng *rand.Rand, backend B) *StochasticPool2d[B] {
	return &StochasticPool2d[B]{
		rng:      rng,
		training: true,
		backend:  backend,
	}
}

// SetTraining switches between sampled (training) and expected-value
// (evaluation) pooling.
func (p *StochasticPool2d[B]) SetTraining(training bool) {
	p.training = training
}

// Forward performs the forward pass.
func (p *StochasticPool2d[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	var raw *tensor.RawTensor
	if p.training {
		raw, _ = p.backend.StochasticPool2D(input.Raw(), p.rng)
	} else {
		raw = p.backend.StochasticPool2DExpected(input.Raw())
	}
	return tensor.New[float32, B](raw, p.backend)
}

// Parameters returns an empty slice; pooling is stateless.
func (p *StochasticPool2d[B]) Parameters() []*Parameter[B] {
	return nil
}
