package ops

import "github.com/foliar-ml/foliar/internal/tensor"

// StochasticPool2DOp represents stochastic 2x2 pooling.
//
// The forward pass sampled one source element per cell; srcIndices holds
// the flat index of that element for every output position. Backward
// routes each output gradient to its sampled source only, the
// subgradient of the gather.
type StochasticPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	srcIndices []int
}

// NewStochasticPool2DOp creates a new StochasticPool2DOp.
func NewStochasticPool2DOp(input, output *tensor.RawTensor, srcIndices []int) *StochasticPool2DOp {
	return &StochasticPool2DOp{
		input:      input,
		output:     output,
		srcIndices: srcIndices,
	}
}

// Backward routes the output gradient through the sampled indices.
func (op *StochasticPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Pool2DBackward(outputGrad, op.input.Shape(), op.srcIndices)
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensor.
func (op *StochasticPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the pooled output tensor.
func (op *StochasticPool2DOp) Output() *tensor.RawTensor {
	return op.output
}
