package ops

import "github.com/foliar-ml/foliar/internal/tensor"

// BatchNorm2DOp represents training-mode batch normalization, where mean
// and variance were computed from the current batch and therefore carry
// gradient themselves. The batch statistics are captured at record time.
type BatchNorm2DOp struct {
	inputs   []*tensor.RawTensor // [input, gamma, beta]
	output   *tensor.RawTensor
	mean     *tensor.RawTensor
	variance *tensor.RawTensor
	eps      float32
}

// NewBatchNorm2DOp creates a new BatchNorm2DOp.
func NewBatchNorm2DOp(input, gamma, beta, mean, variance, output *tensor.RawTensor, eps float32) *BatchNorm2DOp {
	return &BatchNorm2DOp{
		inputs:   []*tensor.RawTensor{input, gamma, beta},
		output:   output,
		mean:     mean,
		variance: variance,
		eps:      eps,
	}
}

// Backward computes gradients for the input and the affine parameters.
func (op *BatchNorm2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, gamma := op.inputs[0], op.inputs[1]
	inputGrad, gammaGrad, betaGrad := backend.BatchNorm2DBackward(
		input, gamma, op.mean, op.variance, outputGrad, op.eps)
	return []*tensor.RawTensor{inputGrad, gammaGrad, betaGrad}
}

// Inputs returns the input tensors [input, gamma, beta].
func (op *BatchNorm2DOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the normalized output tensor.
func (op *BatchNorm2DOp) Output() *tensor.RawTensor {
	return op.output
}
