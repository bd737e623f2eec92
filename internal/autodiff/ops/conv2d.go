package ops

import "github.com/foliar-ml/foliar/internal/tensor"

// Conv2DOp represents 2D convolution: output = conv2d(input, kernel).
//
// Backward delegates to the backend's explicit convolution gradient
// kernels: the input gradient is a transposed convolution of the output
// gradient with the kernel, and the kernel gradient is a correlation of
// the input with the output gradient.
type Conv2DOp struct {
	inputs  []*tensor.RawTensor // [input, kernel]
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		inputs:  []*tensor.RawTensor{input, kernel},
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Backward computes input and kernel gradients.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, kernel := op.inputs[0], op.inputs[1]
	inputGrad := backend.Conv2DInputBackward(outputGrad, kernel, input.Shape(), op.stride, op.padding)
	kernelGrad := backend.Conv2DKernelBackward(input, outputGrad, kernel.Shape(), op.stride, op.padding)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

// Inputs returns the input tensors [input, kernel].
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the output tensor.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}
