package ops

import "github.com/foliar-ml/foliar/internal/tensor"

// GlobalAvgPool2DOp represents global average pooling: (N,C,H,W) -> (N,C).
//
// Backward spreads each output gradient uniformly over its channel plane,
// scaled by 1/(H*W).
type GlobalAvgPool2DOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewGlobalAvgPool2DOp creates a new GlobalAvgPool2DOp.
func NewGlobalAvgPool2DOp(input, output *tensor.RawTensor) *GlobalAvgPool2DOp {
	return &GlobalAvgPool2DOp{input: input, output: output}
}

// Backward computes the input gradient.
func (op *GlobalAvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.GlobalAvgPool2DBackward(outputGrad, op.input.Shape())
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensor.
func (op *GlobalAvgPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *GlobalAvgPool2DOp) Output() *tensor.RawTensor {
	return op.output
}
