package ops

import "github.com/foliar-ml/foliar/internal/tensor"

// SigmoidOp represents the logistic activation: output = σ(input).
//
// Backward uses the output directly: dσ/dx = σ(x)·(1-σ(x)).
type SigmoidOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSigmoidOp creates a new SigmoidOp.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{input: input, output: output}
}

// Backward computes the input gradient.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	inputGrad := tensor.MustNewRaw(op.input.Shape(), tensor.Float32, op.input.Device())

	grad := outputGrad.AsFloat32()
	out := op.output.AsFloat32()
	dst := inputGrad.AsFloat32()
	for i := range dst {
		dst[i] = grad[i] * out[i] * (1 - out[i])
	}
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensor.
func (op *SigmoidOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SigmoidOp) Output() *tensor.RawTensor {
	return op.output
}
