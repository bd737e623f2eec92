package ops

import "github.com/foliar-ml/foliar/internal/tensor"

// SoftmaxOp represents softmax along a dimension: output = softmax(input, dim).
//
// Backward uses the simplified Jacobian-vector product:
//
//	dx_j = s_j * (g_j - Σ_i g_i * s_i)   along dim
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewSoftmaxOp creates a new SoftmaxOp. dim must already be normalized
// to a non-negative axis.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output, dim: dim}
}

// Backward computes the input gradient.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	inputGrad := tensor.MustNewRaw(shape, tensor.Float32, op.input.Device())

	grad := outputGrad.AsFloat32()
	s := op.output.AsFloat32()
	dst := inputGrad.AsFloat32()

	dimSize := shape[op.dim]
	inner := 1
	for d := op.dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := op.input.NumElements() / (dimSize * inner)

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*dimSize*inner + i

			dot := float32(0)
			for d := 0; d < dimSize; d++ {
				idx := base + d*inner
				dot += grad[idx] * s[idx]
			}
			for d := 0; d < dimSize; d++ {
				idx := base + d*inner
				dst[idx] = s[idx] * (grad[idx] - dot)
			}
		}
	}
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the input tensor.
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *SoftmaxOp) Output() *tensor.RawTensor {
	return op.output
}
