// Package autodiff implements automatic differentiation using the
// decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and adds gradient
// tracking through a GradientTape: differentiable operations are
// recorded during the forward pass and replayed in reverse to compute
// gradients. Gradient kernels and evaluation-only operations delegate
// straight to the wrapped backend.
package autodiff

import (
	"math/rand"

	"github.com/foliar-ml/foliar/internal/autodiff/ops"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control: starting and
// stopping recording, clearing between iterations.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, result))
	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sub(x, y)
	b.tape.Record(ops.NewSubOp(x, y, result))
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(x, y)
	b.tape.Record(ops.NewMulOp(x, y, result))
	return result
}

// Div performs element-wise division and records the operation.
func (b *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Div(x, y)
	b.tape.Record(ops.NewDivOp(x, y, result))
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(x, y)
	b.tape.Record(ops.NewMatMulOp(x, y, result))
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding))
	return result
}

// Conv2DInputBackward delegates to the wrapped backend. Gradient kernels
// are never recorded.
func (b *AutodiffBackend[B]) Conv2DInputBackward(outputGrad, kernel *tensor.RawTensor, inputShape tensor.Shape, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(outputGrad, kernel, inputShape, stride, padding)
}

// Conv2DKernelBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, outputGrad *tensor.RawTensor, kernelShape tensor.Shape, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, outputGrad, kernelShape, stride, padding)
}

// StochasticPool2D performs sampled stochastic pooling and records the
// operation with the sampled source indices for gradient routing.
func (b *AutodiffBackend[B]) StochasticPool2D(input *tensor.RawTensor, rng *rand.Rand) (*tensor.RawTensor, []int) {
	result, srcIndices := b.inner.StochasticPool2D(input, rng)
	b.tape.Record(ops.NewStochasticPool2DOp(input, result, srcIndices))
	return result, srcIndices
}

// StochasticPool2DExpected delegates to the wrapped backend. The
// expected-value form is evaluation-only and is not differentiated.
func (b *AutodiffBackend[B]) StochasticPool2DExpected(input *tensor.RawTensor) *tensor.RawTensor {
	return b.inner.StochasticPool2DExpected(input)
}

// Pool2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) Pool2DBackward(outputGrad *tensor.RawTensor, inputShape tensor.Shape, srcIndices []int) *tensor.RawTensor {
	return b.inner.Pool2DBackward(outputGrad, inputShape, srcIndices)
}

// GlobalAvgPool2D performs global average pooling and records the operation.
func (b *AutodiffBackend[B]) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.GlobalAvgPool2D(input)
	b.tape.Record(ops.NewGlobalAvgPool2DOp(input, result))
	return result
}

// GlobalAvgPool2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) GlobalAvgPool2DBackward(outputGrad *tensor.RawTensor, inputShape tensor.Shape) *tensor.RawTensor {
	return b.inner.GlobalAvgPool2DBackward(outputGrad, inputShape)
}

// BatchStats2D delegates to the wrapped backend. The statistics become
// differentiable through the recorded BatchNorm2D operation, not on
// their own.
func (b *AutodiffBackend[B]) BatchStats2D(input *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	return b.inner.BatchStats2D(input)
}

// BatchNorm2D normalizes the input and records the operation. The
// recorded backward assumes training mode, where mean and variance came
// from the current batch; in evaluation mode the tape is not recording
// and this reduces to the plain kernel.
func (b *AutodiffBackend[B]) BatchNorm2D(input, gamma, beta, mean, variance *tensor.RawTensor, eps float32) *tensor.RawTensor {
	result := b.inner.BatchNorm2D(input, gamma, beta, mean, variance, eps)
	b.tape.Record(ops.NewBatchNorm2DOp(input, gamma, beta, mean, variance, result, eps))
	return result
}

// BatchNorm2DBackward delegates to the wrapped backend.
func (b *AutodiffBackend[B]) BatchNorm2DBackward(input, gamma, mean, variance, outputGrad *tensor.RawTensor, eps float32) (inputGrad, gammaGrad, betaGrad *tensor.RawTensor) {
	return b.inner.BatchNorm2DBackward(input, gamma, mean, variance, outputGrad, eps)
}

// Reshape reshapes a tensor and records the operation so gradients flow
// back to the original tensor.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	b.tape.Record(ops.NewReshapeOp(t, result))
	return result
}

// Transpose permutes dimensions and records the operation. A Linear
// layer transposes its weight before the matmul; without recording, the
// weight parameter would never receive a gradient.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	ndim := len(t.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	result := b.inner.Transpose(t, axes...)
	b.tape.Record(ops.NewTransposeOp(t, result, axes))
	return result
}

// Sigmoid applies the logistic function and records the operation.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Sigmoid(x)
	b.tape.Record(ops.NewSigmoidOp(x, result))
	return result
}

// Softmax applies softmax along dim and records the operation.
func (b *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if dim < 0 {
		dim += len(x.Shape())
	}
	result := b.inner.Softmax(x, dim)
	b.tape.Record(ops.NewSoftmaxOp(x, result, dim))
	return result
}

// Argmax delegates to the wrapped backend. Integer outputs carry no
// gradient.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Argmax(x, dim)
}

// Cat concatenates tensors and records the operation.
func (b *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if dim < 0 && len(tensors) > 0 {
		dim += len(tensors[0].Shape())
	}
	result := b.inner.Cat(tensors, dim)
	b.tape.Record(ops.NewCatOp(tensors, result, dim))
	return result
}

// Narrow delegates to the wrapped backend. It is only used by gradient
// routing and evaluation code.
func (b *AutodiffBackend[B]) Narrow(t *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	return b.inner.Narrow(t, dim, start, length)
}

// CrossEntropy computes the classification loss and records the operation.
func (b *AutodiffBackend[B]) CrossEntropy(logits, labels *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.CrossEntropy(logits, labels)
	b.tape.Record(ops.NewCrossEntropyOp(logits, labels, result))
	return result
}
