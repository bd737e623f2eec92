package tensor

import "math/rand"

// Backend defines the interface that compute backends must implement.
// Backends handle the actual computation for tensor operations; shape
// errors inside a backend are programmer errors and panic.
//
// The backward kernels live on the same interface so an autodiff
// decorator can replay gradients through whichever backend produced
// the forward pass.
type Backend interface {
	// Element-wise binary operations (with broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations
	MatMul(a, b *RawTensor) *RawTensor

	// Convolution, NCHW layout
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(outputGrad, kernel *RawTensor, inputShape Shape, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, outputGrad *RawTensor, kernelShape Shape, stride, padding int) *RawTensor

	// Stochastic pooling over non-overlapping 2x2 cells.
	// StochasticPool2D samples one element per cell from the cell's
	// softmax distribution and returns the pooled output together with
	// the flat source index of the chosen element (for gradient routing).
	// StochasticPool2DExpected returns the probability-weighted mean of
	// each cell, the deterministic form used at evaluation time.
	StochasticPool2D(input *RawTensor, rng *rand.Rand) (*RawTensor, []int)
	StochasticPool2DExpected(input *RawTensor) *RawTensor
	Pool2DBackward(outputGrad *RawTensor, inputShape Shape, srcIndices []int) *RawTensor

	// Global average pooling: (N,C,H,W) -> (N,C)
	GlobalAvgPool2D(input *RawTensor) *RawTensor
	GlobalAvgPool2DBackward(outputGrad *RawTensor, inputShape Shape) *RawTensor

	// Batch normalization over (N,H,W) per channel.
	// BatchStats2D returns per-channel mean and biased variance.
	BatchStats2D(input *RawTensor) (mean, variance *RawTensor)
	BatchNorm2D(input, gamma, beta, mean, variance *RawTensor, eps float32) *RawTensor
	BatchNorm2DBackward(input, gamma, mean, variance, outputGrad *RawTensor, eps float32) (inputGrad, gammaGrad, betaGrad *RawTensor)

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Activations
	Sigmoid(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions
	Argmax(x *RawTensor, dim int) *RawTensor

	// Manipulation
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(t *RawTensor, dim, start, length int) *RawTensor

	// CrossEntropy computes mean softmax cross-entropy between logits
	// (N, numClasses) and int64 class labels (N). Returns a scalar.
	CrossEntropy(logits, labels *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
