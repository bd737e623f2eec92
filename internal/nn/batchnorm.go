package nn

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// BatchNorm2d normalizes each channel of a 4D input over the (N, H, W)
// axes, then applies a learned affine transform.
//
// In training mode the layer normalizes with the current batch
// statistics and updates exponential running averages; in evaluation
// mode it normalizes with the running averages. The running statistics
// are state but not parameters, so they are excluded from Parameters()
// and carried through the state dict instead.
type BatchNorm2d[B tensor.Backend] struct {
	numFeatures int
	eps         float32
	momentum    float32
	training    bool

	gamma *Parameter[B]
	beta  *Parameter[B]

	runningMean *tensor.RawTensor
	runningVar  *tensor.RawTensor

	backend B
}

// NewBatchNorm2d creates a batch normalization layer for numFeatures
// channels. Scale starts at one, shift at zero, running variance at one.
func NewBatchNorm2d[B tensor.Backend](name string, numFeatures int, backend B) *BatchNorm2d[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid feature count %d", numFeatures))
	}

	runningVar := tensor.MustNewRaw(tensor.Shape{numFeatures}, tensor.Float32, backend.Device())
	for i := range runningVar.AsFloat32() {
		runningVar.AsFloat32()[i] = 1
	}

	return &BatchNorm2d[B]{
		numFeatures: numFeatures,
		eps:         1e-5,
		momentum:    0.1,
		training:    true,
		gamma:       NewParameter(name+".gamma", Ones(tensor.Shape{numFeatures}, backend)),
		beta:        NewParameter(name+".beta", Zeros(tensor.Shape{numFeatures}, backend)),
		runningMean: tensor.MustNewRaw(tensor.Shape{numFeatures}, tensor.Float32, backend.Device()),
		runningVar:  runningVar,
		backend:     backend,
	}
}

// SetTraining switches between batch statistics (training) and running
// statistics (evaluation).
func (bn *BatchNorm2d[B]) SetTraining(training bool) {
	bn.training = training
}

// Forward performs the forward pass.
func (bn *BatchNorm2d[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", inputShape[1], bn.numFeatures))
	}

	var mean, variance *tensor.RawTensor
	if bn.training {
		mean, variance = bn.backend.BatchStats2D(input.Raw())
		bn.updateRunningStats(mean, variance)
	} else {
		mean, variance = bn.runningMean, bn.runningVar
	}

	outputRaw := bn.backend.BatchNorm2D(
		input.Raw(),
		bn.gamma.Tensor().Raw(),
		bn.beta.Tensor().Raw(),
		mean, variance, bn.eps,
	)
	return tensor.New[float32, B](outputRaw, bn.backend)
}

// updateRunningStats folds the batch statistics into the running
// averages: running = (1-momentum)*running + momentum*batch.
func (bn *BatchNorm2d[B]) updateRunningStats(mean, variance *tensor.RawTensor) {
	rm := bn.runningMean.AsFloat32()
	rv := bn.runningVar.AsFloat32()
	m := mean.AsFloat32()
	v := variance.AsFloat32()
	for i := range rm {
		rm[i] = (1-bn.momentum)*rm[i] + bn.momentum*m[i]
		rv[i] = (1-bn.momentum)*rv[i] + bn.momentum*v[i]
	}
}

// Parameters returns the affine parameters.
func (bn *BatchNorm2d[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.gamma, bn.beta}
}

// State adds the layer's persistent state, including the running
// statistics, to dst under the gamma parameter's name prefix.
func (bn *BatchNorm2d[B]) State(dst map[string]*tensor.RawTensor) {
	prefix := bn.gamma.Name()[:len(bn.gamma.Name())-len(".gamma")]
	dst[bn.gamma.Name()] = bn.gamma.Tensor().Raw()
	dst[bn.beta.Name()] = bn.beta.Tensor().Raw()
	dst[prefix+".running_mean"] = bn.runningMean
	dst[prefix+".running_var"] = bn.runningVar
}

// LoadState restores the layer's persistent state from src.
func (bn *BatchNorm2d[B]) LoadState(src map[string]*tensor.RawTensor) error {
	prefix := bn.gamma.Name()[:len(bn.gamma.Name())-len(".gamma")]
	for name, dst := range map[string]*tensor.RawTensor{
		bn.gamma.Name():          bn.gamma.Tensor().Raw(),
		bn.beta.Name():           bn.beta.Tensor().Raw(),
		prefix + ".running_mean": bn.runningMean,
		prefix + ".running_var":  bn.runningVar,
	} {
		loaded, ok := src[name]
		if !ok {
			return fmt.Errorf("batchnorm2d: missing state entry %q", name)
		}
		if !loaded.Shape().Equal(dst.Shape()) {
			return fmt.Errorf("batchnorm2d: shape mismatch for %q: %v != %v", name, loaded.Shape(), dst.Shape())
		}
		copy(dst.Data(), loaded.Data())
	}
	return nil
}

// String returns a string representation of the layer.
func (bn *BatchNorm2d[B]) String() string {
	return fmt.Sprintf("BatchNorm2d(features=%d, eps=%g, momentum=%g)", bn.numFeatures, bn.eps, bn.momentum)
}
