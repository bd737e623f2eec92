// Package optim implements optimization algorithms for training.
//
// Optimizers take the gradient map produced by the autodiff tape and
// update parameters in place:
//
//	grads := backend.Tape().Backward(ones, backend)
//	optimizer.Step(grads)
//	backend.Tape().Clear()
package optim

import (
	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters. The map comes
	// from the tape's Backward and is keyed by parameter RawTensor;
	// parameters with no gradient are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// GetLR returns the current learning rate, for monitoring and
	// scheduling.
	GetLR() float32

	// SetLR updates the learning rate, for schedulers.
	SetLR(lr float32)
}

// getGradient retrieves the gradient for a parameter, or nil if the
// parameter did not participate in the forward pass.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
