// Package nn implements neural network modules.
//
// It provides the building blocks the classifier is assembled from:
//   - Module interface: base interface for all components
//   - Parameter: trainable tensors
//   - Conv2D, Linear, BatchNorm2d: parameterized layers
//   - Swish, StochasticPool2d: activation and pooling
//   - CrossEntropyLoss and accuracy helpers
//   - State-dict persistence (single-slot checkpoint files)
package nn

import (
	"github.com/foliar-ml/foliar/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters. Modules without trainable
	// state return an empty slice.
	Parameters() []*Parameter[B]
}
