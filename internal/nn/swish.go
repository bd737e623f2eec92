package nn

import "github.com/foliar-ml/foliar/internal/tensor"

// Swish is the self-gated activation: swish(x) = x * σ(x).
//
// Unlike ReLU it is smooth and non-monotonic, with a small negative dip
// before saturating to zero. The forward pass is built from recorded
// Sigmoid and Mul primitives, so the gradient flows through both the
// identity and the gate.
type Swish[B tensor.Backend] struct{}

// NewSwish creates a Swish activation module.
func NewSwish[B tensor.Backend]() *Swish[B] {
	return &Swish[B]{}
}

// Forward computes x * σ(x).
func (s *Swish[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Mul(input.Sigmoid())
}

// Parameters returns an empty slice; Swish is stateless.
func (s *Swish[B]) Parameters() []*Parameter[B] {
	return nil
}
