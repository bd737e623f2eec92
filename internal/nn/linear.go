package nn

import (
	"fmt"
	"math/rand"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Linear is a fully connected layer: output = input @ weightᵀ + bias.
//
// Input shape:  [batch, in_features]
// Weight shape: [out_features, in_features]
// Bias shape:   [out_features]
// Output shape: [batch, out_features]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int

	weight *Parameter[B]
	bias   *Parameter[B]

	backend B
}

// NewLinear creates a fully connected layer with Xavier initialization.
func NewLinear[B tensor.Backend](name string, inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", Zeros(tensor.Shape{outFeatures}, backend)),
		backend:     backend,
	}
}

// Forward performs the forward pass.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [N,features], got %dD", len(inputShape)))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: input features %d != expected %d", inputShape[1], l.inFeatures))
	}

	output := input.MatMul(l.weight.Tensor().T())
	return output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
}

// Parameters returns all trainable parameters.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// String returns a string representation of the layer.
func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in=%d, out=%d)", l.inFeatures, l.outFeatures)
}
