package nn

import (
	"math"
	"math/rand"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Xavier (Glorot) initialization: values drawn from
// U(-sqrt(6/(fan_in+fan_out)), sqrt(6/(fan_in+fan_out))).
// Used for the classifier head.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}

// Kaiming (He) initialization: values drawn from N(0, sqrt(2/fan_in)).
// Used for convolution weights feeding into Swish-activated layers.
func Kaiming[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	std := math.Sqrt(2.0 / float64(fanIn))

	t := tensor.Randn(shape, rng, backend)
	data := t.Data()
	for i := range data {
		data[i] *= float32(std)
	}
	return t
}

// Zeros creates a tensor filled with zeros, commonly for bias
// initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones, commonly for batchnorm scale
// initialization.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
