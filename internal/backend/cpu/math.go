package cpu

import (
	"fmt"
	"math"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Sigmoid applies the logistic function element-wise.
func (cpu *Backend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("sigmoid: unsupported dtype %s", x.DType()))
	}

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	in := x.AsFloat32()
	out := result.AsFloat32()
	for i, v := range in {
		out[i] = float32(1.0 / (1.0 + math.Exp(-float64(v))))
	}
	return result
}

// Softmax applies softmax along the given dimension. A negative dim counts
// from the end. The max is subtracted per row for numerical stability.
func (cpu *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}

	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("softmax: invalid dim %d for shape %v", dim, shape))
	}

	result := tensor.MustNewRaw(shape, tensor.Float32, cpu.device)
	in := x.AsFloat32()
	out := result.AsFloat32()

	dimSize := shape[dim]
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := x.NumElements() / (dimSize * inner)

	for o := 0; o < outer; o++ {
		for in2 := 0; in2 < inner; in2++ {
			base := o*dimSize*inner + in2

			maxV := in[base]
			for d := 1; d < dimSize; d++ {
				if v := in[base+d*inner]; v > maxV {
					maxV = v
				}
			}

			sum := float32(0)
			for d := 0; d < dimSize; d++ {
				e := float32(math.Exp(float64(in[base+d*inner] - maxV)))
				out[base+d*inner] = e
				sum += e
			}
			for d := 0; d < dimSize; d++ {
				out[base+d*inner] /= sum
			}
		}
	}
	return result
}
