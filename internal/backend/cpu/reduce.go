package cpu

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Argmax returns the index of the maximum value along the given dimension
// as an int64 tensor. Ties resolve to the lowest index.
func (cpu *Backend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	shape := x.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("argmax: invalid dim %d for shape %v", dim, shape))
	}

	outShape := make(tensor.Shape, 0, len(shape)-1)
	for d, size := range shape {
		if d != dim {
			outShape = append(outShape, size)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result := tensor.MustNewRaw(outShape, tensor.Int64, cpu.device)
	in := x.AsFloat32()
	out := result.AsInt64()

	dimSize := shape[dim]
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := x.NumElements() / (dimSize * inner)

	outIdx := 0
	for o := 0; o < outer; o++ {
		for in2 := 0; in2 < inner; in2++ {
			base := o*dimSize*inner + in2
			best := 0
			bestV := in[base]
			for d := 1; d < dimSize; d++ {
				if v := in[base+d*inner]; v > bestV {
					bestV = v
					best = d
				}
			}
			out[outIdx] = int64(best)
			outIdx++
		}
	}
	return result
}
