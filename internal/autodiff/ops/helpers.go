package ops

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// Needed when broadcasting was used in the forward pass: gradient
// contributions along broadcast dimensions are summed back.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone when shapes already match so accumulation never aliases
	// another operation's gradient.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	// Broadcasting aligns shapes from the right: sum away extra leading
	// dimensions first.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = sumAlongDimension(result, 0, false)
	}

	// Then sum along dimensions where the target is 1.
	for d := 0; d < len(targetShape); d++ {
		if targetShape[d] == 1 && result.Shape()[d] > 1 {
			result = sumAlongDimension(result, d, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// sumAlongDimension sums float32 data along one dimension. With keepDim
// the summed dimension stays as size 1, otherwise it is removed.
func sumAlongDimension(t *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumAlongDimension: invalid dimension %d for shape %v", dim, shape))
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("sumAlongDimension: unsupported dtype %s", t.DType()))
	}

	outShape := make(tensor.Shape, 0, len(shape))
	for d, size := range shape {
		switch {
		case d != dim:
			outShape = append(outShape, size)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, t.Device())
	in := t.AsFloat32()
	out := result.AsFloat32()

	dimSize := shape[dim]
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := t.NumElements() / (dimSize * inner)

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			sum := float32(0)
			base := o*dimSize*inner + i
			for d := 0; d < dimSize; d++ {
				sum += in[base+d*inner]
			}
			out[o*inner+i] = sum
		}
	}
	return result
}

// scaleGradient returns grad * factor as a new tensor.
func scaleGradient(grad *tensor.RawTensor, factor float32) *tensor.RawTensor {
	result := tensor.MustNewRaw(grad.Shape(), tensor.Float32, grad.Device())
	in := grad.AsFloat32()
	out := result.AsFloat32()
	for i, v := range in {
		out[i] = v * factor
	}
	return result
}
