package cpu

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Cat concatenates tensors along the given dimension. All tensors must
// share dtype and every dimension except dim.
func (cpu *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors to concatenate")
	}

	first := tensors[0]
	ndim := len(first.Shape())
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: invalid dim %d for %dD tensors", dim, ndim))
	}

	catSize := 0
	for i, t := range tensors {
		shape := t.Shape()
		if len(shape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dims, expected %d", i, len(shape), ndim))
		}
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: tensor %d dtype %s != %s", i, t.DType(), first.DType()))
		}
		for d := 0; d < ndim; d++ {
			if d != dim && shape[d] != first.Shape()[d] {
				panic(fmt.Sprintf("cat: tensor %d shape %v incompatible with %v along dim %d",
					i, shape, first.Shape(), dim))
			}
		}
		catSize += shape[dim]
	}

	outShape := first.Shape().Clone()
	outShape[dim] = catSize
	result := tensor.MustNewRaw(outShape, first.DType(), cpu.device)

	inner := 1
	for d := dim + 1; d < ndim; d++ {
		inner *= outShape[d]
	}
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= outShape[d]
	}

	// Byte-wise copy works for any dtype.
	elemSize := first.DType().Size()
	outBlock := catSize * inner * elemSize
	outData := result.Data()

	offset := 0
	for _, t := range tensors {
		block := t.Shape()[dim] * inner * elemSize
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(outData[o*outBlock+offset:o*outBlock+offset+block], src[o*block:(o+1)*block])
		}
		offset += block
	}
	return result
}

// Narrow returns a copy of a slice [start, start+length) of t along dim.
// It is the inverse used by concatenation's backward pass.
func (cpu *Backend) Narrow(t *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("narrow: invalid dim %d for %dD tensor", dim, ndim))
	}
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d,%d) out of bounds for dim size %d", start, start+length, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	result := tensor.MustNewRaw(outShape, t.DType(), cpu.device)

	inner := 1
	for d := dim + 1; d < ndim; d++ {
		inner *= shape[d]
	}
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}

	elemSize := t.DType().Size()
	srcBlock := shape[dim] * inner * elemSize
	dstBlock := length * inner * elemSize
	srcOff := start * inner * elemSize

	srcData := t.Data()
	dstData := result.Data()
	for o := 0; o < outer; o++ {
		copy(dstData[o*dstBlock:(o+1)*dstBlock], srcData[o*srcBlock+srcOff:o*srcBlock+srcOff+dstBlock])
	}
	return result
}
