package cpu

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) -> (M, N).
// The inner loops run in ikj order so the innermost access is sequential
// over both b and the output row.
func (cpu *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v @ %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	m, k, n := aShape[0], aShape[1], bShape[1]
	result := tensor.MustNewRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)

	aData := a.AsFloat32()
	bData := b.AsFloat32()
	out := result.AsFloat32()

	for i := 0; i < m; i++ {
		aRow := aData[i*k : (i+1)*k]
		outRow := out[i*n : (i+1)*n]
		for kk := 0; kk < k; kk++ {
			av := aRow[kk]
			if av == 0 {
				continue
			}
			bRow := bData[kk*n : (kk+1)*n]
			for j := range outRow {
				outRow[j] += av * bRow[j]
			}
		}
	}
	return result
}
