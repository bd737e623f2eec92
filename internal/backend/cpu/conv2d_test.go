package cpu

import (
	"testing"

	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestConv2DKnownValues(t *testing.T) {
	b := New()
	input := rawF32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	kernel := rawF32(t, tensor.Shape{1, 1, 2, 2}, []float32{
		1, 0,
		0, 1,
	})

	out := b.Conv2D(input, kernel, 1, 0)
	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("conv shape = %v, want [1 1 2 2]", out.Shape())
	}
	assertFloats(t, []float32{6, 8, 12, 14}, out.AsFloat32(), 1e-5, "conv values")
}

func TestConv2DStrideAndPadding(t *testing.T) {
	b := New()
	input := rawF32(t, tensor.Shape{1, 1, 4, 4}, make([]float32, 16))
	kernel := rawF32(t, tensor.Shape{2, 1, 3, 3}, make([]float32, 18))

	out := b.Conv2D(input, kernel, 2, 1)
	// out = (4 + 2*1 - 3)/2 + 1 = 2
	if !out.Shape().Equal(tensor.Shape{1, 2, 2, 2}) {
		t.Fatalf("conv shape = %v, want [1 2 2 2]", out.Shape())
	}
}

func TestConv2DMultiChannel(t *testing.T) {
	b := New()
	// Two input channels, kernel sums both: output = ch0 + ch1.
	input := rawF32(t, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 2, 3, 4, // channel 0
		10, 20, 30, 40, // channel 1
	})
	kernel := rawF32(t, tensor.Shape{1, 2, 1, 1}, []float32{1, 1})

	out := b.Conv2D(input, kernel, 1, 0)
	assertFloats(t, []float32{11, 22, 33, 44}, out.AsFloat32(), 1e-5, "multi-channel conv")
}

func TestConv2DInputBackward(t *testing.T) {
	b := New()
	outputGrad := rawF32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})
	kernel := rawF32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})

	grad := b.Conv2DInputBackward(outputGrad, kernel, tensor.Shape{1, 1, 3, 3}, 1, 0)
	if !grad.Shape().Equal(tensor.Shape{1, 1, 3, 3}) {
		t.Fatalf("input grad shape = %v, want [1 1 3 3]", grad.Shape())
	}
	// Each input position accumulates one unit per window covering it.
	assertFloats(t, []float32{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}, grad.AsFloat32(), 1e-5, "input backward")
}

func TestConv2DKernelBackward(t *testing.T) {
	b := New()
	input := rawF32(t, tensor.Shape{1, 1, 3, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	outputGrad := rawF32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 1, 1, 1})

	grad := b.Conv2DKernelBackward(input, outputGrad, tensor.Shape{1, 1, 2, 2}, 1, 0)
	if !grad.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("kernel grad shape = %v, want [1 1 2 2]", grad.Shape())
	}
	// Each weight sums the input values it touched across all windows.
	assertFloats(t, []float32{12, 16, 24, 28}, grad.AsFloat32(), 1e-5, "kernel backward")
}
