package cpu

import (
	"math"
	"testing"

	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestSigmoid(t *testing.T) {
	b := New()
	input := rawF32(t, tensor.Shape{3}, []float32{0, 10, -10})

	out := b.Sigmoid(input).AsFloat32()
	if math.Abs(float64(out[0]-0.5)) > 1e-6 {
		t.Errorf("sigmoid(0) = %v, want 0.5", out[0])
	}
	if out[1] < 0.999 {
		t.Errorf("sigmoid(10) = %v, want ~1", out[1])
	}
	if out[2] > 0.001 {
		t.Errorf("sigmoid(-10) = %v, want ~0", out[2])
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	b := New()
	input := rawF32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, -1, 0, 1})

	out := b.Softmax(input, 1).AsFloat32()
	for r := 0; r < 2; r++ {
		var sum float64
		for c := 0; c < 3; c++ {
			v := out[r*3+c]
			sum += float64(v)
			if v <= 0 || v >= 1 {
				t.Errorf("softmax value %v outside (0,1)", v)
			}
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("row %d sums to %v, want 1", r, sum)
		}
	}
}

func TestSoftmaxNegativeDim(t *testing.T) {
	b := New()
	input := rawF32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	last := b.Softmax(input, 1).AsFloat32()
	neg := b.Softmax(input, -1).AsFloat32()
	assertFloats(t, last, neg, 0, "dim -1 equals dim 1")
}

func TestSoftmaxShiftInvariant(t *testing.T) {
	b := New()
	a := rawF32(t, tensor.Shape{1, 3}, []float32{1, 2, 3})
	shifted := rawF32(t, tensor.Shape{1, 3}, []float32{101, 102, 103})

	assertFloats(t, b.Softmax(a, 1).AsFloat32(), b.Softmax(shifted, 1).AsFloat32(), 1e-6, "shift invariance")
}

func TestSoftmaxLargeValuesStable(t *testing.T) {
	b := New()
	input := rawF32(t, tensor.Shape{1, 2}, []float32{1000, 1000})

	out := b.Softmax(input, 1).AsFloat32()
	assertFloats(t, []float32{0.5, 0.5}, out, 1e-5, "large logits")
}
