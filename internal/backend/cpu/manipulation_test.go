package cpu

import (
	"testing"

	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestCatDim0(t *testing.T) {
	b := New()
	a := rawF32(t, tensor.Shape{1, 2}, []float32{1, 2})
	c := rawF32(t, tensor.Shape{2, 2}, []float32{3, 4, 5, 6})

	out := b.Cat([]*tensor.RawTensor{a, c}, 0)
	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("cat shape = %v, want [3 2]", out.Shape())
	}
	assertFloats(t, []float32{1, 2, 3, 4, 5, 6}, out.AsFloat32(), 0, "cat dim 0")
}

func TestCatChannels(t *testing.T) {
	b := New()
	// The cardinality-block case: channel concatenation of NCHW maps.
	a := rawF32(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	c := rawF32(t, tensor.Shape{1, 2, 2, 2}, []float32{5, 6, 7, 8, 9, 10, 11, 12})

	out := b.Cat([]*tensor.RawTensor{a, c}, 1)
	if !out.Shape().Equal(tensor.Shape{1, 3, 2, 2}) {
		t.Fatalf("cat shape = %v, want [1 3 2 2]", out.Shape())
	}
	assertFloats(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, out.AsFloat32(), 0, "cat channels")
}

func TestNarrowInvertsCat(t *testing.T) {
	b := New()
	a := rawF32(t, tensor.Shape{1, 2, 1, 2}, []float32{1, 2, 3, 4})
	c := rawF32(t, tensor.Shape{1, 1, 1, 2}, []float32{5, 6})

	merged := b.Cat([]*tensor.RawTensor{a, c}, 1)

	backA := b.Narrow(merged, 1, 0, 2)
	backC := b.Narrow(merged, 1, 2, 1)

	if !backA.Shape().Equal(a.Shape()) || !backC.Shape().Equal(c.Shape()) {
		t.Fatalf("narrow shapes = %v, %v", backA.Shape(), backC.Shape())
	}
	assertFloats(t, a.AsFloat32(), backA.AsFloat32(), 0, "narrow first part")
	assertFloats(t, c.AsFloat32(), backC.AsFloat32(), 0, "narrow second part")
}
