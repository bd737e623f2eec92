package cpu

import (
	"math"
	"testing"

	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestCrossEntropyUniformLogits(t *testing.T) {
	b := New()
	logits := rawF32(t, tensor.Shape{2, 3}, []float32{0, 0, 0, 0, 0, 0})
	labels := rawI64(t, tensor.Shape{2}, []int64{0, 2})

	loss := b.CrossEntropy(logits, labels)
	if !loss.Shape().Equal(tensor.Shape{1}) {
		t.Fatalf("loss shape = %v, want [1]", loss.Shape())
	}
	want := math.Log(3)
	if got := float64(loss.AsFloat32()[0]); math.Abs(got-want) > 1e-5 {
		t.Errorf("uniform-logit loss = %v, want ln(3) = %v", got, want)
	}
}

func TestCrossEntropyConfidentPrediction(t *testing.T) {
	b := New()
	confident := rawF32(t, tensor.Shape{1, 3}, []float32{10, 0, 0})
	wrong := rawF32(t, tensor.Shape{1, 3}, []float32{0, 10, 0})
	labels := rawI64(t, tensor.Shape{1}, []int64{0})

	lossRight := float64(b.CrossEntropy(confident, labels).AsFloat32()[0])
	lossWrong := float64(b.CrossEntropy(wrong, labels).AsFloat32()[0])

	if lossRight > 0.01 {
		t.Errorf("confident correct prediction loss = %v, want ~0", lossRight)
	}
	if lossWrong < 5 {
		t.Errorf("confident wrong prediction loss = %v, want large", lossWrong)
	}
}

func TestCrossEntropyLabelOutOfRange(t *testing.T) {
	b := New()
	logits := rawF32(t, tensor.Shape{1, 3}, []float32{0, 0, 0})
	labels := rawI64(t, tensor.Shape{1}, []int64{3})

	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range label")
		}
	}()
	b.CrossEntropy(logits, labels)
}
