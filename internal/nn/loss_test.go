package nn

import (
	"math"
	"testing"

	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestCrossEntropyLossForward(t *testing.T) {
	backend := cpu.New()
	loss := NewCrossEntropyLoss(backend)

	logits, err := tensor.FromSlice[float32](
		[]float32{0, 0, 0}, tensor.Shape{1, 3}, backend)
	if err != nil {
		t.Fatal(err)
	}
	labels, err := tensor.FromSlice[int64]([]int64{1}, tensor.Shape{1}, backend)
	if err != nil {
		t.Fatal(err)
	}

	got := float64(loss.Forward(logits, labels).Item())
	if math.Abs(got-math.Log(3)) > 1e-5 {
		t.Errorf("loss = %v, want ln(3)", got)
	}
}

func TestAccuracy(t *testing.T) {
	backend := cpu.New()

	logits, err := tensor.FromSlice[float32]([]float32{
		5, 0, 0, // pred 0
		0, 5, 0, // pred 1
		0, 0, 5, // pred 2
		5, 0, 0, // pred 0
	}, tensor.Shape{4, 3}, backend)
	if err != nil {
		t.Fatal(err)
	}
	labels, err := tensor.FromSlice[int64]([]int64{0, 1, 0, 1}, tensor.Shape{4}, backend)
	if err != nil {
		t.Fatal(err)
	}

	if got := CountCorrect(logits, labels); got != 2 {
		t.Errorf("CountCorrect = %d, want 2", got)
	}
	if got := Accuracy(logits, labels); got != 0.5 {
		t.Errorf("Accuracy = %v, want 0.5", got)
	}
}
