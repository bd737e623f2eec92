package nn

import (
	"math"
	"testing"

	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestBatchNorm2dTrainingNormalizes(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2d("bn", 1, backend)

	input, err := tensor.FromSlice[float32](
		[]float32{1, 2, 3, 4}, tensor.Shape{2, 1, 1, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := bn.Forward(input).Data()

	var sum float64
	for _, v := range out {
		sum += float64(v)
	}
	if math.Abs(sum/4) > 1e-5 {
		t.Errorf("normalized mean = %v, want ~0", sum/4)
	}
}

func TestBatchNorm2dRunningStatsUpdate(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2d("bn", 1, backend)

	input, err := tensor.FromSlice[float32](
		[]float32{1, 2, 3, 4}, tensor.Shape{2, 1, 1, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	bn.Forward(input)

	// running = 0.9*initial + 0.1*batch; batch mean 2.5, biased var 1.25.
	gotMean := bn.runningMean.AsFloat32()[0]
	gotVar := bn.runningVar.AsFloat32()[0]
	if math.Abs(float64(gotMean)-0.25) > 1e-5 {
		t.Errorf("running mean = %v, want 0.25", gotMean)
	}
	if math.Abs(float64(gotVar)-(0.9+0.125)) > 1e-5 {
		t.Errorf("running var = %v, want 1.025", gotVar)
	}
}

func TestBatchNorm2dEvalUsesRunningStats(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2d("bn", 1, backend)
	bn.SetTraining(false)

	// Freshly initialized running stats are mean 0, var 1: evaluation
	// should be near-identity for gamma=1, beta=0.
	input, err := tensor.FromSlice[float32](
		[]float32{1, -2, 3, -4}, tensor.Shape{2, 1, 1, 2}, backend)
	if err != nil {
		t.Fatal(err)
	}
	out := bn.Forward(input).Data()

	for i, v := range out {
		if math.Abs(float64(v)-float64(input.Data()[i])) > 1e-4 {
			t.Errorf("eval output[%d] = %v, want ~%v", i, v, input.Data()[i])
		}
	}

	// Eval mode must not move the running statistics.
	if bn.runningMean.AsFloat32()[0] != 0 {
		t.Error("evaluation updated running mean")
	}
}

func TestBatchNorm2dStateRoundTrip(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2d("stem.bn", 2, backend)

	input := tensor.Ones[float32](tensor.Shape{1, 2, 2, 2}, backend)
	bn.Forward(input) // move the running stats off their defaults
	bn.gamma.Tensor().Data()[0] = 3

	state := make(map[string]*tensor.RawTensor)
	bn.State(state)
	for _, key := range []string{"stem.bn.gamma", "stem.bn.beta", "stem.bn.running_mean", "stem.bn.running_var"} {
		if _, ok := state[key]; !ok {
			t.Errorf("state missing %q", key)
		}
	}

	restored := NewBatchNorm2d("stem.bn", 2, backend)
	if err := restored.LoadState(state); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if restored.gamma.Tensor().Data()[0] != 3 {
		t.Error("gamma not restored")
	}
	if restored.runningMean.AsFloat32()[0] != bn.runningMean.AsFloat32()[0] {
		t.Error("running mean not restored")
	}
}

func TestBatchNorm2dLoadStateMissingEntry(t *testing.T) {
	backend := cpu.New()
	bn := NewBatchNorm2d("bn", 1, backend)

	if err := bn.LoadState(map[string]*tensor.RawTensor{}); err == nil {
		t.Error("expected error for empty state")
	}
}
