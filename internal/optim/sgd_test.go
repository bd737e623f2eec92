package optim

import (
	"math"
	"testing"

	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/tensor"
)

func paramWithValues(tb testing.TB, name string, values []float32) *nn.Parameter[*cpu.Backend] {
	tb.Helper()
	backend := cpu.New()
	t, err := tensor.FromSlice[float32](values, tensor.Shape{len(values)}, backend)
	if err != nil {
		tb.Fatal(err)
	}
	return nn.NewParameter(name, t)
}

func gradFor(param *nn.Parameter[*cpu.Backend], values []float32) map[*tensor.RawTensor]*tensor.RawTensor {
	grad := tensor.MustNewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	copy(grad.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): grad}
}

func TestSGDStep(t *testing.T) {
	param := paramWithValues(t, "w", []float32{1, 2})
	sgd := NewSGD([]*nn.Parameter[*cpu.Backend]{param}, SGDConfig{LR: 0.1})

	sgd.Step(gradFor(param, []float32{1, -1}))

	got := param.Tensor().Data()
	want := []float32{0.9, 2.1}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("param[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	param := paramWithValues(t, "w", []float32{0})
	sgd := NewSGD([]*nn.Parameter[*cpu.Backend]{param}, SGDConfig{LR: 1, Momentum: 0.5})

	// Step 1: v=1, param=-1. Step 2: v=1.5, param=-2.5.
	sgd.Step(gradFor(param, []float32{1}))
	sgd.Step(gradFor(param, []float32{1}))

	if got := param.Tensor().Data()[0]; math.Abs(float64(got+2.5)) > 1e-6 {
		t.Errorf("param after two momentum steps = %v, want -2.5", got)
	}
}

func TestSGDSkipsParamsWithoutGradient(t *testing.T) {
	param := paramWithValues(t, "w", []float32{5})
	sgd := NewSGD([]*nn.Parameter[*cpu.Backend]{param}, SGDConfig{LR: 0.1})

	sgd.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	if got := param.Tensor().Data()[0]; got != 5 {
		t.Errorf("param moved without gradient: %v", got)
	}
}

func TestSGDSetLR(t *testing.T) {
	sgd := NewSGD[*cpu.Backend](nil, SGDConfig{})
	if sgd.GetLR() != 0.01 {
		t.Errorf("default lr = %v, want 0.01", sgd.GetLR())
	}
	sgd.SetLR(0.5)
	if sgd.GetLR() != 0.5 {
		t.Errorf("lr after SetLR = %v, want 0.5", sgd.GetLR())
	}
}
