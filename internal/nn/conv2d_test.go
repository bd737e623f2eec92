package nn

import (
	"math/rand"
	"testing"

	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestConv2DForwardShape(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	conv := NewConv2D("conv", 3, 8, 3, 1, 1, true, rng, backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 3, 16, 16}, backend)
	out := conv.Forward(input)

	want := tensor.Shape{2, 8, 16, 16}
	if !out.Shape().Equal(want) {
		t.Errorf("output shape = %v, want %v", out.Shape(), want)
	}
}

func TestConv2DStrideHalvesResolution(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	conv := NewConv2D("conv", 1, 4, 7, 2, 3, false, rng, backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 1, 32, 32}, backend)
	out := conv.Forward(input)

	want := tensor.Shape{1, 4, 16, 16}
	if !out.Shape().Equal(want) {
		t.Errorf("output shape = %v, want %v", out.Shape(), want)
	}
}

func TestConv2DBiasApplied(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	conv := NewConv2D("conv", 1, 2, 1, 1, 0, true, rng, backend)

	// Zero weights: output is pure bias.
	weightData := conv.weight.Tensor().Data()
	for i := range weightData {
		weightData[i] = 0
	}
	biasData := conv.bias.Tensor().Data()
	biasData[0], biasData[1] = 3, -2

	input := tensor.Ones[float32](tensor.Shape{1, 1, 2, 2}, backend)
	out := conv.Forward(input).Data()

	want := []float32{3, 3, 3, 3, -2, -2, -2, -2}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("output[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestConv2DParameterNames(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	conv := NewConv2D("stem.conv", 1, 2, 3, 1, 1, true, rng, backend)

	params := conv.Parameters()
	if len(params) != 2 {
		t.Fatalf("got %d parameters, want 2", len(params))
	}
	if params[0].Name() != "stem.conv.weight" || params[1].Name() != "stem.conv.bias" {
		t.Errorf("parameter names = %q, %q", params[0].Name(), params[1].Name())
	}

	noBias := NewConv2D("b", 1, 2, 3, 1, 1, false, rng, backend)
	if len(noBias.Parameters()) != 1 {
		t.Errorf("bias-free conv has %d parameters, want 1", len(noBias.Parameters()))
	}
}
