package resnext

import (
	"math/rand"
	"testing"

	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestCardinalityBlockOutputShape(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	block, err := NewCardinalityBlock("b", 64, 128, 4, 1, rng, backend)
	if err != nil {
		t.Fatal(err)
	}
	if block.OutChannels() != 256 {
		t.Fatalf("OutChannels = %d, want 256", block.OutChannels())
	}

	input := tensor.Zeros[float32](tensor.Shape{1, 64, 8, 8}, backend)
	out := block.Forward(input)

	want := tensor.Shape{1, 256, 8, 8}
	if !out.Shape().Equal(want) {
		t.Errorf("output shape = %v, want %v", out.Shape(), want)
	}
}

func TestCardinalityBlockStrideHalvesResolution(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	block, err := NewCardinalityBlock("b", 256, 256, 4, 2, rng, backend)
	if err != nil {
		t.Fatal(err)
	}

	input := tensor.Zeros[float32](tensor.Shape{1, 256, 8, 8}, backend)
	out := block.Forward(input)

	want := tensor.Shape{1, 512, 4, 4}
	if !out.Shape().Equal(want) {
		t.Errorf("output shape = %v, want %v", out.Shape(), want)
	}
}

func TestCardinalityBlockIdentityPath(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	// Matching channels and stride 1: no projection layer.
	block, err := NewCardinalityBlock("b", 256, 128, 4, 1, rng, backend)
	if err != nil {
		t.Fatal(err)
	}
	if block.projConv != nil {
		t.Error("block with matching shape should have no projection")
	}

	// Channel change forces a projection.
	projected, err := NewCardinalityBlock("b2", 64, 128, 4, 1, rng, backend)
	if err != nil {
		t.Fatal(err)
	}
	if projected.projConv == nil {
		t.Error("block changing channel count should project the identity")
	}
}

func TestCardinalityBlockInvalidConfig(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	if _, err := NewCardinalityBlock("b", 64, 100, 3, 1, rng, backend); err == nil {
		t.Error("expected error for width not divisible by cardinality")
	}
	if _, err := NewCardinalityBlock("b", 64, 128, 0, 1, rng, backend); err == nil {
		t.Error("expected error for zero cardinality")
	}
	if _, err := NewCardinalityBlock("b", 64, 128, 4, 3, rng, backend); err == nil {
		t.Error("expected error for unsupported stride")
	}
}

func TestCardinalityBlockParameterCount(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	block, err := NewCardinalityBlock("b", 64, 128, 4, 1, rng, backend)
	if err != nil {
		t.Fatal(err)
	}

	// 4 branches x (3 convs + 3 batchnorms with 2 params each) = 36,
	// plus the projection conv and its batchnorm: 39.
	if got := len(block.Parameters()); got != 39 {
		t.Errorf("parameter count = %d, want 39", got)
	}

	seen := make(map[string]bool)
	for _, p := range block.Parameters() {
		if seen[p.Name()] {
			t.Errorf("duplicate parameter name %q", p.Name())
		}
		seen[p.Name()] = true
	}
}
