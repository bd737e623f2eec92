package resnext

import (
	"math"
	"math/rand"
	"testing"

	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/tensor"
)

func smallNet(tb testing.TB) (*SeverityNet[*cpu.Backend], *cpu.Backend) {
	tb.Helper()
	backend := cpu.New()
	rng := rand.New(rand.NewSource(42))
	net, err := NewSeverityNet[*cpu.Backend](Config{Cardinality: 4}, rng, backend)
	if err != nil {
		tb.Fatal(err)
	}
	return net, backend
}

func TestSeverityNetForwardShape(t *testing.T) {
	net, backend := smallNet(t)
	net.SetTraining(false)

	input := tensor.Zeros[float32](tensor.Shape{2, 3, 32, 32}, backend)
	out := net.Forward(input)

	want := tensor.Shape{2, 3}
	if !out.Shape().Equal(want) {
		t.Fatalf("logits shape = %v, want %v", out.Shape(), want)
	}
	for i, v := range out.Data() {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("logit %d is not finite: %v", i, v)
		}
	}
}

func TestSeverityNetConfigDefaults(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	net, err := NewSeverityNet[*cpu.Backend](Config{Cardinality: 4}, rng, backend)
	if err != nil {
		t.Fatal(err)
	}
	if net.NumClasses() != 3 {
		t.Errorf("default NumClasses = %d, want 3", net.NumClasses())
	}

	if _, err := NewSeverityNet[*cpu.Backend](Config{NumClasses: 1, Cardinality: 4}, rng, backend); err == nil {
		t.Error("expected error for single-class config")
	}
}

func TestSeverityNetStageLayout(t *testing.T) {
	net, _ := smallNet(t)

	wantBlocks := [4]int{3, 4, 6, 3}
	wantChannels := [4]int{256, 512, 1024, 2048}
	for s, stage := range net.stages {
		if len(stage) != wantBlocks[s] {
			t.Errorf("stage %d has %d blocks, want %d", s+1, len(stage), wantBlocks[s])
		}
		if got := stage[len(stage)-1].OutChannels(); got != wantChannels[s] {
			t.Errorf("stage %d output channels = %d, want %d", s+1, got, wantChannels[s])
		}
	}
}

func TestSeverityNetParameterNamesUnique(t *testing.T) {
	net, _ := smallNet(t)

	seen := make(map[string]bool)
	for _, p := range net.Parameters() {
		if seen[p.Name()] {
			t.Fatalf("duplicate parameter name %q", p.Name())
		}
		seen[p.Name()] = true
	}
	if len(seen) == 0 {
		t.Fatal("model has no parameters")
	}
}

func TestSeverityNetStateDictRoundTrip(t *testing.T) {
	net, _ := smallNet(t)

	snapshot := net.CloneStateDict()

	// Perturb every parameter, then restore.
	for _, p := range net.Parameters() {
		data := p.Tensor().Data()
		for i := range data {
			data[i] += 1
		}
	}
	if err := net.LoadStateDict(snapshot); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	for _, p := range net.Parameters() {
		want := snapshot[p.Name()].AsFloat32()
		got := p.Tensor().Data()
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("parameter %q not restored at %d: %v != %v", p.Name(), i, got[i], want[i])
			}
		}
	}
}

func TestSeverityNetLoadStateDictMissingEntry(t *testing.T) {
	net, _ := smallNet(t)

	if err := net.LoadStateDict(map[string]*tensor.RawTensor{}); err == nil {
		t.Error("expected error for empty state dict")
	}
}

func TestSeverityNetCloneStateDictIsDeep(t *testing.T) {
	net, _ := smallNet(t)

	snapshot := net.CloneStateDict()
	param := net.Parameters()[0]
	before := snapshot[param.Name()].AsFloat32()[0]

	param.Tensor().Data()[0] = before + 100
	if snapshot[param.Name()].AsFloat32()[0] != before {
		t.Error("CloneStateDict aliases live parameters")
	}
}
