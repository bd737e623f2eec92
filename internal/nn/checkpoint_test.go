package nn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/foliar-ml/foliar/internal/tensor"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")

	weight := tensor.MustNewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	copy(weight.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})
	steps := tensor.MustNewRaw(tensor.Shape{1}, tensor.Int64, tensor.CPU)
	steps.AsInt64()[0] = 42

	state := map[string]*tensor.RawTensor{
		"head.weight": weight,
		"steps":       steps,
	}
	if err := SaveState(path, state); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(loaded))
	}

	w := loaded["head.weight"]
	if !w.Shape().Equal(tensor.Shape{2, 3}) || w.DType() != tensor.Float32 {
		t.Fatalf("weight shape %v dtype %v", w.Shape(), w.DType())
	}
	for i, v := range w.AsFloat32() {
		if v != weight.AsFloat32()[i] {
			t.Errorf("weight[%d] = %v, want %v", i, v, weight.AsFloat32()[i])
		}
	}
	if loaded["steps"].AsInt64()[0] != 42 {
		t.Errorf("steps = %d, want 42", loaded["steps"].AsInt64()[0])
	}
}

func TestCheckpointOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.ckpt")

	first := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	first.AsFloat32()[0] = 1
	if err := SaveState(path, map[string]*tensor.RawTensor{"w": first}); err != nil {
		t.Fatal(err)
	}

	second := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	second.AsFloat32()[0] = 2
	if err := SaveState(path, map[string]*tensor.RawTensor{"w": second}); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := loaded["w"].AsFloat32()[0]; got != 2 {
		t.Errorf("slot value = %v, want 2 (latest save)", got)
	}
}

func TestLoadStateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ckpt")
	if err := os.WriteFile(path, []byte("not a checkpoint"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadState(path); err == nil {
		t.Error("expected error for non-checkpoint file")
	}
}

func TestLoadStateMissingFile(t *testing.T) {
	if _, err := LoadState(filepath.Join(t.TempDir(), "absent.ckpt")); err == nil {
		t.Error("expected error for missing file")
	}
}
