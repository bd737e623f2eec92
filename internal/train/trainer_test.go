package train

import (
	"math"
	"math/rand"
	"testing"

	"github.com/foliar-ml/foliar/internal/autodiff"
	"github.com/foliar-ml/foliar/internal/backend/cpu"
	"github.com/foliar-ml/foliar/internal/data"
	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/optim"
	"github.com/foliar-ml/foliar/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.Backend]

// flatNet is a minimal trainable model: flatten, then one linear layer.
type flatNet struct {
	linear *nn.Linear[testBackend]
}

func newFlatNet(features, classes int, backend testBackend) *flatNet {
	rng := rand.New(rand.NewSource(1))
	return &flatNet{linear: nn.NewLinear("fc", features, classes, rng, backend)}
}

func (m *flatNet) Forward(x *tensor.Tensor[float32, testBackend]) *tensor.Tensor[float32, testBackend] {
	s := x.Shape()
	return m.linear.Forward(x.Reshape(s[0], s[1]*s[2]*s[3]))
}

func (m *flatNet) Parameters() []*nn.Parameter[testBackend] {
	return m.linear.Parameters()
}

func (m *flatNet) SetTraining(bool) {}

func (m *flatNet) CloneStateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, p := range m.Parameters() {
		state[p.Name()] = p.Tensor().Raw().Clone()
	}
	return state
}

func testSets(tb testing.TB, backend testBackend) (data.Source[testBackend], data.Source[testBackend]) {
	tb.Helper()
	trainSet, err := data.NewSynthetic[testBackend](data.SyntheticConfig{
		NumSamples: 12, BatchSize: 4, ImageSize: 8, Seed: 5,
	}, backend)
	if err != nil {
		tb.Fatal(err)
	}
	valSet, err := data.NewSynthetic[testBackend](data.SyntheticConfig{
		NumSamples: 6, BatchSize: 3, ImageSize: 8, Seed: 6,
	}, backend)
	if err != nil {
		tb.Fatal(err)
	}
	return trainSet, valSet
}

func TestTrainerFit(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newFlatNet(3*8*8, 3, backend)
	trainSet, valSet := testSets(t, backend)

	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.01})
	trainer := NewTrainer(backend, optimizer, Config{
		Epochs: 3,
		Logf:   func(string, ...any) {},
	})

	result, err := trainer.Fit(model, trainSet, valSet)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if len(result.History) != 3 {
		t.Fatalf("history has %d epochs, want 3", len(result.History))
	}
	for _, epoch := range result.History {
		if math.IsNaN(epoch.TrainLoss) || math.IsInf(epoch.TrainLoss, 0) {
			t.Errorf("epoch %d: train loss not finite: %v", epoch.Epoch, epoch.TrainLoss)
		}
		if epoch.TrainAcc < 0 || epoch.TrainAcc > 1 {
			t.Errorf("epoch %d: train accuracy %v outside [0,1]", epoch.Epoch, epoch.TrainAcc)
		}
		if epoch.ValAcc < 0 || epoch.ValAcc > 1 {
			t.Errorf("epoch %d: val accuracy %v outside [0,1]", epoch.Epoch, epoch.ValAcc)
		}
	}

	if result.BestState == nil {
		t.Fatal("no best state captured")
	}
	if result.BestEpoch < 0 || result.BestEpoch >= 3 {
		t.Errorf("best epoch %d out of range", result.BestEpoch)
	}
	if result.BestValAcc != result.History[result.BestEpoch].ValAcc {
		t.Errorf("best val acc %v does not match history entry %v",
			result.BestValAcc, result.History[result.BestEpoch].ValAcc)
	}

	// The tape must not leak operations across Fit calls.
	if backend.Tape().NumOps() != 0 {
		t.Errorf("tape holds %d ops after Fit", backend.Tape().NumOps())
	}
	if backend.Tape().IsRecording() {
		t.Error("tape still recording after Fit")
	}
}

func TestTrainerFitReducesLoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newFlatNet(3*8*8, 3, backend)
	trainSet, valSet := testSets(t, backend)

	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.01})
	trainer := NewTrainer(backend, optimizer, Config{
		Epochs: 8,
		Logf:   func(string, ...any) {},
	})

	result, err := trainer.Fit(model, trainSet, valSet)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	first := result.History[0].TrainLoss
	last := result.History[len(result.History)-1].TrainLoss
	if last >= first {
		t.Errorf("train loss did not decrease: %v -> %v", first, last)
	}
}

func TestTrainerSchedulerUpdatesLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newFlatNet(3*8*8, 3, backend)
	trainSet, valSet := testSets(t, backend)

	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.01})
	trainer := NewTrainer(backend, optimizer, Config{
		Epochs:    2,
		Scheduler: StepLR{Base: 0.01, StepSize: 1, Gamma: 0.1},
		Logf:      func(string, ...any) {},
	})

	result, err := trainer.Fit(model, trainSet, valSet)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// After epoch 0 the scheduler sets LR for epoch 1, and so on.
	if got := result.History[0].LR; math.Abs(float64(got)-0.001) > 1e-9 {
		t.Errorf("LR after first epoch = %v, want 0.001", got)
	}
	if got := optimizer.GetLR(); math.Abs(float64(got)-0.0001) > 1e-9 {
		t.Errorf("final LR = %v, want 0.0001", got)
	}
}

// frozenNet counts how often the trainer snapshots its state.
type frozenNet struct {
	*flatNet
	snapshots int
}

func (m *frozenNet) CloneStateDict() map[string]*tensor.RawTensor {
	m.snapshots++
	return m.flatNet.CloneStateDict()
}

func TestTrainerSnapshotRequiresStrictImprovement(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := &frozenNet{flatNet: newFlatNet(3*8*8, 3, backend)}
	trainSet, valSet := testSets(t, backend)

	// A zero learning rate freezes the weights, so validation accuracy
	// stays flat and only the first epoch may set a best snapshot.
	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{})
	optimizer.SetLR(0)
	trainer := NewTrainer(backend, optimizer, Config{
		Epochs: 4,
		Logf:   func(string, ...any) {},
	})

	result, err := trainer.Fit(model, trainSet, valSet)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for _, epoch := range result.History {
		if epoch.ValAcc != result.History[0].ValAcc {
			t.Fatalf("epoch %d: val acc %v moved despite frozen weights", epoch.Epoch, epoch.ValAcc)
		}
	}
	if model.snapshots != 1 {
		t.Errorf("state snapshotted %d times, want 1 (ties must not refresh the best)", model.snapshots)
	}
	if result.BestEpoch != 0 {
		t.Errorf("best epoch = %d, want 0", result.BestEpoch)
	}
}

func TestTrainerEmptyTrainingSet(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newFlatNet(3*8*8, 3, backend)
	_, valSet := testSets(t, backend)

	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{})
	trainer := NewTrainer(backend, optimizer, Config{Epochs: 1, Logf: func(string, ...any) {}})

	_, err := trainer.Fit(model, emptySource{}, valSet)
	if err == nil {
		t.Fatal("expected error for empty training set")
	}
}

type emptySource struct{}

func (emptySource) Batches() []*data.Batch[testBackend] { return nil }
func (emptySource) NumSamples() int                     { return 0 }
