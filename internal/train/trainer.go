// Package train drives the optimization loop: forward pass, taped
// backward pass, optimizer step, validation, and best-weight tracking.
package train

import (
	"log"
	"math"

	"github.com/pkg/errors"

	"github.com/foliar-ml/foliar/internal/autodiff"
	"github.com/foliar-ml/foliar/internal/data"
	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/optim"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// Model is what the trainer needs from a network.
type Model[B tensor.Backend] interface {
	Forward(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
	SetTraining(bool)
	CloneStateDict() map[string]*tensor.RawTensor
}

// EpochStats records one epoch of the training history.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	TrainAcc  float64
	ValLoss   float64
	ValAcc    float64
	LR        float32
}

// Result is the outcome of a Fit run.
type Result struct {
	History    []EpochStats
	BestValAcc float64
	BestEpoch  int
	// BestState is a deep copy of the model state at the epoch with the
	// highest validation accuracy.
	BestState map[string]*tensor.RawTensor
}

// Config configures a Trainer. Logf defaults to log.Printf; Scheduler
// may be nil to keep the optimizer's learning rate fixed.
type Config struct {
	Epochs    int
	Scheduler LRScheduler
	Logf      func(format string, args ...any)
}

// Trainer runs epochs of gradient descent over an autodiff-wrapped
// backend. The trainer owns tape control: recording is on during the
// training phase and off during validation.
type Trainer[B tensor.Backend] struct {
	backend   *autodiff.AutodiffBackend[B]
	optimizer optim.Optimizer
	config    Config
	logf      func(format string, args ...any)
}

// NewTrainer creates a trainer stepping the given optimizer.
func NewTrainer[B tensor.Backend](backend *autodiff.AutodiffBackend[B], optimizer optim.Optimizer, config Config) *Trainer[B] {
	logf := config.Logf
	if logf == nil {
		logf = log.Printf
	}
	if config.Epochs <= 0 {
		config.Epochs = 1
	}
	return &Trainer[B]{
		backend:   backend,
		optimizer: optimizer,
		config:    config,
		logf:      logf,
	}
}

// Fit trains the model and returns the history plus the best validation
// checkpoint. Training aborts with an error if the loss becomes NaN or
// infinite.
func (t *Trainer[B]) Fit(model Model[*autodiff.AutodiffBackend[B]], trainSet, valSet data.Source[*autodiff.AutodiffBackend[B]]) (*Result, error) {
	loss := nn.NewCrossEntropyLoss(t.backend)

	result := &Result{BestEpoch: -1}
	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		trainLoss, trainAcc, err := t.trainEpoch(model, trainSet, loss)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d", epoch)
		}

		if t.config.Scheduler != nil {
			t.optimizer.SetLR(t.config.Scheduler.LR(epoch + 1))
		}

		valLoss, valAcc, err := t.Evaluate(model, valSet, loss)
		if err != nil {
			return nil, errors.Wrapf(err, "epoch %d validation", epoch)
		}

		result.History = append(result.History, EpochStats{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			TrainAcc:  trainAcc,
			ValLoss:   valLoss,
			ValAcc:    valAcc,
			LR:        t.optimizer.GetLR(),
		})
		t.logf("epoch %d: train loss=%.4f acc=%.4f | val loss=%.4f acc=%.4f | lr=%g",
			epoch, trainLoss, trainAcc, valLoss, valAcc, t.optimizer.GetLR())

		if result.BestEpoch < 0 || valAcc > result.BestValAcc {
			result.BestValAcc = valAcc
			result.BestEpoch = epoch
			result.BestState = model.CloneStateDict()
		}
	}
	return result, nil
}

func (t *Trainer[B]) trainEpoch(model Model[*autodiff.AutodiffBackend[B]], trainSet data.Source[*autodiff.AutodiffBackend[B]], loss *nn.CrossEntropyLoss[*autodiff.AutodiffBackend[B]]) (float64, float64, error) {
	tape := t.backend.Tape()
	model.SetTraining(true)
	tape.StartRecording()
	defer tape.StopRecording()

	var lossSum float64
	correct, total := 0, 0
	for i, batch := range trainSet.Batches() {
		tape.Clear()

		logits := model.Forward(batch.Images)
		batchLoss := loss.Forward(logits, batch.Labels)
		lossVal := float64(batchLoss.Item())
		if math.IsNaN(lossVal) || math.IsInf(lossVal, 0) {
			return 0, 0, errors.Errorf("batch %d: loss diverged (%v)", i, lossVal)
		}

		seed := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, t.backend.Device())
		seed.AsFloat32()[0] = 1
		grads := tape.Backward(seed, t.backend)
		t.optimizer.Step(grads)

		n := batch.Size()
		lossSum += lossVal * float64(n)
		correct += nn.CountCorrect(logits, batch.Labels)
		total += n
	}
	tape.Clear()

	if total == 0 {
		return 0, 0, errors.New("training set is empty")
	}
	return lossSum / float64(total), float64(correct) / float64(total), nil
}

// Evaluate runs the model over a dataset without recording gradients
// and returns mean loss and accuracy.
func (t *Trainer[B]) Evaluate(model Model[*autodiff.AutodiffBackend[B]], set data.Source[*autodiff.AutodiffBackend[B]], loss *nn.CrossEntropyLoss[*autodiff.AutodiffBackend[B]]) (float64, float64, error) {
	tape := t.backend.Tape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	model.SetTraining(false)
	defer model.SetTraining(true)

	var lossSum float64
	correct, total := 0, 0
	for _, batch := range set.Batches() {
		logits := model.Forward(batch.Images)
		lossSum += float64(loss.Forward(logits, batch.Labels).Item()) * float64(batch.Size())
		correct += nn.CountCorrect(logits, batch.Labels)
		total += batch.Size()
	}
	if total == 0 {
		return 0, 0, errors.New("evaluation set is empty")
	}
	return lossSum / float64(total), float64(correct) / float64(total), nil
}
