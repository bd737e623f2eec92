package nn

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// CrossEntropyLoss computes mean softmax cross-entropy for
// classification. The loss is a fused backend operation, so the backward
// pass uses the simplified (softmax - onehot)/batch gradient instead of
// differentiating log and softmax separately.
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a cross-entropy loss module.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward computes the scalar loss from logits (N, numClasses) and
// int64 class labels (N).
func (l *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) *tensor.Tensor[float32, B] {
	raw := l.backend.CrossEntropy(logits.Raw(), targets.Raw())
	return tensor.New[float32, B](raw, l.backend)
}

// CountCorrect returns how many argmax predictions match the targets.
func CountCorrect[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) int {
	preds := logits.Argmax(1)
	predData := preds.Data()
	targetData := targets.Data()
	if len(predData) != len(targetData) {
		panic(fmt.Sprintf("accuracy: %d predictions for %d targets", len(predData), len(targetData)))
	}

	correct := 0
	for i, p := range predData {
		if p == targetData[i] {
			correct++
		}
	}
	return correct
}

// Accuracy returns the fraction of argmax predictions matching the
// targets.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int64, B]) float64 {
	n := targets.NumElements()
	if n == 0 {
		return 0
	}
	return float64(CountCorrect(logits, targets)) / float64(n)
}
