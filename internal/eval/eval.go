// Package eval computes classification metrics for severity grading:
// accuracy, Cohen's kappa, one-vs-rest ROC-AUC, the confusion matrix,
// and a per-class report, plus a confusion heatmap rendering.
package eval

import (
	"github.com/pkg/errors"

	"github.com/foliar-ml/foliar/internal/data"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// DefaultClassNames are the severity grades in label order.
var DefaultClassNames = []string{"Low", "Moderate", "Severe"}

// Model is what the evaluator needs from a network.
type Model[B tensor.Backend] interface {
	Forward(*tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	SetTraining(bool)
}

// Predictions holds everything the metrics need: true labels, argmax
// predictions, and per-sample class probability rows.
type Predictions struct {
	Labels []int64
	Preds  []int64
	Probs  [][]float64
}

// NumSamples returns the number of collected samples.
func (p *Predictions) NumSamples() int {
	return len(p.Labels)
}

// Collect runs the model in evaluation mode over the dataset and
// gathers labels, predictions, and softmax probabilities. The caller is
// responsible for having gradient recording off.
func Collect[B tensor.Backend](model Model[B], set data.Source[B], backend B) (*Predictions, error) {
	model.SetTraining(false)
	defer model.SetTraining(true)

	out := &Predictions{}
	for i, batch := range set.Batches() {
		logits := model.Forward(batch.Images)
		shape := logits.Shape()
		if len(shape) != 2 {
			return nil, errors.Errorf("batch %d: expected 2D logits, got shape %v", i, shape)
		}
		n, numClasses := shape[0], shape[1]

		probs := backend.Softmax(logits.Raw(), 1).AsFloat32()
		preds := backend.Argmax(logits.Raw(), 1).AsInt64()
		labels := batch.Labels.Data()

		for s := 0; s < n; s++ {
			row := make([]float64, numClasses)
			for c := 0; c < numClasses; c++ {
				row[c] = float64(probs[s*numClasses+c])
			}
			out.Probs = append(out.Probs, row)
			out.Preds = append(out.Preds, preds[s])
			out.Labels = append(out.Labels, labels[s])
		}
	}
	if out.NumSamples() == 0 {
		return nil, errors.New("evaluation set is empty")
	}
	return out, nil
}
