package cpu

import (
	"fmt"
	"math"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// CrossEntropy computes mean softmax cross-entropy between logits
// (N, numClasses) and int64 class labels (N). Returns a scalar tensor.
// Log-sum-exp is computed with the row max subtracted for stability.
func (cpu *Backend) CrossEntropy(logits, labels *tensor.RawTensor) *tensor.RawTensor {
	logitsShape := logits.Shape()
	if len(logitsShape) != 2 {
		panic(fmt.Sprintf("cross entropy: logits must be 2D [N,classes], got %v", logitsShape))
	}
	if labels.DType() != tensor.Int64 {
		panic(fmt.Sprintf("cross entropy: labels must be int64, got %s", labels.DType()))
	}

	n, numClasses := logitsShape[0], logitsShape[1]
	if labels.NumElements() != n {
		panic(fmt.Sprintf("cross entropy: %d labels for %d rows", labels.NumElements(), n))
	}

	logitsData := logits.AsFloat32()
	labelsData := labels.AsInt64()

	total := 0.0
	for i := 0; i < n; i++ {
		row := logitsData[i*numClasses : (i+1)*numClasses]
		label := labelsData[i]
		if label < 0 || label >= int64(numClasses) {
			panic(fmt.Sprintf("cross entropy: label %d out of range [0,%d)", label, numClasses))
		}

		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxV))
		}
		// -log softmax(label) = logsumexp - logit[label]
		total += math.Log(sumExp) + float64(maxV) - float64(row[label])
	}

	result := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, cpu.device)
	result.AsFloat32()[0] = float32(total / float64(n))
	return result
}
