package ops

import (
	"math"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// CrossEntropyOp represents mean softmax cross-entropy between logits
// (N, numClasses) and int64 class labels (N).
//
// Backward uses the fused gradient:
//
//	∂L/∂logits = (softmax(logits) - onehot(labels)) / N
//
// scaled by the incoming scalar gradient. Labels receive no gradient.
type CrossEntropyOp struct {
	logits *tensor.RawTensor
	labels *tensor.RawTensor
	output *tensor.RawTensor
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, labels, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, labels: labels, output: output}
}

// Backward computes the logits gradient.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	n, numClasses := shape[0], shape[1]

	inputGrad := tensor.MustNewRaw(shape, tensor.Float32, op.logits.Device())

	logitsData := op.logits.AsFloat32()
	labelsData := op.labels.AsInt64()
	dst := inputGrad.AsFloat32()
	scale := outputGrad.AsFloat32()[0] / float32(n)

	for i := 0; i < n; i++ {
		row := logitsData[i*numClasses : (i+1)*numClasses]
		out := dst[i*numClasses : (i+1)*numClasses]

		maxV := row[0]
		for _, v := range row[1:] {
			if v > maxV {
				maxV = v
			}
		}
		sum := float32(0)
		for j, v := range row {
			e := float32(math.Exp(float64(v - maxV)))
			out[j] = e
			sum += e
		}
		for j := range out {
			out[j] = out[j] / sum * scale
		}
		out[labelsData[i]] -= scale
	}
	return []*tensor.RawTensor{inputGrad}
}

// Inputs returns the logits tensor; labels are not differentiated.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}
