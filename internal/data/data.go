// Package data provides batched image sources for training and
// evaluation.
package data

import (
	"github.com/foliar-ml/foliar/internal/tensor"
)

// Batch pairs an image tensor (N, 3, H, W) with its int64 severity
// labels (N).
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B]
	Labels *tensor.Tensor[int64, B]
}

// Size returns the number of samples in the batch.
func (b *Batch[B]) Size() int {
	return b.Images.Shape()[0]
}

// Source yields a fixed sequence of batches. Implementations own batch
// order; callers iterate the returned slice per epoch.
type Source[B tensor.Backend] interface {
	Batches() []*Batch[B]
	NumSamples() int
}
