// Package resnext implements the enhanced ResNeXt-50 backbone used for
// leaf disease severity grading: cardinality blocks with Swish
// activations, stochastic pooling in the stem, and a linear severity
// head.
package resnext

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// expansion is the bottleneck widening factor: a block with base width
// w produces w*expansion output channels.
const expansion = 2

// branch is one of the cardinality paths inside a block:
// 1x1 reduce -> 3x3 -> 1x1 expand, each conv followed by batch norm,
// Swish after the first two.
type branch[B tensor.Backend] struct {
	conv1 *nn.Conv2D[B]
	bn1   *nn.BatchNorm2d[B]
	conv2 *nn.Conv2D[B]
	bn2   *nn.BatchNorm2d[B]
	conv3 *nn.Conv2D[B]
	bn3   *nn.BatchNorm2d[B]
	swish *nn.Swish[B]
}

func newBranch[B tensor.Backend](name string, inChannels, groupWidth, branchOut, stride int, rng *rand.Rand, backend B) *branch[B] {
	return &branch[B]{
		conv1: nn.NewConv2D(name+".conv1", inChannels, groupWidth, 1, 1, 0, false, rng, backend),
		bn1:   nn.NewBatchNorm2d(name+".bn1", groupWidth, backend),
		conv2: nn.NewConv2D(name+".conv2", groupWidth, groupWidth, 3, stride, 1, false, rng, backend),
		bn2:   nn.NewBatchNorm2d(name+".bn2", groupWidth, backend),
		conv3: nn.NewConv2D(name+".conv3", groupWidth, branchOut, 1, 1, 0, false, rng, backend),
		bn3:   nn.NewBatchNorm2d(name+".bn3", branchOut, backend),
		swish: nn.NewSwish[B](),
	}
}

func (b *branch[B]) forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := b.swish.Forward(b.bn1.Forward(b.conv1.Forward(input)))
	out = b.swish.Forward(b.bn2.Forward(b.conv2.Forward(out)))
	return b.bn3.Forward(b.conv3.Forward(out))
}

func (b *branch[B]) parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, b.conv1.Parameters()...)
	params = append(params, b.bn1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.bn2.Parameters()...)
	params = append(params, b.conv3.Parameters()...)
	params = append(params, b.bn3.Parameters()...)
	return params
}

func (b *branch[B]) setTraining(training bool) {
	b.bn1.SetTraining(training)
	b.bn2.SetTraining(training)
	b.bn3.SetTraining(training)
}

func (b *branch[B]) batchNorms() []*nn.BatchNorm2d[B] {
	return []*nn.BatchNorm2d[B]{b.bn1, b.bn2, b.bn3}
}

// CardinalityBlock is a ResNeXt bottleneck realized as explicit
// parallel branches. Each of the cardinality branches narrows the input
// to groupWidth channels, convolves, expands, and the branch outputs
// are concatenated along the channel dimension before the residual add
// and the final Swish.
type CardinalityBlock[B tensor.Backend] struct {
	branches []*branch[B]

	// projection maps the identity path when the block changes channel
	// count or spatial resolution; nil means plain identity.
	projConv *nn.Conv2D[B]
	projBN   *nn.BatchNorm2d[B]

	swish       *nn.Swish[B]
	outChannels int
	backend     B
}

// NewCardinalityBlock builds a block taking inChannels and producing
// width*2 channels at 1/stride resolution. Width must be divisible by
// cardinality.
func NewCardinalityBlock[B tensor.Backend](name string, inChannels, width, cardinality, stride int, rng *rand.Rand, backend B) (*CardinalityBlock[B], error) {
	if cardinality <= 0 {
		return nil, errors.Errorf("block %s: cardinality must be positive, got %d", name, cardinality)
	}
	if width%cardinality != 0 {
		return nil, errors.Errorf("block %s: width %d not divisible by cardinality %d", name, width, cardinality)
	}
	if stride != 1 && stride != 2 {
		return nil, errors.Errorf("block %s: stride must be 1 or 2, got %d", name, stride)
	}

	groupWidth := width / cardinality
	outChannels := width * expansion
	branchOut := outChannels / cardinality

	block := &CardinalityBlock[B]{
		branches:    make([]*branch[B], cardinality),
		swish:       nn.NewSwish[B](),
		outChannels: outChannels,
		backend:     backend,
	}
	for i := range block.branches {
		branchName := fmt.Sprintf("%s.branch%d", name, i)
		block.branches[i] = newBranch(branchName, inChannels, groupWidth, branchOut, stride, rng, backend)
	}

	if inChannels != outChannels || stride != 1 {
		block.projConv = nn.NewConv2D(name+".proj", inChannels, outChannels, 1, stride, 0, false, rng, backend)
		block.projBN = nn.NewBatchNorm2d(name+".proj_bn", outChannels, backend)
	}
	return block, nil
}

// Forward runs the block on a (N, C, H, W) activation.
func (b *CardinalityBlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	raws := make([]*tensor.RawTensor, len(b.branches))
	for i, br := range b.branches {
		raws[i] = br.forward(input).Raw()
	}
	merged := tensor.New[float32, B](b.backend.Cat(raws, 1), b.backend)

	identity := input
	if b.projConv != nil {
		identity = b.projBN.Forward(b.projConv.Forward(input))
	}
	return b.swish.Forward(merged.Add(identity))
}

// Parameters returns all learnable parameters of the block.
func (b *CardinalityBlock[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, br := range b.branches {
		params = append(params, br.parameters()...)
	}
	if b.projConv != nil {
		params = append(params, b.projConv.Parameters()...)
		params = append(params, b.projBN.Parameters()...)
	}
	return params
}

// SetTraining switches all batch norm layers between batch statistics
// and running statistics.
func (b *CardinalityBlock[B]) SetTraining(training bool) {
	for _, br := range b.branches {
		br.setTraining(training)
	}
	if b.projBN != nil {
		b.projBN.SetTraining(training)
	}
}

// OutChannels returns the number of output channels.
func (b *CardinalityBlock[B]) OutChannels() int {
	return b.outChannels
}

func (b *CardinalityBlock[B]) batchNorms() []*nn.BatchNorm2d[B] {
	var bns []*nn.BatchNorm2d[B]
	for _, br := range b.branches {
		bns = append(bns, br.batchNorms()...)
	}
	if b.projBN != nil {
		bns = append(bns, b.projBN)
	}
	return bns
}
