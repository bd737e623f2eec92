package resnext

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// Stage layout of the ResNeXt-50 backbone: base widths, block counts,
// and the stride of each stage's first block.
var (
	stageWidths  = [4]int{128, 256, 512, 1024}
	stageBlocks  = [4]int{3, 4, 6, 3}
	stageStrides = [4]int{1, 2, 2, 2}
)

const (
	stemChannels = 64
	imageDepth   = 3
)

// Config holds the model hyperparameters. Zero values take the
// ResNeXt-50 defaults.
type Config struct {
	NumClasses  int // severity grades (default: 3)
	Cardinality int // parallel branches per block (default: 32)
}

// SeverityNet is the enhanced ResNeXt-50 classifier. The stem downsamples
// with a 7x7 convolution and a stochastic pool, four stages of
// cardinality blocks extract features, and a global average pool feeds
// the linear severity head. Forward returns raw logits; softmax is left
// to the loss and the evaluator.
type SeverityNet[B tensor.Backend] struct {
	stemConv *nn.Conv2D[B]
	stemBN   *nn.BatchNorm2d[B]
	stemPool *nn.StochasticPool2d[B]
	swish    *nn.Swish[B]

	stages [4][]*CardinalityBlock[B]

	head *nn.Linear[B]

	numClasses int
	backend    B
}

// NewSeverityNet builds the network with freshly initialized weights
// drawn from rng.
func NewSeverityNet[B tensor.Backend](config Config, rng *rand.Rand, backend B) (*SeverityNet[B], error) {
	if config.NumClasses == 0 {
		config.NumClasses = 3
	}
	if config.Cardinality == 0 {
		config.Cardinality = 32
	}
	if config.NumClasses < 2 {
		return nil, errors.Errorf("severitynet: need at least 2 classes, got %d", config.NumClasses)
	}

	net := &SeverityNet[B]{
		stemConv:   nn.NewConv2D("stem.conv", imageDepth, stemChannels, 7, 2, 3, false, rng, backend),
		stemBN:     nn.NewBatchNorm2d("stem.bn", stemChannels, backend),
		stemPool:   nn.NewStochasticPool2d(rng, backend),
		swish:      nn.NewSwish[B](),
		numClasses: config.NumClasses,
		backend:    backend,
	}

	inChannels := stemChannels
	for s := range net.stages {
		net.stages[s] = make([]*CardinalityBlock[B], stageBlocks[s])
		for i := range net.stages[s] {
			stride := 1
			if i == 0 {
				stride = stageStrides[s]
			}
			name := fmt.Sprintf("stage%d.block%d", s+1, i)
			block, err := NewCardinalityBlock(name, inChannels, stageWidths[s], config.Cardinality, stride, rng, backend)
			if err != nil {
				return nil, err
			}
			net.stages[s][i] = block
			inChannels = block.OutChannels()
		}
	}

	net.head = nn.NewLinear("head", inChannels, config.NumClasses, rng, backend)
	return net, nil
}

// Forward maps a (N, 3, H, W) image batch to (N, numClasses) logits.
func (n *SeverityNet[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := n.swish.Forward(n.stemBN.Forward(n.stemConv.Forward(input)))
	out = n.stemPool.Forward(out)

	for _, stage := range n.stages {
		for _, block := range stage {
			out = block.Forward(out)
		}
	}

	pooled := tensor.New[float32, B](n.backend.GlobalAvgPool2D(out.Raw()), n.backend)
	return n.head.Forward(pooled)
}

// Parameters returns all learnable parameters in layer order.
func (n *SeverityNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, n.stemConv.Parameters()...)
	params = append(params, n.stemBN.Parameters()...)
	for _, stage := range n.stages {
		for _, block := range stage {
			params = append(params, block.Parameters()...)
		}
	}
	params = append(params, n.head.Parameters()...)
	return params
}

// SetTraining switches the model between training and evaluation mode:
// batch norm statistics and the stochastic pool's sampling both depend
// on it.
func (n *SeverityNet[B]) SetTraining(training bool) {
	n.stemBN.SetTraining(training)
	n.stemPool.SetTraining(training)
	for _, stage := range n.stages {
		for _, block := range stage {
			block.SetTraining(training)
		}
	}
}

// NumClasses returns the number of severity grades the head predicts.
func (n *SeverityNet[B]) NumClasses() int {
	return n.numClasses
}

func (n *SeverityNet[B]) batchNorms() []*nn.BatchNorm2d[B] {
	bns := []*nn.BatchNorm2d[B]{n.stemBN}
	for _, stage := range n.stages {
		for _, block := range stage {
			bns = append(bns, block.batchNorms()...)
		}
	}
	return bns
}

// StateDict returns the model's full persistent state: every parameter
// plus the batch norm running statistics, keyed by name. The returned
// tensors alias the live model; clone them before mutating the model.
func (n *SeverityNet[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	for _, param := range n.Parameters() {
		state[param.Name()] = param.Tensor().Raw()
	}
	for _, bn := range n.batchNorms() {
		bn.State(state)
	}
	return state
}

// CloneStateDict returns a deep copy of the model's persistent state,
// safe to keep across further training steps.
func (n *SeverityNet[B]) CloneStateDict() map[string]*tensor.RawTensor {
	state := n.StateDict()
	cloned := make(map[string]*tensor.RawTensor, len(state))
	for name, raw := range state {
		cloned[name] = raw.Clone()
	}
	return cloned
}

// LoadStateDict restores parameters and running statistics from a state
// dict produced by StateDict.
func (n *SeverityNet[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for _, param := range n.Parameters() {
		loaded, ok := state[param.Name()]
		if !ok {
			return errors.Errorf("severitynet: missing state entry %q", param.Name())
		}
		dst := param.Tensor().Raw()
		if !loaded.Shape().Equal(dst.Shape()) {
			return errors.Errorf("severitynet: shape mismatch for %q: %v != %v", param.Name(), loaded.Shape(), dst.Shape())
		}
		copy(dst.Data(), loaded.Data())
	}
	for _, bn := range n.batchNorms() {
		if err := bn.LoadState(state); err != nil {
			return errors.Wrap(err, "severitynet")
		}
	}
	return nil
}
