package optim

import (
	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
// Update rule:
//
//	v_t = momentum * v_{t-1} + gradient
//	param = param - lr * v_t
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]][]float32
}

// SGDConfig holds configuration for the SGD optimizer.
type SGDConfig struct {
	LR       float32 // learning rate (default: 0.01)
	Momentum float32 // momentum coefficient (default: 0, plain SGD)
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]][]float32),
	}
}

// Step applies the SGD update to all parameters.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		gradData := grad.AsFloat32()
		paramData := param.Tensor().Raw().AsFloat32()

		if s.momentum == 0 {
			for i := range paramData {
				paramData[i] -= s.lr * gradData[i]
			}
			continue
		}

		v, ok := s.velocities[param]
		if !ok {
			v = make([]float32, len(paramData))
			s.velocities[param] = v
		}
		for i := range paramData {
			v[i] = s.momentum*v[i] + gradData[i]
			paramData[i] -= s.lr * v[i]
		}
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}
