package optim

import (
	"math"

	"github.com/foliar-ml/foliar/internal/nn"
	"github.com/foliar-ml/foliar/internal/tensor"
)

// Adam implements the Adam optimizer with an L2 weight-decay term.
//
// Update rule:
//
//	g_t = gradient + weight_decay * param
//	m_t = beta1 * m_{t-1} + (1-beta1) * g_t
//	v_t = beta2 * v_{t-1} + (1-beta2) * g_t²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// The weight decay folds into the gradient before the moment updates,
// matching the classic L2-regularized formulation. Reference: "Adam: A
// Method for Stochastic Optimization" (Kingma & Ba, 2014).
type Adam[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	t           int
	m           map[*nn.Parameter[B]][]float32
	v           map[*nn.Parameter[B]][]float32
}

// AdamConfig holds configuration for the Adam optimizer. Zero values
// take the usual defaults; WeightDecay defaults to 0 (no decay).
type AdamConfig struct {
	LR          float32    // learning rate (default: 0.001)
	Betas       [2]float32 // moment coefficients (default: [0.9, 0.999])
	Eps         float32    // numerical stability term (default: 1e-8)
	WeightDecay float32    // L2 penalty coefficient (default: 0)
}

// NewAdam creates a new Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:      params,
		lr:          config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[*nn.Parameter[B]][]float32),
		v:           make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single Adam update over all parameters.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		gradData := grad.AsFloat32()
		paramData := param.Tensor().Raw().AsFloat32()

		m, ok := a.m[param]
		if !ok {
			m = make([]float32, len(paramData))
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, len(paramData))
			a.v[param] = v
		}

		for i := range paramData {
			g := gradData[i] + a.weightDecay*paramData[i]

			m[i] = a.beta1*m[i] + (1.0-a.beta1)*g
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*g*g

			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2

			paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// WeightDecay returns the configured L2 penalty coefficient.
func (a *Adam[B]) WeightDecay() float32 {
	return a.weightDecay
}
