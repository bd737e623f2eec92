package train

// LRScheduler maps a zero-based epoch index to a learning rate.
type LRScheduler interface {
	LR(epoch int) float32
}

// StepLR decays the base learning rate by Gamma every StepSize epochs.
type StepLR struct {
	Base     float32
	StepSize int
	Gamma    float32
}

// LR returns Base * Gamma^(epoch/StepSize).
func (s StepLR) LR(epoch int) float32 {
	if s.StepSize <= 0 {
		return s.Base
	}
	lr := s.Base
	for i := 0; i < epoch/s.StepSize; i++ {
		lr *= s.Gamma
	}
	return lr
}

// ConstantLR always returns the same learning rate.
type ConstantLR float32

// LR returns the constant rate.
func (c ConstantLR) LR(int) float32 {
	return float32(c)
}
