package train

import (
	"math"
	"testing"
)

func TestStepLRDecay(t *testing.T) {
	s := StepLR{Base: 0.1, StepSize: 2, Gamma: 0.5}

	tests := []struct {
		epoch int
		want  float64
	}{
		{0, 0.1},
		{1, 0.1},
		{2, 0.05},
		{3, 0.05},
		{4, 0.025},
		{6, 0.0125},
	}
	for _, tt := range tests {
		if got := s.LR(tt.epoch); math.Abs(float64(got)-tt.want) > 1e-9 {
			t.Errorf("LR(%d) = %v, want %v", tt.epoch, got, tt.want)
		}
	}
}

func TestStepLRZeroStepSizeIsConstant(t *testing.T) {
	s := StepLR{Base: 0.3}
	for epoch := 0; epoch < 5; epoch++ {
		if got := s.LR(epoch); got != 0.3 {
			t.Errorf("LR(%d) = %v, want 0.3", epoch, got)
		}
	}
}

func TestConstantLR(t *testing.T) {
	s := ConstantLR(0.01)
	if s.LR(0) != 0.01 || s.LR(100) != 0.01 {
		t.Error("ConstantLR should ignore the epoch")
	}
}
