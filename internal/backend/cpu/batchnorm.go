package cpu

import (
	"fmt"
	"math"

	"github.com/foliar-ml/foliar/internal/tensor"
)

func batchNormDims(op string, input *tensor.RawTensor) (n, c, h, w int) {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(shape)))
	}
	if input.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, input.DType()))
	}
	return shape[0], shape[1], shape[2], shape[3]
}

// BatchStats2D computes the per-channel mean and biased variance over the
// (N, H, W) axes of a 4D input.
func (cpu *Backend) BatchStats2D(input *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	n, c, h, w := batchNormDims("batch stats", input)

	mean = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)
	variance = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)

	inData := input.AsFloat32()
	meanData := mean.AsFloat32()
	varData := variance.AsFloat32()

	plane := h * w
	count := float32(n * plane)

	for ch := 0; ch < c; ch++ {
		sum := float32(0)
		for batch := 0; batch < n; batch++ {
			row := inData[batch*c*plane+ch*plane : batch*c*plane+(ch+1)*plane]
			for _, v := range row {
				sum += v
			}
		}
		m := sum / count
		meanData[ch] = m

		sqSum := float32(0)
		for batch := 0; batch < n; batch++ {
			row := inData[batch*c*plane+ch*plane : batch*c*plane+(ch+1)*plane]
			for _, v := range row {
				d := v - m
				sqSum += d * d
			}
		}
		varData[ch] = sqSum / count
	}
	return mean, variance
}

// BatchNorm2D normalizes each channel with the supplied statistics and
// applies the affine transform: gamma*(x-mean)/sqrt(var+eps) + beta.
// Callers pass batch statistics during training and running statistics
// during evaluation.
func (cpu *Backend) BatchNorm2D(input, gamma, beta, mean, variance *tensor.RawTensor, eps float32) *tensor.RawTensor {
	n, c, h, w := batchNormDims("batchnorm", input)
	if gamma.NumElements() != c || beta.NumElements() != c || mean.NumElements() != c || variance.NumElements() != c {
		panic(fmt.Sprintf("batchnorm: parameter size mismatch for %d channels", c))
	}

	output := tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)

	inData := input.AsFloat32()
	outData := output.AsFloat32()
	gammaData := gamma.AsFloat32()
	betaData := beta.AsFloat32()
	meanData := mean.AsFloat32()
	varData := variance.AsFloat32()

	plane := h * w
	for ch := 0; ch < c; ch++ {
		scale := gammaData[ch] / float32(math.Sqrt(float64(varData[ch]+eps)))
		shift := betaData[ch] - scale*meanData[ch]
		for batch := 0; batch < n; batch++ {
			off := batch*c*plane + ch*plane
			for i := off; i < off+plane; i++ {
				outData[i] = inData[i]*scale + shift
			}
		}
	}
	return output
}

// BatchNorm2DBackward computes the training-mode batchnorm gradients, where
// mean and variance were computed from this batch and so carry gradient
// themselves:
//
//	dbeta_c  = sum(grad)
//	dgamma_c = sum(grad * xhat)
//	dx = gamma/sqrt(var+eps) * (grad - dbeta/m - xhat*dgamma/m)
func (cpu *Backend) BatchNorm2DBackward(input, gamma, mean, variance, outputGrad *tensor.RawTensor, eps float32) (inputGrad, gammaGrad, betaGrad *tensor.RawTensor) {
	n, c, h, w := batchNormDims("batchnorm backward", input)

	inputGrad = tensor.MustNewRaw(input.Shape(), tensor.Float32, cpu.device)
	gammaGrad = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)
	betaGrad = tensor.MustNewRaw(tensor.Shape{c}, tensor.Float32, cpu.device)

	inData := input.AsFloat32()
	gradData := outputGrad.AsFloat32()
	gammaData := gamma.AsFloat32()
	meanData := mean.AsFloat32()
	varData := variance.AsFloat32()
	inGradData := inputGrad.AsFloat32()
	gammaGradData := gammaGrad.AsFloat32()
	betaGradData := betaGrad.AsFloat32()

	plane := h * w
	m := float32(n * plane)

	for ch := 0; ch < c; ch++ {
		invStd := 1.0 / float32(math.Sqrt(float64(varData[ch]+eps)))
		mu := meanData[ch]

		gradSum := float32(0)
		gradDotXhat := float32(0)
		for batch := 0; batch < n; batch++ {
			off := batch*c*plane + ch*plane
			for i := off; i < off+plane; i++ {
				g := gradData[i]
				gradSum += g
				gradDotXhat += g * (inData[i] - mu) * invStd
			}
		}
		betaGradData[ch] = gradSum
		gammaGradData[ch] = gradDotXhat

		scale := gammaData[ch] * invStd
		for batch := 0; batch < n; batch++ {
			off := batch*c*plane + ch*plane
			for i := off; i < off+plane; i++ {
				xhat := (inData[i] - mu) * invStd
				inGradData[i] = scale * (gradData[i] - gradSum/m - xhat*gradDotXhat/m)
			}
		}
	}
	return inputGrad, gammaGrad, betaGrad
}
