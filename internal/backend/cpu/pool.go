package cpu

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// poolDims validates a 4D input for 2x2 pooling and returns its dimensions
// plus the pooled height/width. Odd trailing rows and columns are dropped.
func poolDims(op string, input *tensor.RawTensor) (n, c, h, w, hOut, wOut int) {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(shape)))
	}
	if input.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, input.DType()))
	}
	n, c, h, w = shape[0], shape[1], shape[2], shape[3]
	hOut, wOut = h/2, w/2
	if hOut == 0 || wOut == 0 {
		panic(fmt.Sprintf("%s: input %dx%d too small for 2x2 pooling", op, h, w))
	}
	return n, c, h, w, hOut, wOut
}

// cellProbs computes the softmax distribution over one 2x2 cell.
// The max is subtracted before exponentiation for numerical stability.
func cellProbs(vals *[4]float32) [4]float32 {
	maxV := vals[0]
	for _, v := range vals[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var probs [4]float32
	sum := float32(0)
	for i, v := range vals {
		p := float32(math.Exp(float64(v - maxV)))
		probs[i] = p
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// cellIndices returns the four flat source indices of the 2x2 cell with
// top-left corner (2*outH, 2*outW) inside channel plane (base, w).
func cellIndices(base, w, outH, outW int) [4]int {
	top := base + (2*outH)*w + 2*outW
	return [4]int{top, top + 1, top + w, top + w + 1}
}

// StochasticPool2D pools non-overlapping 2x2 cells by sampling one element
// per cell from the cell's softmax distribution. Returns the pooled tensor
// and the flat source index of the sampled element for each output element;
// the backward pass routes gradients through those indices.
func (cpu *Backend) StochasticPool2D(input *tensor.RawTensor, rng *rand.Rand) (*tensor.RawTensor, []int) {
	n, c, h, w, hOut, wOut := poolDims("stochastic pool", input)

	output := tensor.MustNewRaw(tensor.Shape{n, c, hOut, wOut}, tensor.Float32, cpu.device)
	indices := make([]int, n*c*hOut*wOut)

	inData := input.AsFloat32()
	outData := output.AsFloat32()

	outIdx := 0
	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < c; ch++ {
			base := batch*c*h*w + ch*h*w
			for outH := 0; outH < hOut; outH++ {
				for outW := 0; outW < wOut; outW++ {
					src := cellIndices(base, w, outH, outW)
					vals := [4]float32{inData[src[0]], inData[src[1]], inData[src[2]], inData[src[3]]}
					probs := cellProbs(&vals)

					// Categorical draw over the cell.
					r := float32(rng.Float64())
					pick := 3
					acc := float32(0)
					for i := 0; i < 3; i++ {
						acc += probs[i]
						if r < acc {
							pick = i
							break
						}
					}

					outData[outIdx] = vals[pick]
					indices[outIdx] = src[pick]
					outIdx++
				}
			}
		}
	}
	return output, indices
}

// StochasticPool2DExpected pools non-overlapping 2x2 cells by the
// probability-weighted mean of each cell, the deterministic form used at
// evaluation time.
func (cpu *Backend) StochasticPool2DExpected(input *tensor.RawTensor) *tensor.RawTensor {
	n, c, h, w, hOut, wOut := poolDims("stochastic pool", input)

	output := tensor.MustNewRaw(tensor.Shape{n, c, hOut, wOut}, tensor.Float32, cpu.device)

	inData := input.AsFloat32()
	outData := output.AsFloat32()

	outIdx := 0
	for batch := 0; batch < n; batch++ {
		for ch := 0; ch < c; ch++ {
			base := batch*c*h*w + ch*h*w
			for outH := 0; outH < hOut; outH++ {
				for outW := 0; outW < wOut; outW++ {
					src := cellIndices(base, w, outH, outW)
					vals := [4]float32{inData[src[0]], inData[src[1]], inData[src[2]], inData[src[3]]}
					probs := cellProbs(&vals)

					expected := float32(0)
					for i, v := range vals {
						expected += probs[i] * v
					}
					outData[outIdx] = expected
					outIdx++
				}
			}
		}
	}
	return output
}

// Pool2DBackward routes each output gradient element to the input position
// it was sampled from. srcIndices must come from the matching forward call.
func (cpu *Backend) Pool2DBackward(outputGrad *tensor.RawTensor, inputShape tensor.Shape, srcIndices []int) *tensor.RawTensor {
	if outputGrad.NumElements() != len(srcIndices) {
		panic(fmt.Sprintf("pool backward: %d gradient elements but %d source indices",
			outputGrad.NumElements(), len(srcIndices)))
	}

	inputGrad := tensor.MustNewRaw(inputShape, tensor.Float32, cpu.device)
	inGradData := inputGrad.AsFloat32()
	gradData := outputGrad.AsFloat32()

	for i, src := range srcIndices {
		inGradData[src] += gradData[i]
	}
	return inputGrad
}

// GlobalAvgPool2D averages each channel plane: (N,C,H,W) -> (N,C).
func (cpu *Backend) GlobalAvgPool2D(input *tensor.RawTensor) *tensor.RawTensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("global avg pool: input must be 4D [N,C,H,W], got %dD", len(shape)))
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]

	output := tensor.MustNewRaw(tensor.Shape{n, c}, tensor.Float32, cpu.device)
	inData := input.AsFloat32()
	outData := output.AsFloat32()

	plane := h * w
	inv := 1.0 / float32(plane)
	for i := 0; i < n*c; i++ {
		sum := float32(0)
		for _, v := range inData[i*plane : (i+1)*plane] {
			sum += v
		}
		outData[i] = sum * inv
	}
	return output
}

// GlobalAvgPool2DBackward spreads each (N,C) gradient uniformly over the
// corresponding channel plane.
func (cpu *Backend) GlobalAvgPool2DBackward(outputGrad *tensor.RawTensor, inputShape tensor.Shape) *tensor.RawTensor {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("global avg pool backward: input shape must be 4D, got %dD", len(inputShape)))
	}
	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	inputGrad := tensor.MustNewRaw(inputShape, tensor.Float32, cpu.device)
	inGradData := inputGrad.AsFloat32()
	gradData := outputGrad.AsFloat32()

	plane := h * w
	inv := 1.0 / float32(plane)
	for i := 0; i < n*c; i++ {
		g := gradData[i] * inv
		row := inGradData[i*plane : (i+1)*plane]
		for j := range row {
			row[j] = g
		}
	}
	return inputGrad
}
