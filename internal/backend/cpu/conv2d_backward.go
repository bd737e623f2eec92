package cpu

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Conv2DInputBackward computes the convolution gradient w.r.t. the input
// (a transposed convolution): every output gradient value is scattered back
// to the input positions its patch covered, weighted by the kernel.
func (cpu *Backend) Conv2DInputBackward(outputGrad, kernel *tensor.RawTensor, inputShape tensor.Shape, stride, padding int) *tensor.RawTensor {
	kernelShape := kernel.Shape()
	gradShape := outputGrad.Shape()

	if len(inputShape) != 4 || len(kernelShape) != 4 || len(gradShape) != 4 {
		panic("conv2d input backward: tensors must be 4D")
	}

	n, cIn, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	cOut, kH, kW := kernelShape[0], kernelShape[2], kernelShape[3]
	hOut, wOut := gradShape[2], gradShape[3]

	inputGrad := tensor.MustNewRaw(inputShape, tensor.Float32, cpu.device)
	inputGradData := inputGrad.AsFloat32()
	gradData := outputGrad.AsFloat32()
	kernelData := kernel.AsFloat32()

	for batch := 0; batch < n; batch++ {
		inGradBatch := inputGradData[batch*cIn*h*w : (batch+1)*cIn*h*w]
		gradBatch := gradData[batch*cOut*hOut*wOut : (batch+1)*cOut*hOut*wOut]

		for outChan := 0; outChan < cOut; outChan++ {
			kernelCOut := kernelData[outChan*cIn*kH*kW : (outChan+1)*cIn*kH*kW]
			for outH := 0; outH < hOut; outH++ {
				for outW := 0; outW < wOut; outW++ {
					gradVal := gradBatch[outChan*hOut*wOut+outH*wOut+outW]
					if gradVal == 0 {
						continue
					}
					for inChan := 0; inChan < cIn; inChan++ {
						inGradCIn := inGradBatch[inChan*h*w : (inChan+1)*h*w]
						kernelCIn := kernelCOut[inChan*kH*kW : (inChan+1)*kH*kW]
						for kh := 0; kh < kH; kh++ {
							hPos := outH*stride - padding + kh
							if hPos < 0 || hPos >= h {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								wPos := outW*stride - padding + kw
								if wPos < 0 || wPos >= w {
									continue
								}
								inGradCIn[hPos*w+wPos] += gradVal * kernelCIn[kh*kW+kw]
							}
						}
					}
				}
			}
		}
	}
	return inputGrad
}

// Conv2DKernelBackward computes the convolution gradient w.r.t. the kernel:
// each kernel weight accumulates input*outputGrad over every batch sample
// and output position where the weight touched the input.
func (cpu *Backend) Conv2DKernelBackward(input, outputGrad *tensor.RawTensor, kernelShape tensor.Shape, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	gradShape := outputGrad.Shape()

	if len(inputShape) != 4 || len(kernelShape) != 4 || len(gradShape) != 4 {
		panic("conv2d kernel backward: tensors must be 4D")
	}

	n, cIn, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	cOut, kH, kW := kernelShape[0], kernelShape[2], kernelShape[3]
	hOut, wOut := gradShape[2], gradShape[3]

	if kernelShape[1] != cIn {
		panic(fmt.Sprintf("conv2d kernel backward: kernel channels %d != input channels %d", kernelShape[1], cIn))
	}

	kernelGrad := tensor.MustNewRaw(kernelShape, tensor.Float32, cpu.device)
	kernelGradData := kernelGrad.AsFloat32()
	gradData := outputGrad.AsFloat32()
	inputData := input.AsFloat32()

	for outChan := 0; outChan < cOut; outChan++ {
		for inChan := 0; inChan < cIn; inChan++ {
			for kh := 0; kh < kH; kh++ {
				for kw := 0; kw < kW; kw++ {
					sum := float32(0)
					for batch := 0; batch < n; batch++ {
						inputCIn := inputData[batch*cIn*h*w+inChan*h*w : batch*cIn*h*w+(inChan+1)*h*w]
						gradCOut := gradData[batch*cOut*hOut*wOut+outChan*hOut*wOut : batch*cOut*hOut*wOut+(outChan+1)*hOut*wOut]
						for outH := 0; outH < hOut; outH++ {
							hPos := outH*stride - padding + kh
							if hPos < 0 || hPos >= h {
								continue
							}
							for outW := 0; outW < wOut; outW++ {
								wPos := outW*stride - padding + kw
								if wPos < 0 || wPos >= w {
									continue
								}
								sum += inputCIn[hPos*w+wPos] * gradCOut[outH*wOut+outW]
							}
						}
					}
					kernelGradData[outChan*cIn*kH*kW+inChan*kH*kW+kh*kW+kw] = sum
				}
			}
		}
	}
	return kernelGrad
}
