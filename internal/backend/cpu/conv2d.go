package cpu

import (
	"fmt"

	"github.com/foliar-ml/foliar/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [N, C_in, H, W], kernel shape: [C_out, C_in, K_h, K_w],
// output shape: [N, C_out, H_out, W_out] with
// H_out = (H + 2*padding - K_h)/stride + 1 (likewise W_out).
//
// Im2col turns each input patch into a row so the convolution reduces to
// a matrix product between the flattened kernel and the patch matrix.
func (cpu *Backend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}

	n, cIn, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	cOut, kH, kW := kernelShape[0], kernelShape[2], kernelShape[3]

	if cIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", cIn, kernelShape[1]))
	}

	hOut := (h+2*padding-kH)/stride + 1
	wOut := (w+2*padding-kW)/stride + 1
	if hOut <= 0 || wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", hOut, wOut))
	}

	output := tensor.MustNewRaw(tensor.Shape{n, cOut, hOut, wOut}, tensor.Float32, cpu.device)

	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	// Patch matrix: one row per (n, h_out, w_out), one column per kernel weight.
	colWidth := cIn * kH * kW
	colBuf := make([]float32, n*hOut*wOut*colWidth)
	im2col(colBuf, inputData, n, cIn, h, w, kH, kW, hOut, wOut, stride, padding)

	// outputData[n, c, h, w] = kernel[c, :] . colBuf[row(n,h,w), :]
	for batch := 0; batch < n; batch++ {
		for c := 0; c < cOut; c++ {
			kRow := kernelData[c*colWidth : (c+1)*colWidth]
			for pos := 0; pos < hOut*wOut; pos++ {
				row := colBuf[(batch*hOut*wOut+pos)*colWidth : (batch*hOut*wOut+pos+1)*colWidth]
				sum := float32(0)
				for k := range kRow {
					sum += kRow[k] * row[k]
				}
				outputData[batch*cOut*hOut*wOut+c*hOut*wOut+pos] = sum
			}
		}
	}
	return output
}

// im2col flattens every input patch into a row of colBuf.
// Out-of-bounds positions (padding) read as zero.
func im2col(colBuf, inputData []float32, n, c, h, w, kH, kW, hOut, wOut, stride, padding int) {
	colWidth := c * kH * kW
	colIdx := 0

	for batch := 0; batch < n; batch++ {
		for outH := 0; outH < hOut; outH++ {
			for outW := 0; outW < wOut; outW++ {
				hStart := outH*stride - padding
				wStart := outW*stride - padding
				bufIdx := colIdx * colWidth

				for ch := 0; ch < c; ch++ {
					for kh := 0; kh < kH; kh++ {
						for kw := 0; kw < kW; kw++ {
							hPos := hStart + kh
							wPos := wStart + kw
							if hPos >= 0 && hPos < h && wPos >= 0 && wPos < w {
								colBuf[bufIdx] = inputData[batch*c*h*w+ch*h*w+hPos*w+wPos]
							} else {
								colBuf[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}
}
