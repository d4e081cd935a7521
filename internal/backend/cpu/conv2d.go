package cpu

import (
	"fmt"

	"github.com/born-ml/sqnxt/internal/parallel"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Stride and padding are given per axis as {height, width}, so rectangular
// kernels such as 1x3 with padding (0, 1) are supported.
//
// Algorithm, per image:
//  1. Unfold input patches into a column matrix [C_in*K_h*K_w, H_out*W_out]
//  2. GEMM: kernel [C_out, C_in*K_h*K_w] @ columns -> [C_out, H_out*W_out]
//
// The GEMM result is already in NCHW order, so no rearrangement is needed.
// A 1x1 kernel with unit stride and no padding skips the unfold entirely.
// Images of a batch are processed in parallel.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding [2]int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if input.DType() != kernel.DType() {
		panic(fmt.Sprintf("conv2d: dtype mismatch input %s vs kernel %s", input.DType(), kernel.DType()))
	}
	if stride[0] <= 0 || stride[1] <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %v", stride))
	}

	g := convGeometry{
		n: inputShape[0], cIn: inputShape[1], h: inputShape[2], w: inputShape[3],
		cOut: kernelShape[0], kh: kernelShape[2], kw: kernelShape[3],
		stride: stride, padding: padding,
	}

	if g.cIn != kernelShape[1] {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", g.cIn, kernelShape[1]))
	}

	g.hOut = tensor.ConvOutputSize(g.h, g.kh, stride[0], padding[0])
	g.wOut = tensor.ConvOutputSize(g.w, g.kw, stride[1], padding[1])
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.hOut, g.wOut))
	}

	output := cpu.alloc("conv2d", tensor.Shape{g.n, g.cOut, g.hOut, g.wOut}, input.DType())

	switch input.DType() {
	case tensor.Float32:
		conv2dKernel(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.par)
	case tensor.Float64:
		conv2dKernel(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), g, cpu.par)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// convGeometry holds the dimensions of one convolution call.
type convGeometry struct {
	n, cIn, h, w    int
	cOut, kh, kw    int
	hOut, wOut      int
	stride, padding [2]int
}

// pointwise reports whether the unfolded columns equal the input image.
func (g convGeometry) pointwise() bool {
	return g.kh == 1 && g.kw == 1 &&
		g.stride == [2]int{1, 1} && g.padding == [2]int{0, 0}
}

func conv2dKernel[T float32 | float64](output, input, kernel []T, g convGeometry, par parallel.Config) {
	inPlane := g.cIn * g.h * g.w
	outPlane := g.cOut * g.hOut * g.wOut
	colRows := g.cIn * g.kh * g.kw
	colCols := g.hOut * g.wOut

	parallel.For(g.n, func(n int) {
		img := input[n*inPlane : (n+1)*inPlane]
		out := output[n*outPlane : (n+1)*outPlane]

		cols := img
		if !g.pointwise() {
			cols = make([]T, colRows*colCols)
			im2col(cols, img, g)
		}
		gemm(g.cOut, colCols, colRows, kernel, cols, out)
	}, par.Coarse())
}

// im2col unfolds one [C, H, W] image into cols [C*K_h*K_w, H_out*W_out].
//
// Row (c, kh, kw) of cols holds, for every output position, the input value
// that kernel tap multiplies; positions falling into the padding are zero.
func im2col[T float32 | float64](cols, img []T, g convGeometry) {
	colCols := g.hOut * g.wOut
	row := 0
	for c := 0; c < g.cIn; c++ {
		plane := img[c*g.h*g.w : (c+1)*g.h*g.w]
		for kh := 0; kh < g.kh; kh++ {
			for kw := 0; kw < g.kw; kw++ {
				dst := cols[row*colCols : (row+1)*colCols]
				for oh := 0; oh < g.hOut; oh++ {
					ih := oh*g.stride[0] - g.padding[0] + kh
					dstRow := dst[oh*g.wOut : (oh+1)*g.wOut]
					if ih < 0 || ih >= g.h {
						clear(dstRow)
						continue
					}
					src := plane[ih*g.w : (ih+1)*g.w]
					for ow := range dstRow {
						iw := ow*g.stride[1] - g.padding[1] + kw
						if iw < 0 || iw >= g.w {
							dstRow[ow] = 0
						} else {
							dstRow[ow] = src[iw]
						}
					}
				}
				row++
			}
		}
	}
}
