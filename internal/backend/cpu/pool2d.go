package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/sqnxt/internal/parallel"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Output sizes follow tensor.PoolOutputSize. In ceil mode the last window
// may hang over the input edge; only the in-bounds part of it is considered.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, pool tensor.Pool2D) *tensor.RawTensor {
	output, g := cpu.poolSetup("maxpool2d", input, pool)

	switch input.DType() {
	case tensor.Float32:
		pool2dKernel(output.AsFloat32(), input.AsFloat32(), g, maxWindow[float32], cpu.par)
	case tensor.Float64:
		pool2dKernel(output.AsFloat64(), input.AsFloat64(), g, maxWindow[float64], cpu.par)
	default:
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// AvgPool2D performs 2D average pooling.
//
// Padded positions count as zeros in the average; positions past the padded
// input (possible in ceil mode) do not count.
func (cpu *CPUBackend) AvgPool2D(input *tensor.RawTensor, pool tensor.Pool2D) *tensor.RawTensor {
	output, g := cpu.poolSetup("avgpool2d", input, pool)

	switch input.DType() {
	case tensor.Float32:
		pool2dKernel(output.AsFloat32(), input.AsFloat32(), g, avgWindow[float32], cpu.par)
	case tensor.Float64:
		pool2dKernel(output.AsFloat64(), input.AsFloat64(), g, avgWindow[float64], cpu.par)
	default:
		panic(fmt.Sprintf("avgpool2d: unsupported dtype %s", input.DType()))
	}

	return output
}

// poolGeometry holds the dimensions of one pooling call.
type poolGeometry struct {
	planes, h, w, hOut, wOut int
	pool                     tensor.Pool2D
}

func (cpu *CPUBackend) poolSetup(op string, input *tensor.RawTensor, pool tensor.Pool2D) (*tensor.RawTensor, poolGeometry) {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if pool.KernelSize <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d", op, pool.KernelSize))
	}
	if pool.Stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", op, pool.Stride))
	}
	if pool.Padding < 0 || 2*pool.Padding > pool.KernelSize {
		panic(fmt.Sprintf("%s: padding %d must be in [0, kernel/2]", op, pool.Padding))
	}

	n, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	g := poolGeometry{
		planes: n * c, h: h, w: w,
		hOut: pool.OutputSize(h), wOut: pool.OutputSize(w),
		pool: pool,
	}
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions %dx%d (kernel=%d, stride=%d, input=%dx%d)",
			op, g.hOut, g.wOut, pool.KernelSize, pool.Stride, h, w))
	}

	return cpu.alloc(op, tensor.Shape{n, c, g.hOut, g.wOut}, input.DType()), g
}

// windowFunc reduces the in-bounds rows [h0, h1) x columns [w0, w1) of a plane.
// size is the window area clipped to the padded input.
type windowFunc[T float32 | float64] func(plane []T, width, h0, h1, w0, w1, size int) T

func pool2dKernel[T float32 | float64](output, input []T, g poolGeometry, reduce windowFunc[T], par parallel.Config) {
	p := g.pool
	inPlane := g.h * g.w
	outPlane := g.hOut * g.wOut

	parallel.For(g.planes, func(i int) {
		plane := input[i*inPlane : (i+1)*inPlane]
		out := output[i*outPlane : (i+1)*outPlane]

		for oh := 0; oh < g.hOut; oh++ {
			hStart := oh*p.Stride - p.Padding
			hEnd := min(hStart+p.KernelSize, g.h+p.Padding)
			for ow := 0; ow < g.wOut; ow++ {
				wStart := ow*p.Stride - p.Padding
				wEnd := min(wStart+p.KernelSize, g.w+p.Padding)
				size := (hEnd - hStart) * (wEnd - wStart)

				out[oh*g.wOut+ow] = reduce(plane, g.w,
					max(hStart, 0), min(hEnd, g.h),
					max(wStart, 0), min(wEnd, g.w),
					size)
			}
		}
	}, par.Coarse())
}

func maxWindow[T float32 | float64](plane []T, width, h0, h1, w0, w1, _ int) T {
	best := T(math.Inf(-1))
	for h := h0; h < h1; h++ {
		row := plane[h*width : (h+1)*width]
		for _, v := range row[w0:w1] {
			if v > best {
				best = v
			}
		}
	}
	return best
}

func avgWindow[T float32 | float64](plane []T, width, h0, h1, w0, w1, size int) T {
	var sum T
	for h := h0; h < h1; h++ {
		row := plane[h*width : (h+1)*width]
		for _, v := range row[w0:w1] {
			sum += v
		}
	}
	return sum / T(size)
}
