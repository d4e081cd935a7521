package cpu

import (
	"fmt"

	"github.com/born-ml/sqnxt/internal/parallel"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// ChannelAffine computes x*scale[c] + shift[c] over an [N, C, H, W] tensor.
//
// This is the inference form of batch normalization once running statistics
// and the learned affine parameters are folded into one scale and shift.
func (cpu *CPUBackend) ChannelAffine(x, scale, shift *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("channel_affine: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	c := shape[1]
	if scale.NumElements() != c || shift.NumElements() != c {
		panic(fmt.Sprintf("channel_affine: scale %v and shift %v must have %d elements",
			scale.Shape(), shift.Shape(), c))
	}
	if scale.DType() != x.DType() || shift.DType() != x.DType() {
		panic(fmt.Sprintf("channel_affine: dtype mismatch %s/%s/%s", x.DType(), scale.DType(), shift.DType()))
	}

	result := cpu.alloc("channel_affine", shape, x.DType())

	switch x.DType() {
	case tensor.Float32:
		channelAffineKernel(result.AsFloat32(), x.AsFloat32(), scale.AsFloat32(), shift.AsFloat32(), shape, cpu.par)
	case tensor.Float64:
		channelAffineKernel(result.AsFloat64(), x.AsFloat64(), scale.AsFloat64(), shift.AsFloat64(), shape, cpu.par)
	default:
		panic(fmt.Sprintf("channel_affine: unsupported dtype %s", x.DType()))
	}

	return result
}

func channelAffineKernel[T float32 | float64](dst, src, scale, shift []T, shape tensor.Shape, par parallel.Config) {
	c := shape[1]
	plane := shape[2] * shape[3]

	parallel.ForBatch(shape[0], c, func(n, ch int) {
		start := (n*c + ch) * plane
		a, b := scale[ch], shift[ch]
		out := dst[start : start+plane]
		for i, v := range src[start : start+plane] {
			out[i] = v*a + b
		}
	}, par.Coarse())
}

// ChannelMoments returns the mean and biased variance of every channel of an
// [N, C, H, W] tensor, each shaped [C].
//
// Statistics are accumulated in float64 regardless of the tensor dtype.
func (cpu *CPUBackend) ChannelMoments(x *tensor.RawTensor) (mean, variance *tensor.RawTensor) {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("channel_moments: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	c := shape[1]

	mean = cpu.alloc("channel_moments", tensor.Shape{c}, x.DType())
	variance = cpu.alloc("channel_moments", tensor.Shape{c}, x.DType())

	switch x.DType() {
	case tensor.Float32:
		channelMomentsKernel(mean.AsFloat32(), variance.AsFloat32(), x.AsFloat32(), shape, cpu.par)
	case tensor.Float64:
		channelMomentsKernel(mean.AsFloat64(), variance.AsFloat64(), x.AsFloat64(), shape, cpu.par)
	default:
		panic(fmt.Sprintf("channel_moments: unsupported dtype %s", x.DType()))
	}

	return mean, variance
}

func channelMomentsKernel[T float32 | float64](mean, variance, src []T, shape tensor.Shape, par parallel.Config) {
	n, c := shape[0], shape[1]
	plane := shape[2] * shape[3]
	count := float64(n * plane)

	parallel.For(c, func(ch int) {
		sum := 0.0
		for b := 0; b < n; b++ {
			start := (b*c + ch) * plane
			for _, v := range src[start : start+plane] {
				sum += float64(v)
			}
		}
		mu := sum / count

		sq := 0.0
		for b := 0; b < n; b++ {
			start := (b*c + ch) * plane
			for _, v := range src[start : start+plane] {
				d := float64(v) - mu
				sq += d * d
			}
		}

		mean[ch] = T(mu)
		variance[ch] = T(sq / count)
	}, par.Coarse())
}
