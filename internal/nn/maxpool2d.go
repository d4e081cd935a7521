package nn

import (
	"fmt"

	"github.com/born-ml/sqnxt/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Max pooling reduces spatial dimensions by taking the maximum value
// in each window. Like every pooling layer it has no learnable parameters.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where (floor mode):
//
//	out = (in + 2*padding - kernelSize) / stride + 1
//
// In ceil mode the division rounds up, so a trailing partial window is kept
// as long as it starts inside the input or its left padding.
//
// Example:
//
//	// 3x3 overlapping pooling with stride 2, ceil mode
//	pool := nn.NewMaxPool2D(3, 2, 0, true, backend)
//
//	input := tensor.Randn[float32](tensor.Shape{1, 64, 110, 110}, backend)
//	output := pool.Forward(input) // [1, 64, 55, 55]
type MaxPool2D[B tensor.Backend] struct {
	pooling[B]
}

// NewMaxPool2D creates a new 2D max pooling layer.
//
// Parameters:
//   - kernelSize: Size of pooling window (square)
//   - stride: Stride for pooling
//   - padding: Implicit padding on every side, at most kernelSize/2
//   - ceilMode: Round the output size up instead of down
//   - backend: Backend for computation
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, ceilMode bool, backend B) *MaxPool2D[B] {
	return &MaxPool2D[B]{newPooling("maxpool2d", kernelSize, stride, padding, ceilMode, backend)}
}

// Forward performs max pooling.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	m.check("maxpool2d", input)
	return tensor.New[float32, B](m.backend.MaxPool2D(input.Raw(), m.pool), m.backend)
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	return "MaxPool2D" + m.describe()
}

// AvgPool2D is a 2D average pooling layer.
//
// Output sizing follows MaxPool2D. Each output is the mean of its window,
// where padded positions count as zeros.
//
// Example:
//
//	// Global pooling of 7x7 feature maps
//	pool := nn.NewAvgPool2D(7, 7, 0, false, backend)
//	output := pool.Forward(features) // [N, C, 7, 7] -> [N, C, 1, 1]
type AvgPool2D[B tensor.Backend] struct {
	pooling[B]
}

// NewAvgPool2D creates a new 2D average pooling layer.
// The parameters have the same meaning as for NewMaxPool2D.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int, ceilMode bool, backend B) *AvgPool2D[B] {
	return &AvgPool2D[B]{newPooling("avgpool2d", kernelSize, stride, padding, ceilMode, backend)}
}

// Forward performs average pooling.
func (a *AvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	a.check("avgpool2d", input)
	return tensor.New[float32, B](a.backend.AvgPool2D(input.Raw(), a.pool), a.backend)
}

// String returns a string representation of the layer.
func (a *AvgPool2D[B]) String() string {
	return "AvgPool2D" + a.describe()
}

// pooling holds the window configuration shared by the pooling layers.
type pooling[B tensor.Backend] struct {
	pool    tensor.Pool2D
	backend B
}

func newPooling[B tensor.Backend](op string, kernelSize, stride, padding int, ceilMode bool, backend B) pooling[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d", op, kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("%s: invalid stride %d", op, stride))
	}
	if padding < 0 || 2*padding > kernelSize {
		panic(fmt.Sprintf("%s: padding %d must be in [0, kernel/2]", op, padding))
	}

	return pooling[B]{
		pool: tensor.Pool2D{
			KernelSize: kernelSize,
			Stride:     stride,
			Padding:    padding,
			CeilMode:   ceilMode,
		},
		backend: backend,
	}
}

func (p *pooling[B]) check(op string, input *tensor.Tensor[float32, B]) {
	if len(input.Shape()) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(input.Shape())))
	}
}

func (p *pooling[B]) describe() string {
	return fmt.Sprintf("(kernel_size=%d, stride=%d, padding=%d, ceil_mode=%v)",
		p.pool.KernelSize, p.pool.Stride, p.pool.Padding, p.pool.CeilMode)
}

// Parameters returns an empty slice (pooling has no learnable parameters).
func (p *pooling[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}

// StateDict returns an empty map.
func (p *pooling[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// KernelSize returns the pooling window size.
func (p *pooling[B]) KernelSize() int {
	return p.pool.KernelSize
}

// Stride returns the pooling stride.
func (p *pooling[B]) Stride() int {
	return p.pool.Stride
}

// CeilMode reports whether the output size is rounded up.
func (p *pooling[B]) CeilMode() bool {
	return p.pool.CeilMode
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (p *pooling[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	return [2]int{p.pool.OutputSize(inputH), p.pool.OutputSize(inputW)}
}
