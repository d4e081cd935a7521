package squeezenext

import (
	"fmt"

	"github.com/born-ml/sqnxt/internal/nn"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// ConvUnitConfig describes one convolution + batch norm + ReLU triple.
type ConvUnitConfig struct {
	In      int
	Out     int
	Kernel  [2]int // {height, width}
	Stride  int
	Padding [2]int // {height, width}
}

// pointwise returns a 1x1 unit without padding.
func pointwise(in, out, stride int) ConvUnitConfig {
	return ConvUnitConfig{In: in, Out: out, Kernel: [2]int{1, 1}, Stride: stride}
}

// Validate reports non-positive channel counts, kernels or strides.
func (c ConvUnitConfig) Validate() error {
	if c.In <= 0 || c.Out <= 0 {
		return fmt.Errorf("%w: conv unit channels %d -> %d must be positive", ErrConfig, c.In, c.Out)
	}
	if c.Kernel[0] <= 0 || c.Kernel[1] <= 0 || c.Stride <= 0 {
		return fmt.Errorf("%w: conv unit kernel %v stride %d must be positive", ErrConfig, c.Kernel, c.Stride)
	}
	if c.Padding[0] < 0 || c.Padding[1] < 0 {
		return fmt.Errorf("%w: conv unit padding %v must not be negative", ErrConfig, c.Padding)
	}
	return nil
}

// NumParameters returns the learnable scalar count of the unit:
// the bias-free kernel plus batch norm gamma and beta.
func (c ConvUnitConfig) NumParameters() int {
	return c.Out*c.In*c.Kernel[0]*c.Kernel[1] + 2*c.Out
}

// OutputSize returns the spatial size produced from an input of size (h, w).
func (c ConvUnitConfig) OutputSize(h, w int) (int, int) {
	return tensor.ConvOutputSize(h, c.Kernel[0], c.Stride, c.Padding[0]),
		tensor.ConvOutputSize(w, c.Kernel[1], c.Stride, c.Padding[1])
}

// String returns a compact description such as "64->32 1x1/1".
func (c ConvUnitConfig) String() string {
	return fmt.Sprintf("%d->%d %dx%d/%d", c.In, c.Out, c.Kernel[0], c.Kernel[1], c.Stride)
}

// ConvUnit applies a bias-free convolution, batch normalization and ReLU.
// The convolution has no bias because the normalization shift absorbs it.
type ConvUnit[B tensor.Backend] struct {
	config ConvUnitConfig
	conv   *nn.Conv2D[B]
	bn     *nn.BatchNorm2D[B]
}

// NewConvUnit builds a ConvUnit. The config must be valid; channel and
// kernel errors panic inside the layer constructors.
func NewConvUnit[B tensor.Backend](config ConvUnitConfig, backend B) *ConvUnit[B] {
	return &ConvUnit[B]{
		config: config,
		conv:   nn.NewConv2D(config.In, config.Out, config.Kernel, config.Stride, config.Padding, false, backend),
		bn:     nn.NewBatchNorm2D(config.Out, backend),
	}
}

// Forward computes ReLU(BN(Conv(x))).
func (u *ConvUnit[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return u.bn.Forward(u.conv.Forward(x)).ReLU()
}

// Parameters returns the convolution kernel followed by gamma and beta.
func (u *ConvUnit[B]) Parameters() []*nn.Parameter[B] {
	return append(u.conv.Parameters(), u.bn.Parameters()...)
}

// StateDict returns tensors under "conv." and "bn." prefixes.
func (u *ConvUnit[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	nn.MergeStateDict(stateDict, u.conv.StateDict(), "conv")
	nn.MergeStateDict(stateDict, u.bn.StateDict(), "bn")
	return stateDict
}

// SetTraining switches the batch norm between batch and running statistics.
func (u *ConvUnit[B]) SetTraining(training bool) {
	u.bn.SetTraining(training)
}

// Training reports whether the unit normalizes with batch statistics.
func (u *ConvUnit[B]) Training() bool {
	return u.bn.Training()
}

// Config returns the unit configuration.
func (u *ConvUnit[B]) Config() ConvUnitConfig {
	return u.config
}

// String returns a string representation of the unit.
func (u *ConvUnit[B]) String() string {
	return "ConvUnit(" + u.config.String() + ")"
}
