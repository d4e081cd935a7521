package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations; layers never
// touch element data directly.
//
// Implementations:
//   - CPU: Pure Go with GEMM from gonum BLAS
type Backend interface {
	// Element-wise binary operations
	Add(a, b *RawTensor) *RawTensor

	// Matrix operations
	MatMul(a, b *RawTensor) *RawTensor

	// Convolutional operations.
	// Input is [N, C_in, H, W], kernel is [C_out, C_in, K_h, K_w];
	// stride and padding are given as {height, width}.
	Conv2D(input, kernel *RawTensor, stride, padding [2]int) *RawTensor
	MaxPool2D(input *RawTensor, pool Pool2D) *RawTensor
	AvgPool2D(input *RawTensor, pool Pool2D) *RawTensor

	// Activation functions
	ReLU(x *RawTensor) *RawTensor

	// Per-channel operations on [N, C, H, W] tensors.
	// ChannelAffine computes x*scale[c] + shift[c]; scale and shift are [C].
	ChannelAffine(x, scale, shift *RawTensor) *RawTensor
	// ChannelMoments returns the biased mean and variance of every channel, both [C].
	ChannelMoments(x *RawTensor) (mean, variance *RawTensor)

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}

// Pool2D describes a square pooling window.
type Pool2D struct {
	KernelSize int
	Stride     int
	Padding    int
	// CeilMode rounds the output size up, keeping a trailing partial window.
	CeilMode bool
}

// OutputSize returns the pooled size of a spatial dimension of length in.
func (p Pool2D) OutputSize(in int) int {
	return PoolOutputSize(in, p.KernelSize, p.Stride, p.Padding, p.CeilMode)
}
