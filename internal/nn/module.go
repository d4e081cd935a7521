// Package nn implements neural network modules for the Born ML Framework.
//
// This package provides building blocks for constructing convolutional networks:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named learnable tensors
//   - Conv2D, BatchNorm2D: Convolution and per-channel normalization
//   - MaxPool2D, AvgPool2D, Flatten: Spatial reduction
//   - Linear: Fully connected layer
//   - ReLU: Activation
//   - Sequential: Container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/sqnxt/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all learnable parameters
//   - StateDict: Return all persistent tensors by name
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[Backend](
//	    nn.NewConv2D(3, 64, [2]int{7, 7}, 2, [2]int{1, 1}, false, backend),
//	    nn.NewBatchNorm2D(64, backend),
//	    nn.NewReLU[Backend](),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Conv2D expects [batch, in_channels, height, width].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all learnable parameters of this module.
	//
	// This includes weights, biases, and any nested module parameters.
	// Returns an empty slice for modules without learnable parameters
	// (e.g., activation functions, pooling).
	Parameters() []*Parameter[B]

	// StateDict returns every persistent tensor of the module keyed by a
	// dotted name. It is a superset of Parameters: normalization layers
	// also report their running statistics.
	StateDict() map[string]*tensor.RawTensor
}

// Trainable is implemented by modules that behave differently in training
// and inference mode, such as BatchNorm2D. Containers forward the switch to
// their children.
type Trainable interface {
	SetTraining(training bool)
	Training() bool
}

// SetTraining switches m and all its descendants between training and
// inference mode. Modules without mode-dependent behaviour are skipped.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	if t, ok := m.(Trainable); ok {
		t.SetTraining(training)
	}
}

// CountParameters returns the total number of learnable scalars in m.
// Running statistics are buffers and are not counted.
func CountParameters[B tensor.Backend](m Module[B]) int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.NumElements()
	}
	return total
}

// MergeStateDict copies every entry of src into dst under prefix + "." + name.
// An empty prefix copies names unchanged.
func MergeStateDict(dst, src map[string]*tensor.RawTensor, prefix string) {
	for name, raw := range src {
		if prefix != "" {
			name = prefix + "." + name
		}
		dst[name] = raw
	}
}
