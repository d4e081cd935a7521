// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layer library used to assemble the SqueezeNext models.
//
// Available layers:
//   - Conv2D: 2D convolution with rectangular kernels
//   - BatchNorm2D: Per-channel normalization with running statistics
//   - MaxPool2D, AvgPool2D: Pooling with optional ceil-mode sizing
//   - Flatten, Linear, ReLU
//   - Sequential: Container for stacking layers
//
// Example:
//
//	backend := cpu.New()
//	head := nn.NewSequential[*cpu.Backend](
//	    nn.NewAvgPool2D(7, 7, 0, false, backend),
//	    nn.NewFlatten[*cpu.Backend](),
//	    nn.NewLinear(128, 1000, backend),
//	)
package nn

import (
	"github.com/born-ml/sqnxt/internal/nn"
	"github.com/born-ml/sqnxt/tensor"
)

// Module is the interface every layer implements.
type Module[B tensor.Backend] = nn.Module[B]

// Trainable is implemented by modules with a training mode.
type Trainable = nn.Trainable

// Parameter is a named learnable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Layer types.
type (
	Conv2D[B tensor.Backend]      = nn.Conv2D[B]
	BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]
	MaxPool2D[B tensor.Backend]   = nn.MaxPool2D[B]
	AvgPool2D[B tensor.Backend]   = nn.AvgPool2D[B]
	Flatten[B tensor.Backend]     = nn.Flatten[B]
	Linear[B tensor.Backend]      = nn.Linear[B]
	ReLU[B tensor.Backend]        = nn.ReLU[B]
	Sequential[B tensor.Backend]  = nn.Sequential[B]
)

// NewConv2D creates a 2D convolution with Xavier-initialized weights.
func NewConv2D[B tensor.Backend](inChannels, outChannels int, kernelSize [2]int, stride int, padding [2]int, useBias bool, backend B) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, useBias, backend)
}

// NewBatchNorm2D creates a batch normalization layer in inference mode.
func NewBatchNorm2D[B tensor.Backend](channels int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(channels, backend)
}

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, ceilMode bool, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, padding, ceilMode, backend)
}

// NewAvgPool2D creates an average pooling layer.
func NewAvgPool2D[B tensor.Backend](kernelSize, stride, padding int, ceilMode bool, backend B) *AvgPool2D[B] {
	return nn.NewAvgPool2D(kernelSize, stride, padding, ceilMode, backend)
}

// NewFlatten creates a Flatten module.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// NewLinear creates a fully connected layer with bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// NewSequential creates a container applying modules in order.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// CountParameters returns the number of learnable scalars in m.
func CountParameters[B tensor.Backend](m Module[B]) int {
	return nn.CountParameters(m)
}

// SetTraining switches m between training and inference mode.
func SetTraining[B tensor.Backend](m Module[B], training bool) {
	nn.SetTraining(m, training)
}

// Seed resets the weight initialization source.
func Seed(seed uint64) {
	nn.Seed(seed)
}
