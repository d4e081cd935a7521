// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package squeezenext provides the SqueezeNext image classifiers.
//
// SqueezeNext stacks residual blocks of five convolution units (two 1x1
// reductions, a 1x3, a 3x1 and a 1x1 expansion) into four stages. Six
// variants are predefined: architectures "23" (blocks [6, 6, 8, 1]) and
// "23v5" (blocks [2, 4, 14, 1]) at width scales 1.0, 1.5 and 2.0.
//
// Example:
//
//	backend := cpu.New()
//	net, err := squeezenext.New("23v5", 1.5, backend, squeezenext.WithClasses(10))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logits := net.Forward(images) // [N, 3, 224, 224] -> [N, 10]
//
// Pretrained weights are not available; requesting them fails with
// ErrPretrainedUnavailable.
package squeezenext

import (
	"github.com/born-ml/sqnxt/internal/squeezenext"
	"github.com/born-ml/sqnxt/tensor"
)

// Errors returned by the factories. All wrap ErrConfig.
var (
	ErrConfig                = squeezenext.ErrConfig
	ErrUnsupportedArch       = squeezenext.ErrUnsupportedArch
	ErrPretrainedUnavailable = squeezenext.ErrPretrainedUnavailable
	ErrUnknownModel          = squeezenext.ErrUnknownModel
)

// Architecture tags.
const (
	Arch23   = squeezenext.Arch23
	Arch23v5 = squeezenext.Arch23v5
)

// Defaults of the reference configuration.
const (
	DefaultClasses   = squeezenext.DefaultClasses
	DefaultInputSize = squeezenext.DefaultInputSize
)

// Network is a SqueezeNext classifier.
type Network[B tensor.Backend] = squeezenext.Network[B]

// Config, Plan and the unit and block configs describe a network layout.
type (
	Config         = squeezenext.Config
	Plan           = squeezenext.Plan
	BlockConfig    = squeezenext.BlockConfig
	ConvUnitConfig = squeezenext.ConvUnitConfig
	ModelSpec      = squeezenext.ModelSpec
	Option         = squeezenext.Option
)

// WithClasses sets the number of output logits.
func WithClasses(classes int) Option { return squeezenext.WithClasses(classes) }

// WithPretrained requests pretrained weights, which always fails.
func WithPretrained(pretrained bool) Option { return squeezenext.WithPretrained(pretrained) }

// WithSeed makes weight initialization reproducible.
func WithSeed(seed uint64) Option { return squeezenext.WithSeed(seed) }

// BlockCounts returns the per-stage block counts of an architecture tag.
func BlockCounts(arch string) ([]int, error) { return squeezenext.BlockCounts(arch) }

// Models returns the predefined variants.
func Models() []ModelSpec { return squeezenext.Models() }

// Lookup returns the predefined variant with the given name.
func Lookup(name string) (ModelSpec, error) { return squeezenext.Lookup(name) }

// New builds a network for an architecture tag and width scale.
func New[B tensor.Backend](arch string, scale float64, backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.New(arch, scale, backend, opts...)
}

// NewNetwork builds a network from an explicit config.
func NewNetwork[B tensor.Backend](config Config, backend B) (*Network[B], error) {
	return squeezenext.NewNetwork(config, backend)
}

// NewByName builds a predefined variant such as "sqnxt23_1_0".
func NewByName[B tensor.Backend](name string, backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.NewByName(name, backend, opts...)
}

// Sqnxt23W10 builds sqnxt23_1_0.
func Sqnxt23W10[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.Sqnxt23W10(backend, opts...)
}

// Sqnxt23W15 builds sqnxt23_1_5.
func Sqnxt23W15[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.Sqnxt23W15(backend, opts...)
}

// Sqnxt23W20 builds sqnxt23_2_0.
func Sqnxt23W20[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.Sqnxt23W20(backend, opts...)
}

// Sqnxt23v5W10 builds sqnxt23v5_1_0.
func Sqnxt23v5W10[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.Sqnxt23v5W10(backend, opts...)
}

// Sqnxt23v5W15 builds sqnxt23v5_1_5.
func Sqnxt23v5W15[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.Sqnxt23v5W15(backend, opts...)
}

// Sqnxt23v5W20 builds sqnxt23v5_2_0.
func Sqnxt23v5W20[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return squeezenext.Sqnxt23v5W20(backend, opts...)
}
