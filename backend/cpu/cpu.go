// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col + GEMM convolutions (gonum BLAS) with rectangular kernels
//   - Ceil-mode max and average pooling
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting
//
// # Basic Usage
//
//	backend := cpu.New()
//	net, err := squeezenext.Sqnxt23W10(backend)
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. Each tensor operation
// is isolated and does not share mutable state. Operations fan out over
// at most Workers() goroutines and join before returning.
package cpu

import (
	internalcpu "github.com/born-ml/sqnxt/internal/backend/cpu"
	"github.com/born-ml/sqnxt/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New(cpu.WithWorkers(4))
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithWorkers limits the number of goroutines a single operation fans out to.
// n <= 0 keeps the default of one worker per physical core.
func WithWorkers(n int) Option {
	return internalcpu.WithWorkers(n)
}
