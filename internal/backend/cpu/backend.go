// Package cpu implements the CPU backend with GEMM from gonum BLAS.
package cpu

import (
	"fmt"

	"github.com/born-ml/sqnxt/internal/parallel"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithWorkers limits the number of goroutines a single operation fans out to.
// n <= 0 keeps the detected default.
func WithWorkers(n int) Option {
	return func(cpu *CPUBackend) {
		cpu.par = cpu.par.WithWorkers(n)
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	cpu := &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cpu)
	}
	return cpu
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the number of goroutines an operation may use.
func (cpu *CPUBackend) Workers() int {
	if !cpu.par.Enabled {
		return 1
	}
	return cpu.par.NumWorkers
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("add: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("add: %v", err))
	}

	result := cpu.alloc("add", outShape, a.DType())

	switch a.DType() {
	case tensor.Float32:
		addKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	case tensor.Float64:
		addKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, needsBroadcast)
	default:
		panic(fmt.Sprintf("add: unsupported dtype %s", a.DType()))
	}

	return result
}

func addKernel[T float32 | float64](dst, a, b []T, aShape, bShape, outShape tensor.Shape, needsBroadcast bool) {
	if !needsBroadcast {
		for i := range dst {
			dst[i] = a[i] + b[i]
		}
		return
	}

	outStrides := outShape.ComputeStrides()
	aIdx := broadcastIndexer(aShape, outShape)
	bIdx := broadcastIndexer(bShape, outShape)
	coords := make([]int, len(outShape))
	for i := range dst {
		rem := i
		for d, s := range outStrides {
			coords[d] = rem / s
			rem %= s
		}
		dst[i] = a[aIdx(coords)] + b[bIdx(coords)]
	}
}

// broadcastIndexer returns a function mapping output coordinates to a flat
// index into an operand of the given shape.
func broadcastIndexer(shape, outShape tensor.Shape) func(coords []int) int {
	offset := len(outShape) - len(shape)
	strides := shape.ComputeStrides()
	return func(coords []int) int {
		idx := 0
		for d, dim := range shape {
			if dim != 1 {
				idx += coords[offset+d] * strides[d]
			}
		}
		return idx
	}
}

// Reshape returns a copy of t with a new shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	reshaped, err := t.Clone().View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return reshaped
}

// Transpose transposes the tensor by permuting its dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result := cpu.alloc("transpose", newShape, t.DType())

	switch t.DType() {
	case tensor.Float32:
		transposeKernel(result.AsFloat32(), t.AsFloat32(), t.Strides(), newShape, axes)
	case tensor.Float64:
		transposeKernel(result.AsFloat64(), t.AsFloat64(), t.Strides(), newShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

func transposeKernel[T float32 | float64](dst, src []T, srcStrides []int, newShape tensor.Shape, axes []int) {
	dstStrides := newShape.ComputeStrides()
	for i := range dst {
		srcIdx := 0
		rem := i
		for d, s := range dstStrides {
			srcIdx += (rem / s) * srcStrides[axes[d]]
			rem %= s
		}
		dst[i] = src[srcIdx]
	}
}

// alloc creates a zeroed result tensor, panicking with an op-prefixed message on failure.
func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}
